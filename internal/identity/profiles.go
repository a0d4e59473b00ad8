package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistria/internal/config"
	"logistria/internal/docstore"
	"logistria/internal/domain"
)

// UsersCollection holds one profile per user id.
const UsersCollection = "users"

// Profiles reads and creates user profiles.
type Profiles struct {
	store docstore.Store
	now   func() time.Time
}

func NewProfiles(store docstore.Store) *Profiles {
	return &Profiles{store: store, now: time.Now}
}

// Ensure returns the profile of p, creating it with the Client role on
// first sign-in.
func (s *Profiles) Ensure(ctx context.Context, p Principal) (domain.Profile, error) {
	fields, err := s.store.Get(ctx, UsersCollection, p.UID)
	if err == nil {
		profile := domain.ProfileFromFields(p.UID, fields)
		if profile.Email == "" {
			profile.Email = p.Email
		}
		return profile, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return domain.Profile{}, fmt.Errorf("load profile %s: %w", p.UID, err)
	}

	profile := domain.Profile{
		UID:       p.UID,
		Email:     p.Email,
		Role:      domain.RoleClient,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Put(ctx, UsersCollection, p.UID, profile.Fields()); err != nil {
		return domain.Profile{}, fmt.Errorf("create profile %s: %w", p.UID, err)
	}
	config.GetLogger().WithField("uid", p.UID).Info("profile created")
	return profile, nil
}

// SetRole changes the role of an existing profile.
func (s *Profiles) SetRole(ctx context.Context, uid, role string) error {
	fields, err := s.store.Get(ctx, UsersCollection, uid)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", uid, err)
	}
	fields["role"] = role
	return s.store.Put(ctx, UsersCollection, uid, fields)
}
