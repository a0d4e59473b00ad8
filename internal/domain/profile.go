package domain

import "time"

// Roles stored on user profiles.
const (
	RoleChiefLogisticsOfficer = "Chief Logistics Officer"
	RoleLogisticsOfficer      = "Logistics Officer"
	RoleClient                = "Client"
)

// Landing routes after sign-in.
const (
	HomeAdmin = "/admin"
	HomeStore = "/store"
)

// Profile is a document of the users collection, keyed by uid.
type Profile struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Profile) Fields() map[string]any {
	return map[string]any{
		"email":     p.Email,
		"role":      p.Role,
		"createdAt": p.CreatedAt,
	}
}

func ProfileFromFields(uid string, fields map[string]any) Profile {
	return Profile{
		UID:       uid,
		Email:     stringField(fields, "email"),
		Role:      stringField(fields, "role"),
		CreatedAt: timeField(fields, "createdAt"),
	}
}

// IsOperator reports whether role may use the operations console.
func IsOperator(role string) bool {
	return role == RoleChiefLogisticsOfficer || role == RoleLogisticsOfficer
}

// HomeFor returns the landing route for role.
func HomeFor(role string) string {
	if IsOperator(role) {
		return HomeAdmin
	}
	return HomeStore
}
