package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"logistria/internal/config"
	"logistria/internal/domain"
	"logistria/internal/identity"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user profiles and session tokens",
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <uid> <role>",
	Short: "Change the role stored on a user profile",
	Long: `Changes the role of an existing profile. Valid roles:
  "Chief Logistics Officer", "Logistics Officer", "Client"`,
	Args: cobra.ExactArgs(2),
	RunE: setRole,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token signed with IDENTITY_JWT_SECRET",
	Long: `Mints a session token for local development and smoke tests.
Production tokens are issued by the identity service.`,
	Args: cobra.NoArgs,
	RunE: mintToken,
}

var (
	tokenUID   string
	tokenEmail string
	tokenTTL   time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUID, "uid", "", "User id carried in the token subject")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email carried in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("uid")

	usersCmd.AddCommand(setRoleCmd)
	usersCmd.AddCommand(tokenCmd)
}

func validRole(role string) bool {
	switch role {
	case domain.RoleChiefLogisticsOfficer, domain.RoleLogisticsOfficer, domain.RoleClient:
		return true
	}
	return false
}

func setRole(cmd *cobra.Command, args []string) error {
	uid, role := args[0], args[1]
	if !validRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.profiles.SetRole(cmd.Context(), uid, role); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (home %s)\n", uid, role, domain.HomeFor(role))
	return nil
}

func mintToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IdentitySecret == "" {
		return errors.New("IDENTITY_JWT_SECRET is not set")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := identity.NewVerifier(cfg.IdentitySecret, cfg.IdentityIssuer).
		Sign(identity.Principal{UID: tokenUID, Email: tokenEmail}, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
