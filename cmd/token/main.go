package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "token",
		Short:         "Development helper for BantuDesa API tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newIssueCmd())

	return root
}

func newIssueCmd() *cobra.Command {
	var (
		id    string
		role  string
		name  string
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a signed bearer token",
		Long: `Mint an HS256 token signed with JWT_SECRET that the API accepts.
The subject is a fresh UUID unless --id is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}

			subject := uuid.New()
			if id != "" {
				if subject, err = uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
			}

			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			token, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, ttl).Issue(auth.Identity{
				ID:    subject,
				Role:  r,
				Name:  name,
				Email: email,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "subject %s, role %s, expires in %s\n", subject, r, ttl)
			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "subject UUID")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "USER, CREATOR or ADMIN")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")

	return cmd
}
