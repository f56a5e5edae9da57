package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logs2metrics/l2m/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		ttl     time.Duration
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's JWT secret",
		Long: `Mint a bearer token for the API. The secret is read from L2M_JWT_SECRET,
the jwt_secret config key, or prompted for. The token subject becomes the
default owner of rules created with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			secret := viper.GetString("jwt_secret")
			if secret == "" {
				var err error
				secret, err = promptSecret(cmd.ErrOrStderr(), cmd.InOrStdin(), "JWT secret: ")
				if err != nil {
					return err
				}
			}
			if secret == "" {
				return fmt.Errorf("a JWT secret is required")
			}

			token, err := auth.MintToken(subject, name, secret, ttl)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}

			if save {
				viper.Set("auth.token", token)
				if _, err := writeConfig(); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				fmt.Fprintf(out, "Token for %s saved, expires in %s\n", subject, ttl)
				return nil
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, used as rule owner")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the config file instead of printing it")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
