package cli

import (
	"fmt"
	"io"
	"time"

	"tasklist/cmd/internal/app"
	"tasklist/cmd/internal/auth/session"

	"github.com/spf13/cobra"
)

type tokenResult struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewTokenCommand creates the token command, which mints a session token
// for a user id with the configured secret.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a session token for local development and scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.SessionTTL = ttl
			}
			res, err := mintToken(cfg, args[0], time.Now().UTC())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, res, func(w io.Writer) {
				fmt.Fprintln(w, res.Token)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (overrides TASKLIST_SESSION_TTL)")
	return cmd
}

func mintToken(cfg app.Config, userID string, now time.Time) (tokenResult, error) {
	if err := app.ValidateSecurityConfig(cfg); err != nil {
		return tokenResult{}, err
	}
	mgr, err := session.NewManager(cfg.SessionConfig())
	if err != nil {
		return tokenResult{}, err
	}
	tok, exp, err := mgr.Issue(userID, now)
	if err != nil {
		return tokenResult{}, err
	}
	return tokenResult{UserID: userID, Token: tok, ExpiresAt: exp}, nil
}
