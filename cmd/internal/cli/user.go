package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"tasklist/cmd/identity"
	"tasklist/cmd/internal/app"
	"tasklist/cmd/internal/model"

	"github.com/spf13/cobra"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand(rootOpts))
	cmd.AddCommand(newUserLinkCommand(rootOpts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withIdentity(cmd, rootOpts, func(ctx context.Context, ids *identity.Service) (model.User, error) {
				return ids.Create(ctx, email, name)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserLinkCommand(rootOpts *RootOptions) *cobra.Command {
	var ext identity.ExternalIdentity

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Resolve a verified external identity to a user, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withIdentity(cmd, rootOpts, func(ctx context.Context, ids *identity.Service) (model.User, error) {
				return ids.ResolveExternal(ctx, ext)
			})
		},
	}
	cmd.Flags().StringVar(&ext.Subject, "subject", "", "provider subject id (required)")
	cmd.Flags().StringVar(&ext.Email, "email", "", "verified email")
	cmd.Flags().StringVar(&ext.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func withIdentity(cmd *cobra.Command, rootOpts *RootOptions, fn func(context.Context, *identity.Service) (model.User, error)) (err error) {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	if cfg.StoreDriver == app.StoreMemory {
		return errors.New("user commands need a persistent store: set TASKLIST_STORE to sqlite or postgres")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := app.OpenStore(ctx, cfg, commandLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, st.Close()) }()

	ids, err := identity.NewService(st)
	if err != nil {
		return err
	}
	u, err := fn(ctx, ids)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), rootOpts.Format, u, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Email, u.Name)
	})
}
