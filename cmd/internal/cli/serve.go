package cli

import (
	"tasklist/cmd/internal/app"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live activity feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return app.Serve(cfg, app.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.LogColor, cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TASKLIST_HTTP_ADDR)")
	return cmd
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), cfg, commandLogger(cmd, cfg))
		},
	}
}
