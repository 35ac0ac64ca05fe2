// Package cli is the tasklist command line: the server and its admin commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"tasklist/cmd/internal/app"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tasklist",
		Short: "Shared task lists with roles, invites, and an activity log",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment (skipped when missing)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (app.Config, error) {
	return app.LoadConfig(opts.EnvFile)
}

// commandLogger logs to stderr so command output on stdout stays clean.
func commandLogger(cmd *cobra.Command, cfg app.Config) app.Logger {
	return app.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.LogColor, cmd.ErrOrStderr())
}

// printResult writes v as indented JSON, or as text via the given function.
func printResult(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
