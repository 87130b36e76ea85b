// Package cli defines the donations command tree (Cobra).
//
//	donations serve                      run the HTTP API
//	donations export --format xlsx       write the donation list to a file
//	donations receipt [id]               write a receipt PDF (blank without id)
//
// Every command reads configuration from the environment, optionally seeded
// from a .env file (--env-file).
package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-donation-tracker/internal/config"
	"github.com/tbourn/go-donation-tracker/internal/sysutil"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

type cfgKey struct{}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "donations",
		Short:         "Bilingual donation tracker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sysutil.ConfigureLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newServeCmd(), newExportCmd(), newReceiptCmd())
	return root
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) config.Config {
	cfg, _ := cmd.Context().Value(cfgKey{}).(config.Config)
	return cfg
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}
