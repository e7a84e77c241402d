package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trustify/backend/internal/config"
	"github.com/trustify/backend/internal/observability"
	"github.com/trustify/backend/pkg/supabase"
)

// cli is the state shared by all commands, filled in by the root PersistentPreRunE.
type cli struct {
	out    io.Writer
	errOut io.Writer

	logLevel string
	cfg      *config.Config
	logger   *slog.Logger

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, errOut: errOut, loadConfig: config.Load}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "trustify",
		Short:         "Trustify backend tools",
		Long:          "Run the item store demo against Supabase or Postgres, backfill embeddings and check the deployed Edge Functions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = c.logLevel
			}

			c.cfg = cfg
			c.logger = observability.NewLogger(c.errOut, level)
			slog.SetDefault(c.logger)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newDemoCmd(c),
		newEmbeddingsCmd(c),
		newFunctionsCmd(c),
		newPermissionCmd(c),
	)

	return root
}

// supabaseClient builds the client from config. requireServiceRole is set for Edge Function calls.
func (c *cli) supabaseClient(requireServiceRole bool) (*supabase.Client, error) {
	check := c.cfg.RequireSupabase
	if requireServiceRole {
		check = c.cfg.RequireServiceRole
	}

	if err := check(); err != nil {
		return nil, err
	}

	client, err := supabase.NewClient(supabase.Options{
		URL:            c.cfg.SupabaseURL,
		AnonKey:        c.cfg.SupabaseAnonKey,
		ServiceRoleKey: c.cfg.SupabaseServiceRoleKey,
		FunctionsURL:   c.cfg.SupabaseFunctionsURL,
		RetryMax:       c.cfg.SupabaseRetryMax,
		Timeout:        c.cfg.SupabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return client, nil
}

var errInvalidOutput = errors.New("--output must be one of: table, json, yaml")
