package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

const cliSource = "cli"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syncctl",
		Short: "Operate the catalog image sync",
		Long: `syncctl runs and inspects the catalog image sync outside the API server.

Configuration is read from the same environment variables as the api and worker
binaries (POSTGRES_DSN, SCAN_ROOT, NATS_URL, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newRunCmd(),
		newTriggerCmd(),
		newMCPCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the image and directory-state tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate(cmd.Context(), config.Load()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one sync in this process and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := runLocal(cmd.Context(), config.Load(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), result)
		},
	}
}

func newTriggerCmd() *cobra.Command {
	var (
		subject string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a worker to run a sync over NATS and wait for the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if subject == "" {
				subject = cfg.NATSTriggerSubject
			}
			result, err := triggerRemote(cmd.Context(), cfg.NATSURL, subject, timeout)
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "trigger subject (default NATS_TRIGGER_SUBJECT)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "how long to wait for the run to finish")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sync tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveMCP(cmd.Context(), config.Load(), cmd.ErrOrStderr())
		},
	}
}

// reportResult prints the result and turns a failed run into a command error.
func reportResult(w io.Writer, result domain.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(w, string(data))
	if !result.OK {
		return fmt.Errorf("sync failed: %s", result.Error)
	}
	return nil
}
