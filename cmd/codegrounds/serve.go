package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/config"
	"github.com/jxucoder/codegrounds/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codegrounds server",
	Long:  "Start the codegrounds API server that hosts coding sessions, saved files and event streams.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()
	srv, err := server.New(cfg, pslog.Ctx(ctx))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	// The context is cancelled on SIGINT/SIGTERM.
	return srv.Start(ctx)
}
