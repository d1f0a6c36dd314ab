// Codegrounds is a coding playground server and command line client: an
// editor session with undo history, debounced streamed hints and a test
// harness backed by a remote execution service.
package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"pkt.systems/psi"
	"pkt.systems/pslog"
)

var (
	version    = "dev"
	serverURL  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "codegrounds",
	Short: "Codegrounds coding playground",
	Long: `Codegrounds runs coding sessions with undo history, streamed AI hints
and test cases executed on a remote sandbox.

  codegrounds serve                                 Start the server
  codegrounds run main.py --stdin "1 2"             Run a file once
  codegrounds test main.py --cases cases.yaml       Run a file against test cases
  codegrounds hint main.py --problem "..."          Stream a hint for a file
  codegrounds watch main.py --problem "..."         Hint and test on every save
  codegrounds files list                            List saved files`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CODEGROUNDS_SERVER", "http://localhost:7080"), "codegrounds server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $CODEGROUNDS_CONFIG)")
}

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("codegrounds command failed")
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
