package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/deepgram/aiproxy/internal/config"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/spf13/cobra"
)

// exitRateLimited is the process status when the endpoint rate limited us.
const exitRateLimited = 2

var errRateLimited = errors.New("rate limited by the inference endpoint, try again later")

// app is the state shared by every subcommand once the root pre-run loaded
// the configuration.
type app struct {
	configPath string
	logLevel   string
	config     *config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "aiproxy",
		Short: "Client and relay gateway for the ai-proxy inference endpoint",
		Long: `aiproxy talks to a remote inference endpoint that answers either with a
complete JSON payload or with an event stream, and folds both into one answer.
It can ask one-off questions or run a relay gateway in front of the endpoint.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			logger.Init(cfg.Log.Level, cfg.Log.Pretty)
			a.config = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (defaults to ./aiproxy.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Set logging level (TRACE, DEBUG, INFO, WARN, ERROR)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newConfigCmd(a),
	)

	return rootCmd
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errRateLimited) {
			os.Exit(exitRateLimited)
		}
		os.Exit(1)
	}
}
