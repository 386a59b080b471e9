package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"trustgraph/internal/config"
	"trustgraph/internal/groundtruth"
	"trustgraph/internal/index"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/logging"
	"trustgraph/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trustgraph",
	Short: "Check an external execution-flow graph against the source it describes",
	Long: `trustgraph rebuilds call graphs from source text and diffs them against
execution flows exported by an external knowledge store. Every edge is
classified CONFIRMED, PHANTOM or MISSING and each flow gets trust scores.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = logging.New(cfg.Log.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(impactCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verdict: %s\n", verdict(err))
		os.Exit(1)
	}
}

// verdict turns an error into the message shown to operators.
func verdict(err error) string {
	switch {
	case errors.Is(err, index.ErrNoChunks):
		return "zero chunks for this codebase"
	case errors.Is(err, storage.ErrIndexNotFound):
		return "no index for this codebase; run `trustgraph index` first"
	case errors.Is(err, storage.ErrIndexCorruption):
		return "index unreadable or from another version; rebuild it with `trustgraph index`"
	case errors.Is(err, groundtruth.ErrInvalidExport):
		return "ground-truth export is malformed: " + err.Error()
	case errors.Is(err, groundtruth.ErrFlowNotFound):
		return "execution flow not found in the ground-truth export"
	case errors.Is(err, knowledge.ErrMissingAPIKey):
		return "completion service enabled without an api key"
	default:
		return err.Error()
	}
}
