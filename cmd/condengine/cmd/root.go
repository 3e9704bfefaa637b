package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/solatis/condengine/internal/core/config"
	"github.com/solatis/condengine/internal/types"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	cfg    *config.EngineConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "condengine",
	Short: "Condition engine for profiles, sessions and events",
	Long: `condengine resolves condition trees against deployed condition types,
evaluates them in memory, translates them to index filters and matches
events against rules.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// A .env file is optional.
		_ = godotenv.Load()

		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)

		c, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	pf.Int("max-depth", types.MaxRecursionDepth, "maximum condition nesting depth")
	pf.Int("max-ids", types.MaxIDsQueryCount, "maximum ids inlined into a past event filter")
	pf.Int("bucket-size", types.AggregateBucketSize, "terms aggregation bucket size")
	pf.Bool("disable-partitions", false, "run past event aggregations as a single partition")
	pf.Int("workers", 4, "rule refresh workers")
	pf.String("definitions", "", "directory of condition and action type definitions")
	pf.String("database", "", "item index URL (sqlite://path or postgres://...)")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// readInput reads a file argument; "-" reads stdin.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
