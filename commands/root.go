// Package commands is the storefront command line.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront/config"
)

var (
	cfg    *config.Config
	logger *logrus.Logger

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Ulisha storefront backend",
	Long: `Storefront serves the shop API: catalog, per-user carts, hosted
checkout through Flutterwave or Coinbase Commerce and the admin dashboard
with its live order feed.

Configuration is read from .env, config.yaml and STOREFRONT_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = newLogger(cfg.Log)
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	l.SetLevel(level)

	switch strings.ToLower(lc.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
	return l, nil
}
