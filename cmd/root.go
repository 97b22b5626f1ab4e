package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/olxstore/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to an HCL config file")
}

var rootCmd = &cobra.Command{
	Use:           "olxstore",
	Short:         "Import OLX course exports into a single-file SQLite store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
		initLogger(cmd, level)
		return nil
	},
}

func initLogger(cmd *cobra.Command, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
