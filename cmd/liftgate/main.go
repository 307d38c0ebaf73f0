package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liftlab/liftgate/internal/config"
)

var (
	cfgPath string
	cfg     config.Config
	logger  zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "liftgate",
		Short: "Design and analyze two-arm proportion experiments",
		Long: `liftgate sizes two-arm A/B experiments, picks the right hypothesis
test for the observed counts, and turns the analysis into a rollout verdict.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger = newLogger(cfg.LogLevel)
			return nil
		},
	}
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "liftgate.yaml", "path to YAML config")
	rootCmd.AddCommand(serveCmd, sizeCmd, analyzeCmd, decideCmd, proposeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
