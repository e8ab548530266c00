package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/itstheanurag/gradebox/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gradebox",
	Short: "gradebox - sandboxed grading of solution code",
	Long: `gradebox runs untrusted solution code against JSON test cases inside
disposable sandboxes and reports a pass, fail or error verdict per case.

It can serve the HTTP API or grade a problem package from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./gradebox.yaml or $HOME/.gradebox/gradebox.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides config)")
}

func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	return config.LoadConfig()
}

func newLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if logLevelFlag != "" {
		level = logLevelFlag
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
