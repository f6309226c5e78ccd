package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mkbtool",
	Short: "Inspect and edit Super Monkey Ball stagedef files",
	Long: `mkbtool decodes SMB2 stagedef files (raw or .lz compressed),
prints their contents, verifies round-trip encoding, and applies
field edits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// logger builds the CLI logger honoring --verbose.
func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
