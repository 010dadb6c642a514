package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slicetrace/slicetrace/internal/version"
)

var logLevel string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slicetrace",
		Short: "Inspect execution trace files",
		Long: `slicetrace inspects trace files produced by the slicetrace
runtime: fixed-size binary records of basic-block executions, memory
accesses, and calls/returns, recorded for offline dynamic program
slicing. The recording itself happens inside the instrumented target;
this tool only reads, checks, and archives finished traces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)",
	)

	cmd.AddCommand(
		dumpCmd(),
		statCmd(),
		verifyCmd(),
		packCmd(),
		unpackCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	return log
}
