package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/slicetrace/slicetrace/internal/entry"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <trace-file>",
		Short: "Check a trace file for well-formedness",
		Long: `verify checks the header magic, format version, and record size,
that every record kind is defined, and that the trace is terminated by
exactly one end-of-trace record with nothing after it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			if err := verify(args[0]); err != nil {
				return err
			}

			log.WithField("file", args[0]).Info("Trace is well-formed")

			return nil
		},
	}
}

func verify(path string) error {
	r, err := entry.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for i := 0; ; i++ {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		if r.Terminated() && e.Kind != entry.KindEndOfTrace {
			return fmt.Errorf("record %d: %s after end-of-trace", i, e.Kind)
		}

		if !e.Kind.Valid() {
			return fmt.Errorf("record %d: %s", i, e.Kind)
		}

		if e.Kind == entry.KindHeader {
			return fmt.Errorf("record %d: duplicate header record", i)
		}

		// ID 0 is reserved; only the synthetic terminal record
		// carries it.
		if e.ID == 0 && e.Kind != entry.KindEndOfTrace {
			return fmt.Errorf("record %d: %s with reserved id 0", i, e.Kind)
		}
	}

	if !r.Terminated() {
		return fmt.Errorf("missing end-of-trace record")
	}

	return nil
}
