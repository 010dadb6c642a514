package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/slicetrace/slicetrace/internal/entry"
)

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <trace-file>",
		Short: "Print every record of a trace file as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(args[0], os.Stdout)
		},
	}
}

func dump(path string, w io.Writer) error {
	r, err := entry.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for i := 0; ; i++ {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%8d  %s\n", i, formatEntry(e))
	}
}

func formatEntry(e entry.Entry) string {
	switch e.Kind {
	case entry.KindBasicBlock:
		call := fmt.Sprintf("%d", uint32(e.Length))
		if uint32(e.Length) == entry.SentinelCallID {
			call = "outermost"
		}

		return fmt.Sprintf(
			"%-18s id=%d fn=0x%x call=%s",
			e.Kind, e.ID, e.Address, call,
		)
	case entry.KindLoad, entry.KindStore:
		return fmt.Sprintf(
			"%-18s id=%d addr=0x%x len=%d",
			e.Kind, e.ID, e.Address, e.Length,
		)
	case entry.KindCall, entry.KindReturn:
		return fmt.Sprintf("%-18s id=%d fn=0x%x", e.Kind, e.ID, e.Address)
	case entry.KindSelect:
		return fmt.Sprintf("%-18s id=%d flag=%d", e.Kind, e.ID, e.Address)
	case entry.KindInvariantFailure:
		return fmt.Sprintf("%-18s id=%d", e.Kind, e.ID)
	default:
		return fmt.Sprintf(
			"%-18s id=%d addr=0x%x len=%d",
			e.Kind, e.ID, e.Address, e.Length,
		)
	}
}
