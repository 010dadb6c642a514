package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/slicetrace/slicetrace/internal/entry"
)

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <trace-file>",
		Short: "Print per-kind record counts for a trace file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := entry.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			var (
				counts [entry.KindEndOfTrace + 1]uint64
				total  uint64
			)

			for {
				e, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}

				if err != nil {
					return err
				}

				if int(e.Kind) < len(counts) {
					counts[e.Kind]++
				}

				total++
			}

			for k := entry.KindBasicBlock; k <= entry.KindEndOfTrace; k++ {
				if counts[k] == 0 {
					continue
				}

				fmt.Printf("%-18s %d\n", k, counts[k])
			}

			fmt.Printf("%-18s %d\n", "total", total)

			if !r.Terminated() {
				fmt.Println("warning: no end-of-trace record (crashed or in-progress run)")
			}

			return nil
		},
	}
}
