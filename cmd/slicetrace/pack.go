package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func packCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "pack <trace-file>",
		Short: "Compress a sealed trace file to <trace-file>.zst",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pack(newLogger().WithField("file", args[0]), args[0], keep)
		},
	}

	cmd.Flags().BoolVar(
		&keep, "keep", false,
		"keep the uncompressed trace file",
	)

	return cmd
}

func unpackCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "unpack <trace-file.zst>",
		Short: "Decompress a packed trace file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return unpack(newLogger().WithField("file", args[0]), args[0], keep)
		},
	}

	cmd.Flags().BoolVar(
		&keep, "keep", false,
		"keep the compressed trace file",
	)

	return cmd
}

func pack(log logrus.FieldLogger, src string, keep bool) error {
	if strings.HasSuffix(src, ".zst") {
		return fmt.Errorf("%s is already packed", src)
	}

	dst := src + ".zst"

	if err := transcode(src, dst, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	}, nil); err != nil {
		return err
	}

	if !keep {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("removing %s: %w", src, err)
		}
	}

	log.WithField("packed", dst).Info("Packed trace file")

	return nil
}

func unpack(log logrus.FieldLogger, src string, keep bool) error {
	dst, ok := strings.CutSuffix(src, ".zst")
	if !ok {
		return fmt.Errorf("%s does not have a .zst suffix", src)
	}

	if err := transcode(src, dst, nil, func(r io.Reader) (io.Reader, error) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return dec.IOReadCloser(), nil
	}); err != nil {
		return err
	}

	if !keep {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("removing %s: %w", src, err)
		}
	}

	log.WithField("unpacked", dst).Info("Unpacked trace file")

	return nil
}

// transcode copies src to dst through an optional encoder on the write
// side or decoder on the read side.
func transcode(
	src, dst string,
	encode func(io.Writer) (io.WriteCloser, error),
	decode func(io.Reader) (io.Reader, error),
) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	var (
		r io.Reader = in
		w io.Writer = out
	)

	if decode != nil {
		if r, err = decode(in); err != nil {
			return fmt.Errorf("opening zstd stream: %w", err)
		}
	}

	var enc io.WriteCloser

	if encode != nil {
		if enc, err = encode(out); err != nil {
			return fmt.Errorf("creating zstd stream: %w", err)
		}

		w = enc
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("finishing zstd stream: %w", err)
		}
	}

	return out.Close()
}
