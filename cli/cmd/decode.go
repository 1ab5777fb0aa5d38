package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/cli/reader"
	"github.com/pithecene-io/rdint/cli/render"
	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/types"
)

// DecodeCommand returns the decode command: a single pass listing without
// header scan, drawing or persistence.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "List the instructions of an RD file",
		ArgsUsage: "<file.rd>",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after N instructions (0 = all)",
			},
		),
		Action: decodeAction,
	}
}

// decodeListing is the outcome of a decode pass.
type decodeListing struct {
	Rows    []reader.TraceRow
	Invalid *stream.Diagnostic
}

func decodeAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for decode command", 1)
	}
	if c.NArg() != 1 {
		return errors.New("exactly one RD file is required\n  Usage: rdint decode [options] <file.rd>")
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("cannot open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	var listing decodeListing
	if r.Format() == render.FormatTable {
		format := commandFormatter(!c.Bool("no-color") && isStdoutTTY())
		out := bufio.NewWriter(os.Stdout)
		listing, err = decodeStream(f, c.Int("limit"), func(cmd *command.Command, _ *types.TraceRecord) {
			fmt.Fprintln(out, format(cmd))
		})
		if flushErr := out.Flush(); err == nil {
			err = flushErr
		}
	} else {
		listing, err = decodeStream(f, c.Int("limit"), nil)
		if err == nil {
			err = r.Render(listing.Rows)
		}
	}
	if err != nil {
		return err
	}

	if listing.Invalid != nil {
		fmt.Fprintf(os.Stderr, "invalid stream at 0x%08x: %s\n", listing.Invalid.Offset, listing.Invalid.Reason)
		_ = stream.WriteBacklog(os.Stderr, listing.Invalid.Backlog)
		return cli.Exit("", 1)
	}
	return nil
}

// decodeStream frames and executes every instruction against a state with
// no drawer. Each decoded command is reported to emit when set; rows are
// collected otherwise. Invalidation is returned in the listing, not as an
// error.
func decodeStream(r io.Reader, limit int, emit func(*command.Command, *types.TraceRecord)) (decodeListing, error) {
	var listing decodeListing

	framer, err := stream.Open(r)
	if err != nil {
		var fe *stream.FrameError
		if errors.As(err, &fe) {
			listing.Invalid = &stream.Diagnostic{Reason: fe.Error(), Offset: fe.Offset}
			return listing, nil
		}
		return listing, err
	}

	state := plotter.NewFullState(nil)
	var seq int64
	for limit <= 0 || seq < int64(limit) {
		in, err := framer.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			listing.Invalid = framer.Diagnostic()
			if listing.Invalid == nil {
				listing.Invalid = framer.Invalidate(err.Error())
			}
			break
		}

		cmd := command.Decode(in)
		cmd.Process(state)
		seq++
		rec := &types.TraceRecord{
			Seq:      seq,
			Offset:   in.Offset,
			Data:     in.Data,
			Kind:     cmd.Kind.String(),
			Category: cmd.Category().String(),
			Text:     cmd.String(),
			Position: state.Position(),
			Layer:    state.LayerIndex(),
		}
		if emit != nil {
			emit(&cmd, rec)
			continue
		}
		listing.Rows = append(listing.Rows, reader.NewTraceRow(rec))
	}
	return listing, nil
}
