package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/signtalk/internal/engine"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/landmark"
	"github.com/ayusman/signtalk/internal/session"
)

// replayEvent is one line of replay output.
type replayEvent struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Event  string `json:"event"` // "frame", "recognition" or "summary"
	Target string `json:"target,omitempty"`

	Predicted  string           `json:"predicted,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Status     engine.Status    `json:"status,omitempty"`
	Progress   *engine.Progress `json:"progress,omitempty"`
	Display    string           `json:"display,omitempty"`

	Final    string `json:"final,omitempty"`
	Base     string `json:"base,omitempty"`
	Peaks    int    `json:"peaks,omitempty"`
	Promoted bool   `json:"promoted,omitempty"`

	Transcript string           `json:"transcript,omitempty"`
	Summary    *session.Summary `json:"summary,omitempty"`
}

// eventWriter serializes events from concurrent replays.
type eventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *eventWriter) write(e replayEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(e)
}

func newReplayCmd(a *app) *cobra.Command {
	var (
		target string
		user   string
		frames bool
	)

	cmd := &cobra.Command{
		Use:   "replay [flags] stream.jsonl...",
		Short: "Replay recorded landmark streams, one session per file",
		Long: `Replay feeds each JSON-lines landmark stream through its own session.
Lines {"target":"ㄱ"} switch the requested label and {"recognize":true}
commits a recognition. Results are written as JSON lines to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildEngine()
			if err != nil {
				return err
			}
			defer rt.Close()

			out := &eventWriter{enc: json.NewEncoder(cmd.OutOrStdout())}
			g, ctx := errgroup.WithContext(cmd.Context())
			for _, path := range args {
				path := path
				g.Go(func() error {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					r := &replayer{
						engine: rt.engine,
						log:    a.log.WithField("file", path),
						out:    out,
						file:   path,
						frames: frames,
					}
					return r.run(ctx, landmark.NewReader(f), user, target)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "initial target label")
	cmd.Flags().StringVar(&user, "user", "", "user id recorded on the sessions")
	cmd.Flags().BoolVar(&frames, "frames", false, "emit a result line for every frame")
	return cmd
}

// replayer drives one landmark stream through one session.
type replayer struct {
	engine *engine.Engine
	log    logrus.FieldLogger
	out    *eventWriter
	file   string
	frames bool
}

func (r *replayer) run(ctx context.Context, src landmark.Source, user, target string) error {
	defer src.Close()

	id, err := r.engine.Start(user)
	if err != nil {
		return err
	}
	err = r.stream(ctx, src, id, target)
	sum, endErr := r.engine.End(id)
	if err != nil {
		return err
	}
	if endErr != nil {
		return endErr
	}
	r.log.WithField("attempts", sum.Attempts).Debug("replay finished")
	return r.out.write(replayEvent{File: r.file, Event: "summary", Summary: &sum})
}

func (r *replayer) stream(ctx context.Context, src landmark.Source, id, target string) error {
	table := r.engine.Labels().Table
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", r.file, err)
		}

		switch {
		case rec.Target != "":
			if _, err := table.Lookup(rec.Target); err != nil {
				return fmt.Errorf("%s line %d: %w", r.file, rec.Line, err)
			}
			target = rec.Target

		case rec.Recognize:
			d, err := r.engine.Recognize(ctx, id)
			if err != nil {
				return err
			}
			text, err := r.engine.TranscriptText(id)
			if err != nil {
				return err
			}
			if err := r.out.write(replayEvent{
				File:       r.file,
				Line:       rec.Line,
				Event:      "recognition",
				Target:     target,
				Confidence: d.Confidence,
				Status:     d.Status,
				Final:      table.Name(d.Outcome.Final),
				Base:       table.Name(d.Outcome.Base),
				Peaks:      d.Outcome.Peaks,
				Promoted:   d.Outcome.Promoted,
				Display:    table.Name(d.Display),
				Transcript: text,
			}); err != nil {
				return err
			}

		default:
			if target == "" {
				return fmt.Errorf("%s line %d: frame before any target, use --target", r.file, rec.Line)
			}
			req, err := r.engine.Request(id, target, rec.Frame)
			if err != nil {
				return err
			}
			res, err := r.engine.Process(ctx, req)
			if err != nil {
				return fmt.Errorf("%s line %d: %w", r.file, rec.Line, err)
			}
			if r.frames {
				if err := r.out.write(frameEvent(r.file, rec.Line, table, res)); err != nil {
					return err
				}
			}
		}
	}
}

func frameEvent(file string, line int, table *labels.Table, res engine.Result) replayEvent {
	return replayEvent{
		File:       file,
		Line:       line,
		Event:      "frame",
		Target:     table.Name(res.Target),
		Predicted:  table.Name(res.Predicted),
		Confidence: res.Confidence,
		Status:     res.Status,
		Progress:   res.Progress,
		Display:    table.Name(res.Display),
	}
}
