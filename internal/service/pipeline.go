// Package service wires the dump model, analyzers and renderers into the
// operations the CLI exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/config"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
	"github.com/hugo-lorenzo-mato/threadlens/internal/fsutil"
	"github.com/hugo-lorenzo-mato/threadlens/internal/logging"
	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

// StdioPath selects stdin for inputs and stdout for outputs.
const StdioPath = "-"

// Service runs the load, parse, analyze, render and write pipeline. Each
// call is independent; a Service may be shared by concurrent callers.
type Service struct {
	cfg     *config.Config
	logger  *logging.Logger
	stdin   io.Reader
	stdout  io.Writer
	analyze func(*dump.ThreadDump) *analysis.Result
}

// Option configures a Service.
type Option func(*Service)

// WithStdin sets the reader used for the "-" input path.
func WithStdin(r io.Reader) Option {
	return func(s *Service) { s.stdin = r }
}

// WithStdout sets the writer used for the "-" output path.
func WithStdout(w io.Writer) Option {
	return func(s *Service) { s.stdout = w }
}

// New creates a service.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{
		cfg:     cfg,
		logger:  logger,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		analyze: analysis.Analyze,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source is the parsed content of one input path.
type Source struct {
	Path     string
	Captures []dump.Capture
}

// Latest returns the last capture of the source.
func (s *Source) Latest() dump.Capture {
	return s.Captures[len(s.Captures)-1]
}

// Load reads and parses one input. The input may hold a single dump or a
// list of dumps; repair warnings are logged and kept with each capture.
func (s *Service) Load(ctx context.Context, path string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.read(path)
	if err != nil {
		return nil, err
	}

	format, err := dump.ParseFormat(s.cfg.Input.Format)
	if err != nil {
		return nil, err
	}

	captures, err := dump.ParseSequence(raw, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayName(path), err)
	}

	logger := s.logger.WithDump(displayName(path))
	for i, c := range captures {
		for _, w := range c.Warnings {
			args := []any{"kind", w.Kind, "subject", w.Subject, "detail", w.Message}
			if len(captures) > 1 {
				args = append(args, "capture", i)
			}
			logger.Warn("repaired dump data", args...)
		}
	}
	logger.Debug("dump loaded", "captures", len(captures), "bytes", len(raw))

	return &Source{Path: path, Captures: captures}, nil
}

// LoadAll loads every path in order.
func (s *Service) LoadAll(ctx context.Context, paths []string) ([]*Source, error) {
	sources := make([]*Source, 0, len(paths))
	for _, p := range paths {
		src, err := s.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (s *Service) read(path string) ([]byte, error) {
	limit := s.cfg.Input.MaxBytes

	var data []byte
	var err error
	if path == StdioPath {
		data, err = fsutil.ReadAllLimited(s.stdin, limit)
	} else {
		data, err = fsutil.ReadFileLimited(path, limit)
	}

	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fsutil.ErrTooLarge):
		return nil, core.ErrInput(core.CodeInputTooLarge,
			fmt.Sprintf("%s exceeds the input limit of %d bytes", displayName(path), limit)).
			WithDetail("path", path)
	default:
		return nil, core.ErrInput(core.CodeReadFailed, fmt.Sprintf("reading %s", displayName(path))).
			WithCause(err).
			WithDetail("path", path)
	}
}

// Options returns render options for format, filled from configuration.
func (s *Service) Options(format render.Format) render.Options {
	return render.Options{
		Format:     format,
		Direction:  s.cfg.Render.Direction,
		HideIdle:   s.cfg.Render.HideIdle,
		TopN:       s.cfg.Report.TopN,
		StackDepth: s.cfg.Report.StackDepth,
	}
}

// Write stores an artifact at path, or on stdout for "-". File writes are
// atomic: a failure leaves any previous artifact untouched.
func (s *Service) Write(path string, data []byte) error {
	if path == StdioPath {
		if _, err := s.stdout.Write(data); err != nil {
			return core.ErrRender(core.CodeWriteFailed, "writing to stdout").WithCause(err)
		}
		return nil
	}

	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return core.ErrRender(core.CodeWriteFailed, fmt.Sprintf("writing %s", path)).
			WithCause(err).
			WithDetail("path", path)
	}
	s.logger.Info("artifact written", "path", path, "bytes", len(data))
	return nil
}

func displayName(path string) string {
	if path == StdioPath {
		return "stdin"
	}
	return path
}
