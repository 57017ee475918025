package service

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

// Analysis is the analysis of the latest capture of one input.
type Analysis struct {
	Path     string
	Dump     *dump.ThreadDump
	Result   *analysis.Result
	Captures int
}

// Analyze loads path and analyzes its latest capture. The capture's repair
// warnings are attached to the result.
func (s *Service) Analyze(ctx context.Context, path string) (*Analysis, error) {
	src, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.analyzeSource(src), nil
}

func (s *Service) analyzeSource(src *Source) *Analysis {
	logger := s.logger.WithDump(displayName(src.Path))
	if len(src.Captures) > 1 {
		logger.Info("input holds several captures, analyzing the last", "captures", len(src.Captures))
	}

	latest := src.Latest()
	if latest.Dump.Empty() {
		logger.Info("capture holds no threads")
	}
	res := s.analyze(latest.Dump)
	res.Warnings = append(res.Warnings, latest.Warnings...)

	logger.Debug("analysis complete",
		"threads", res.ThreadCount,
		"locks", res.LockCount,
		"wait_edges", res.WaitEdges,
		"deadlocks", len(res.Deadlocks),
		"self_waits", len(res.SelfWaits),
		"contended", len(res.Contention),
	)

	return &Analysis{
		Path:     src.Path,
		Dump:     latest.Dump,
		Result:   res,
		Captures: len(src.Captures),
	}
}

// Diagram renders the interaction diagram of in to out.
func (s *Service) Diagram(ctx context.Context, in, out string, format render.Format) error {
	a, err := s.Analyze(ctx, in)
	if err != nil {
		return err
	}
	data, err := render.Interaction(a.Dump, a.Result.Deadlocks, a.Result.Contention, s.Options(format))
	if err != nil {
		return err
	}
	return s.Write(out, data)
}

// Contention renders the contention graph of in to out.
func (s *Service) Contention(ctx context.Context, in, out string, format render.Format) error {
	a, err := s.Analyze(ctx, in)
	if err != nil {
		return err
	}
	data, err := render.Contention(a.Dump, a.Result.Contention, s.Options(format))
	if err != nil {
		return err
	}
	return s.Write(out, data)
}

// Timeline renders the state timeline over every capture of inputs, in
// argument order, to out.
func (s *Service) Timeline(ctx context.Context, inputs []string, out string, format render.Format) error {
	sources, err := s.LoadAll(ctx, inputs)
	if err != nil {
		return err
	}
	data, err := render.Timeline(series(sources), s.Options(format))
	if err != nil {
		return err
	}
	return s.Write(out, data)
}

// Visualize writes the combined report: the analysis of the last capture
// and the timeline over all captures of inputs.
func (s *Service) Visualize(ctx context.Context, inputs []string, out string, format render.Format) error {
	sources, err := s.LoadAll(ctx, inputs)
	if err != nil {
		return err
	}
	a := s.analyzeSource(sources[len(sources)-1])

	names := make([]string, len(inputs))
	for i, p := range inputs {
		names[i] = displayName(p)
	}

	data, err := render.Report(render.ReportInput{
		Source:   strings.Join(names, ", "),
		Dump:     a.Dump,
		Result:   a.Result,
		Timeline: series(sources),
	}, s.Options(format))
	if err != nil {
		return err
	}
	return s.Write(out, data)
}

// Summary renders the markdown summary of an analysis.
func (s *Service) Summary(a *Analysis) ([]byte, error) {
	return render.Summary(render.ReportInput{
		Source: displayName(a.Path),
		Dump:   a.Dump,
		Result: a.Result,
	}, s.Options(render.FormatMarkdown))
}

func series(sources []*Source) []*dump.ThreadDump {
	var dumps []*dump.ThreadDump
	for _, src := range sources {
		for _, c := range src.Captures {
			dumps = append(dumps, c.Dump)
		}
	}
	return dumps
}
