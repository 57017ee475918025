package render

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	"text/template"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// ReportInput is everything a report is built from. Dump and Result describe
// the analyzed capture; Timeline is the ordered capture series and defaults
// to Dump alone.
type ReportInput struct {
	Source   string
	Dump     *dump.ThreadDump
	Result   *analysis.Result
	Timeline []*dump.ThreadDump
}

type summaryRow struct {
	Label string
	Value int
}

type stateRow struct {
	State dump.State
	Count int
}

type memberView struct {
	Label      string
	State      dump.State
	WaitsFor   string
	HeldBy     string
	Stack      []string
	MoreFrames int
}

type deadlockView struct {
	Index   int
	Members []memberView
}

type selfWaitView struct {
	Thread string
	Lock   string
}

type contentionRow struct {
	Lock    string
	Owner   string
	Waiters int
	Threads string
}

type reportView struct {
	Title      string
	Source     string
	Timestamp  string
	Summary    []summaryRow
	States     []stateRow
	Deadlocks  []deadlockView
	SelfWaits  []selfWaitView
	Contention []contentionRow
	// ContentionTotal is the number of contended locks before the top N cut.
	ContentionTotal int
	Warnings        []dump.Warning
	Captures        int

	InteractionDiagram string
	ContentionDiagram  string
	TimelineDiagram    string
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"code": code,
		"cell": escapeTableCell,
		"join": strings.Join,
	}
}

var markdownTemplates = sync.OnceValues(func() (*template.Template, error) {
	return template.New("markdown").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.md.tmpl")
})

var htmlTemplate = sync.OnceValues(func() (*htmltemplate.Template, error) {
	return htmltemplate.New("report.html.tmpl").
		Funcs(htmltemplate.FuncMap{"join": strings.Join}).
		ParseFS(templatesFS, "templates/report.html.tmpl")
})

// Report renders the combined report as markdown or a self-contained HTML
// page. Sections always appear in the same order; empty analyses say so
// instead of omitting the section.
func Report(in ReportInput, opts Options) ([]byte, error) {
	if err := checkFormat("report", opts.Format, FormatMarkdown, FormatHTML); err != nil {
		return nil, err
	}

	view, err := buildReportView(in, opts, true)
	if err != nil {
		return nil, err
	}
	view.Title = "Thread dump report"

	var buf bytes.Buffer
	if opts.Format == FormatHTML {
		tmpl, err := htmlTemplate()
		if err != nil {
			return nil, templateError("report.html.tmpl", err)
		}
		if err := tmpl.Execute(&buf, view); err != nil {
			return nil, templateError("report.html.tmpl", err)
		}
		return buf.Bytes(), nil
	}

	if err := executeMarkdown(&buf, "report.md.tmpl", view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Summary renders the analysis of one capture as markdown, without
// diagrams.
func Summary(in ReportInput, opts Options) ([]byte, error) {
	view, err := buildReportView(in, opts, false)
	if err != nil {
		return nil, err
	}
	view.Title = "Thread dump analysis"

	var buf bytes.Buffer
	if err := executeMarkdown(&buf, "summary.md.tmpl", view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func executeMarkdown(buf *bytes.Buffer, name string, view *reportView) error {
	tmpl, err := markdownTemplates()
	if err != nil {
		return templateError(name, err)
	}
	if err := tmpl.ExecuteTemplate(buf, name, view); err != nil {
		return templateError(name, err)
	}
	return nil
}

func templateError(name string, err error) error {
	return core.ErrRender(core.CodeRenderFailed, fmt.Sprintf("rendering %s", name)).WithCause(err)
}

func buildReportView(in ReportInput, opts Options, diagrams bool) (*reportView, error) {
	d := in.Dump
	if d == nil {
		d = &dump.ThreadDump{}
	}
	res := in.Result
	if res == nil {
		res = analysis.Analyze(d)
	}
	series := in.Timeline
	if len(series) == 0 {
		series = []*dump.ThreadDump{d}
	}

	view := &reportView{
		Source:          in.Source,
		Timestamp:       d.Timestamp,
		Warnings:        res.Warnings,
		ContentionTotal: len(res.Contention),
		Captures:        len(series),
		Summary: []summaryRow{
			{Label: "Threads", Value: res.ThreadCount},
			{Label: "Locks", Value: res.LockCount},
			{Label: "Deadlock groups", Value: len(res.Deadlocks)},
			{Label: "Self-wait anomalies", Value: len(res.SelfWaits)},
			{Label: "Contended locks", Value: len(res.Contention)},
			{Label: "Warnings", Value: len(res.Warnings)},
		},
	}

	for _, s := range dump.AllStates() {
		if n := res.StateCounts[s]; n > 0 {
			view.States = append(view.States, stateRow{State: s, Count: n})
		}
	}

	for i, g := range res.Deadlocks {
		dv := deadlockView{Index: i + 1}
		for _, e := range g.Edges() {
			mv := memberView{
				Label:    threadRef(d, e.From),
				WaitsFor: e.Lock,
				HeldBy:   threadRef(d, e.To),
			}
			if t, ok := d.Thread(e.From); ok {
				mv.State = t.State
				mv.Stack, mv.MoreFrames = topFrames(t.StackTrace, opts.StackDepth)
			}
			dv.Members = append(dv.Members, mv)
		}
		view.Deadlocks = append(view.Deadlocks, dv)
	}

	for _, sw := range res.SelfWaits {
		view.SelfWaits = append(view.SelfWaits, selfWaitView{Thread: threadRef(d, sw.Thread), Lock: sw.Lock})
	}

	for _, c := range analysis.TopN(res.Contention, opts.TopN) {
		row := contentionRow{Lock: c.LockIdentity, Owner: "unknown", Waiters: c.WaiterCount}
		if c.Owner != nil {
			row.Owner = threadRef(d, *c.Owner)
		}
		names := make([]string, len(c.WaiterIDs))
		for i, w := range c.WaiterIDs {
			names[i] = threadRef(d, w)
		}
		row.Threads = strings.Join(names, ", ")
		view.Contention = append(view.Contention, row)
	}

	if !diagrams {
		return view, nil
	}

	mermaid := opts.with(FormatMermaid)
	interaction, err := Interaction(d, res.Deadlocks, res.Contention, mermaid)
	if err != nil {
		return nil, err
	}
	contention, err := Contention(d, res.Contention, mermaid)
	if err != nil {
		return nil, err
	}
	timeline, err := Timeline(series, mermaid)
	if err != nil {
		return nil, err
	}
	view.InteractionDiagram = strings.TrimRight(string(interaction), "\n")
	view.ContentionDiagram = strings.TrimRight(string(contention), "\n")
	view.TimelineDiagram = strings.TrimRight(string(timeline), "\n")
	return view, nil
}

// topFrames returns at most depth frames and the number left out. A
// negative depth keeps every frame.
func topFrames(stack []string, depth int) ([]string, int) {
	if depth < 0 || depth >= len(stack) {
		return stack, 0
	}
	return stack[:depth], len(stack) - depth
}
