package render

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// lane is one thread's states across the captures. A nil entry means the
// thread was absent from that capture.
type lane struct {
	id     dump.ThreadID
	label  string
	states []*dump.State
}

// run is a stretch of consecutive captures with the same state.
type run struct {
	state      dump.State
	start, end int
}

func (l *lane) runs() []run {
	var runs []run
	for i, s := range l.states {
		if s == nil {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].end == i && runs[n-1].state == *s {
			runs[n-1].end = i + 1
			continue
		}
		runs = append(runs, run{state: *s, start: i, end: i + 1})
	}
	return runs
}

func (l *lane) transitions() int {
	count := 0
	var prev *dump.State
	for _, s := range l.states {
		if s != nil && prev != nil && *s != *prev {
			count++
		}
		prev = s
	}
	return count
}

// buildLanes returns one lane per thread id seen in any capture, in
// ascending id order. The label comes from the latest capture holding the
// thread.
func buildLanes(dumps []*dump.ThreadDump) []*lane {
	byID := make(map[dump.ThreadID]*lane)
	var ids []dump.ThreadID
	for i, d := range dumps {
		for _, t := range d.Threads {
			l, ok := byID[t.ID]
			if !ok {
				l = &lane{id: t.ID, states: make([]*dump.State, len(dumps))}
				byID[t.ID] = l
				ids = append(ids, t.ID)
			}
			state := t.State
			l.states[i] = &state
			l.label = threadLabel(&t)
		}
	}

	sortThreadIDs(ids)
	lanes := make([]*lane, len(ids))
	for i, id := range ids {
		lanes[i] = byID[id]
	}
	return lanes
}

// Timeline renders per-thread state lanes over an ordered series of
// captures. A single capture renders a one-column timeline.
func Timeline(dumps []*dump.ThreadDump, opts Options) ([]byte, error) {
	if err := checkFormat("timeline", opts.Format, FormatMermaid, FormatJSON, FormatTable); err != nil {
		return nil, err
	}

	lanes := buildLanes(dumps)
	switch opts.Format {
	case FormatJSON:
		return timelineJSON(dumps, lanes)
	case FormatTable:
		return timelineTable(dumps, lanes), nil
	default:
		return timelineGantt(dumps, lanes), nil
	}
}

func ganttTag(s dump.State) string {
	switch s {
	case dump.StateBlocked:
		return "crit, "
	case dump.StateWaiting, dump.StateTimedWaiting:
		return "active, "
	case dump.StateTerminated:
		return "done, "
	default:
		return ""
	}
}

func timelineGantt(dumps []*dump.ThreadDump, lanes []*lane) []byte {
	var sb strings.Builder
	sb.WriteString("gantt\n")
	sb.WriteString(fmt.Sprintf("    title Thread states across %s\n", plural(len(dumps), "capture", "captures")))
	sb.WriteString("    dateFormat X\n")
	sb.WriteString("    axisFormat %s\n")

	for _, l := range lanes {
		sb.WriteString(fmt.Sprintf("    section %s\n", escapeGantt(l.label)))
		for i, r := range l.runs() {
			sb.WriteString(fmt.Sprintf("    %s :%s%s_%d, %d, %d\n",
				r.state, ganttTag(r.state), threadNodeID(l.id), i, r.start, r.end))
		}
	}
	return []byte(sb.String())
}

type timelineCapture struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
}

type timelineLane struct {
	ThreadID    dump.ThreadID `json:"thread_id"`
	Label       string        `json:"label"`
	States      []*dump.State `json:"states"`
	Transitions int           `json:"transitions"`
}

type timelineDoc struct {
	Captures []timelineCapture `json:"captures"`
	Lanes    []timelineLane    `json:"lanes"`
}

func timelineJSON(dumps []*dump.ThreadDump, lanes []*lane) ([]byte, error) {
	doc := timelineDoc{
		Captures: make([]timelineCapture, len(dumps)),
		Lanes:    make([]timelineLane, len(lanes)),
	}
	for i, d := range dumps {
		doc.Captures[i] = timelineCapture{Index: i, Timestamp: d.Timestamp}
	}
	for i, l := range lanes {
		doc.Lanes[i] = timelineLane{
			ThreadID:    l.id,
			Label:       l.label,
			States:      l.states,
			Transitions: l.transitions(),
		}
	}
	return marshalJSON(doc)
}

func captureHeader(i int, d *dump.ThreadDump) string {
	if d.Timestamp == "" {
		return fmt.Sprintf("#%d", i)
	}
	return fmt.Sprintf("#%d %s", i, d.Timestamp)
}

func timelineTable(dumps []*dump.ThreadDump, lanes []*lane) []byte {
	var sb strings.Builder

	sb.WriteString("| Thread |")
	for i, d := range dumps {
		sb.WriteString(" " + escapeTableCell(captureHeader(i, d)) + " |")
	}
	sb.WriteString("\n|---|")
	for range dumps {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, l := range lanes {
		sb.WriteString("| " + escapeTableCell(l.label) + " |")
		for _, s := range l.states {
			cell := "-"
			if s != nil {
				cell = string(*s)
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}
