// Package render turns dumps and analysis results into diagrams and reports.
// Every renderer is a pure function of its inputs and produces identical
// bytes for identical input.
package render

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatMermaid  Format = "mermaid"
	FormatDOT      Format = "dot"
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Options configures rendering.
type Options struct {
	Format Format
	// Direction is the flowchart direction: LR, RL, TB or BT.
	Direction string
	// HideIdle omits threads that neither hold nor wait on a lock.
	HideIdle bool
	// TopN limits the contention table of reports. Zero shows every entry.
	TopN int
	// StackDepth is the number of frames shown per deadlocked thread.
	StackDepth int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Format:     FormatMermaid,
		Direction:  "LR",
		TopN:       10,
		StackDepth: 5,
	}
}

func (o Options) direction() string {
	switch d := strings.ToUpper(o.Direction); d {
	case "LR", "RL", "TB", "BT":
		return d
	default:
		return "LR"
	}
}

func (o Options) with(format Format) Options {
	o.Format = format
	return o
}

// checkFormat returns an input error when format is not one of allowed.
func checkFormat(kind string, format Format, allowed ...Format) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return core.ErrInput(core.CodeUnsupportedFormat,
		fmt.Sprintf("unsupported %s format %q (expected %s)", kind, format, strings.Join(names, ", "))).
		WithDetail("format", string(format))
}
