package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// threadNodeID is a diagram-safe node id for a thread.
func threadNodeID(id dump.ThreadID) string {
	if id < 0 {
		return fmt.Sprintf("tm%d", -int64(id))
	}
	return fmt.Sprintf("t%d", int64(id))
}

// lockIDs assigns diagram-safe node ids to lock identities in sorted order.
func lockIDs(identities []string) map[string]string {
	sorted := append([]string{}, identities...)
	sort.Strings(sorted)
	ids := make(map[string]string, len(sorted))
	for i, identity := range sorted {
		ids[identity] = fmt.Sprintf("l%d", i)
	}
	return ids
}

func sortThreadIDs(ids []dump.ThreadID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// threadLabel is "name (#id)".
func threadLabel(t *dump.Thread) string {
	return fmt.Sprintf("%s (#%d)", t.DisplayName(), t.ID)
}

// threadRef labels a thread id, falling back to the bare id for threads the
// dump does not contain.
func threadRef(d *dump.ThreadDump, id dump.ThreadID) string {
	if t, ok := d.Thread(id); ok {
		return threadLabel(t)
	}
	return fmt.Sprintf("#%d", id)
}

func sanitizeDOTID(s string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(s, "\"", "\\\""))
}

func escapeMermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
		"\n", " ",
	)
	return replacer.Replace(s)
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}

// escapeGantt strips characters that end a gantt task or section name. A
// '#' starts a comment, so "name (#1)" becomes "name (1)".
func escapeGantt(s string) string {
	replacer := strings.NewReplacer(
		":", " ",
		";", " ",
		"#", "",
		"\n", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}

// escapeTableCell keeps markdown table cells on one row.
func escapeTableCell(s string) string {
	replacer := strings.NewReplacer(
		"|", "\\|",
		"\n", " ",
	)
	return replacer.Replace(s)
}

// code wraps s in a markdown code span.
func code(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}

func truncateLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// graphNode and graphLink form the JSON graph documents.
type graphNode struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Label    string         `json:"label"`
	Class    string         `json:"class"`
	ThreadID *dump.ThreadID `json:"thread_id,omitempty"`
	State    dump.State     `json:"state,omitempty"`
	Lock     string         `json:"lock,omitempty"`
	Weight   int            `json:"weight,omitempty"`
}

type graphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Cycle  bool   `json:"cycle,omitempty"`
	Value  int    `json:"value"`
}

type graphDoc struct {
	Graph     string      `json:"graph"`
	Timestamp string      `json:"timestamp"`
	Nodes     []graphNode `json:"nodes"`
	Links     []graphLink `json:"links"`
}
