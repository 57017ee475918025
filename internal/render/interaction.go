package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// Node classes shared by the Mermaid and DOT renderings.
const (
	classDeadlock  = "deadlock"
	classBlocked   = "blocked"
	classWaiting   = "waiting"
	classRunnable  = "runnable"
	classInactive  = "inactive"
	classLock      = "lock"
	classContended = "contended"
	classOrphan    = "orphan"
)

var classFill = map[string]string{
	classDeadlock:  "#d63031",
	classBlocked:   "#e17055",
	classWaiting:   "#fdcb6e",
	classRunnable:  "#00b894",
	classInactive:  "#b2bec3",
	classLock:      "#dfe6e9",
	classContended: "#74b9ff",
	classOrphan:    "#a29bfe",
}

var interactionClassDefs = []string{
	"classDef deadlock fill:#d63031,stroke:#2d3436,stroke-width:3px,color:#fff",
	"classDef blocked fill:#e17055,stroke:#2d3436,color:#fff",
	"classDef waiting fill:#fdcb6e,stroke:#2d3436",
	"classDef runnable fill:#00b894,stroke:#2d3436,color:#fff",
	"classDef inactive fill:#b2bec3,stroke:#636e72",
	"classDef lock fill:#dfe6e9,stroke:#636e72",
	"classDef contended fill:#74b9ff,stroke:#0984e3,stroke-width:2px",
	"classDef orphan fill:#a29bfe,stroke:#6c5ce7,stroke-dasharray:4 2",
}

const cycleStroke = "#d63031"

type diagramNode struct {
	id       string
	label    []string
	class    string
	threadID *dump.ThreadID
	state    dump.State
	lock     string
	weight   int
	orphan   bool
}

type diagramEdge struct {
	from, to string
	kind     string
	label    string
	cycle    bool
	value    int
}

type interactionModel struct {
	timestamp string
	threads   []diagramNode
	locks     []diagramNode
	edges     []diagramEdge
}

// Interaction renders threads, the locks they hold or wait on, and the
// held-by and waits-for relations between them. Deadlocked threads and the
// edges of each cycle are highlighted.
func Interaction(d *dump.ThreadDump, groups []analysis.DeadlockGroup, contention []analysis.ContentionEntry, opts Options) ([]byte, error) {
	if err := checkFormat("interaction diagram", opts.Format, FormatMermaid, FormatDOT, FormatJSON); err != nil {
		return nil, err
	}

	m := buildInteraction(d, groups, contention, opts)
	switch opts.Format {
	case FormatDOT:
		return m.dot(opts), nil
	case FormatJSON:
		return m.json()
	default:
		return m.mermaid(opts), nil
	}
}

func threadClass(t *dump.Thread, deadlocked bool) string {
	if deadlocked {
		return classDeadlock
	}
	switch t.State {
	case dump.StateBlocked:
		return classBlocked
	case dump.StateWaiting, dump.StateTimedWaiting:
		return classWaiting
	case dump.StateRunnable:
		return classRunnable
	default:
		return classInactive
	}
}

func buildInteraction(d *dump.ThreadDump, groups []analysis.DeadlockGroup, contention []analysis.ContentionEntry, opts Options) *interactionModel {
	members := analysis.DeadlockedThreads(groups)
	cycle := analysis.CycleEdges(groups)
	cycleOwner := make(map[string]dump.ThreadID)
	for e := range cycle {
		cycleOwner[e.Lock] = e.To
	}
	contended := make(map[string]bool, len(contention))
	for _, c := range contention {
		contended[c.LockIdentity] = true
	}

	m := &interactionModel{timestamp: d.Timestamp}

	for _, id := range d.ThreadIDs() {
		t, _ := d.Thread(id)
		if opts.HideIdle && t.IsIdle() && !members[id] {
			continue
		}
		tid := t.ID
		m.threads = append(m.threads, diagramNode{
			id:       threadNodeID(t.ID),
			label:    []string{truncateLabel(threadLabel(t), 60), string(t.State)},
			class:    threadClass(t, members[id]),
			threadID: &tid,
			state:    t.State,
		})
	}

	var shown []dump.Lock
	for _, l := range d.Locks {
		if l.Owner != nil || len(l.Waiters) > 0 {
			shown = append(shown, l)
		}
	}
	sort.Slice(shown, func(i, j int) bool { return shown[i].Identity < shown[j].Identity })

	identities := make([]string, len(shown))
	for i, l := range shown {
		identities[i] = l.Identity
	}
	ids := lockIDs(identities)

	for _, l := range shown {
		class := classLock
		switch {
		case l.Owner == nil:
			class = classOrphan
		case contended[l.Identity]:
			class = classContended
		}
		label := []string{truncateLabel(l.Identity, 60)}
		if len(l.Waiters) > 0 {
			label = append(label, plural(len(l.Waiters), "waiter", "waiters"))
		}
		if l.Owner == nil {
			label = append(label, "owner unknown")
		}
		m.locks = append(m.locks, diagramNode{
			id:     ids[l.Identity],
			label:  label,
			class:  class,
			lock:   l.Identity,
			weight: len(l.Waiters),
		})

		if l.Owner != nil {
			owner, onCycle := cycleOwner[l.Identity]
			m.edges = append(m.edges, diagramEdge{
				from:  ids[l.Identity],
				to:    threadNodeID(*l.Owner),
				kind:  "held_by",
				label: "held by",
				cycle: onCycle && owner == *l.Owner,
				value: 1,
			})
		}
		for _, w := range l.Waiters {
			onCycle := l.Owner != nil && cycle[analysis.Edge{From: w, To: *l.Owner, Lock: l.Identity}]
			m.edges = append(m.edges, diagramEdge{
				from:  threadNodeID(w),
				to:    ids[l.Identity],
				kind:  "waits",
				label: "waits",
				cycle: onCycle,
				value: 1,
			})
		}
	}

	return m
}

func (m *interactionModel) mermaid(opts Options) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("flowchart %s\n", opts.direction()))

	if len(m.threads) == 0 && len(m.locks) == 0 {
		sb.WriteString("    empty[\"no threads or locks captured\"]:::inactive\n")
	}
	for _, n := range m.threads {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]:::%s\n", n.id, mermaidLines(n.label), n.class))
	}
	for _, n := range m.locks {
		sb.WriteString(fmt.Sprintf("    %s{{\"%s\"}}:::%s\n", n.id, mermaidLines(n.label), n.class))
	}

	var cycleLinks []string
	for i, e := range m.edges {
		arrow := "-->"
		if e.kind == "waits" {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%s| %s\n", e.from, arrow, e.label, e.to))
		if e.cycle {
			cycleLinks = append(cycleLinks, fmt.Sprintf("%d", i))
		}
	}
	if len(cycleLinks) > 0 {
		sb.WriteString(fmt.Sprintf("    linkStyle %s stroke:%s,stroke-width:3px\n", strings.Join(cycleLinks, ","), cycleStroke))
	}

	for _, def := range interactionClassDefs {
		sb.WriteString("    " + def + "\n")
	}
	return []byte(sb.String())
}

func (m *interactionModel) dot(opts Options) []byte {
	var sb strings.Builder
	sb.WriteString("digraph interaction {\n")
	sb.WriteString(fmt.Sprintf("    rankdir=%s;\n", opts.direction()))
	sb.WriteString("    node [fontname=\"Helvetica\", style=filled];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("\n")

	for _, n := range m.threads {
		extra := ""
		if n.class == classDeadlock {
			extra = ", fontcolor=\"white\", penwidth=2"
		}
		sb.WriteString(fmt.Sprintf("    %s [label=\"%s\", shape=box, fillcolor=\"%s\"%s];\n",
			sanitizeDOTID(n.id), escapeDOTLabel(strings.Join(n.label, "\n")), classFill[n.class], extra))
	}
	for _, n := range m.locks {
		extra := ""
		if n.class == classOrphan {
			extra = ", style=\"filled,dashed\""
		}
		sb.WriteString(fmt.Sprintf("    %s [label=\"%s\", shape=hexagon, fillcolor=\"%s\"%s];\n",
			sanitizeDOTID(n.id), escapeDOTLabel(strings.Join(n.label, "\n")), classFill[n.class], extra))
	}

	if len(m.edges) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range m.edges {
		attrs := []string{fmt.Sprintf("label=\"%s\"", e.label)}
		if e.kind == "waits" {
			attrs = append(attrs, "style=dashed")
		}
		if e.cycle {
			attrs = append(attrs, fmt.Sprintf("color=\"%s\"", cycleStroke), "penwidth=2.5")
		}
		sb.WriteString(fmt.Sprintf("    %s -> %s [%s];\n", sanitizeDOTID(e.from), sanitizeDOTID(e.to), strings.Join(attrs, ", ")))
	}

	sb.WriteString("}\n")
	return []byte(sb.String())
}

func (m *interactionModel) json() ([]byte, error) {
	doc := graphDoc{
		Graph:     "interaction",
		Timestamp: m.timestamp,
		Nodes:     make([]graphNode, 0, len(m.threads)+len(m.locks)),
		Links:     make([]graphLink, 0, len(m.edges)),
	}
	for _, n := range m.threads {
		doc.Nodes = append(doc.Nodes, graphNode{
			ID: n.id, Kind: "thread", Label: strings.Join(n.label, " "), Class: n.class,
			ThreadID: n.threadID, State: n.state,
		})
	}
	for _, n := range m.locks {
		doc.Nodes = append(doc.Nodes, graphNode{
			ID: n.id, Kind: "lock", Label: strings.Join(n.label, " "), Class: n.class,
			Lock: n.lock, Weight: n.weight,
		})
	}
	for _, e := range m.edges {
		doc.Links = append(doc.Links, graphLink{Source: e.from, Target: e.to, Kind: e.kind, Cycle: e.cycle, Value: e.value})
	}
	return marshalJSON(doc)
}

func mermaidLines(lines []string) string {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = escapeMermaidLabel(l)
	}
	return strings.Join(escaped, "<br/>")
}
