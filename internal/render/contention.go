package render

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

var contentionClassDefs = []string{
	"classDef w1 fill:#dfe6e9,stroke:#636e72",
	"classDef w2 fill:#ffeaa7,stroke:#fdcb6e",
	"classDef w3 fill:#fab1a0,stroke:#e17055,stroke-width:2px",
	"classDef w4 fill:#d63031,stroke:#2d3436,stroke-width:3px,color:#fff",
	"classDef orphan stroke-dasharray:4 2",
	"classDef blocked fill:#e17055,stroke:#2d3436,color:#fff",
	"classDef waiting fill:#fdcb6e,stroke:#2d3436",
	"classDef runnable fill:#00b894,stroke:#2d3436,color:#fff",
	"classDef inactive fill:#b2bec3,stroke:#636e72",
}

var tierFill = map[int]string{
	1: "#dfe6e9",
	2: "#ffeaa7",
	3: "#fab1a0",
	4: "#d63031",
}

// weightTier buckets count into 1..4 relative to the largest count.
func weightTier(count, max int) int {
	if max <= 0 || count <= 0 {
		return 1
	}
	tier := (4*count + max - 1) / max
	if tier < 1 {
		return 1
	}
	if tier > 4 {
		return 4
	}
	return tier
}

// Contention renders the bipartite graph of contended locks and the threads
// waiting on them. Lock nodes are weighted by waiter count; each edge is
// labelled with the waiter's arrival position.
func Contention(d *dump.ThreadDump, contention []analysis.ContentionEntry, opts Options) ([]byte, error) {
	if err := checkFormat("contention graph", opts.Format, FormatMermaid, FormatDOT, FormatJSON); err != nil {
		return nil, err
	}

	m := buildContention(d, contention)
	switch opts.Format {
	case FormatDOT:
		return m.dot(opts), nil
	case FormatJSON:
		return m.json()
	default:
		return m.mermaid(opts), nil
	}
}

type contentionModel struct {
	timestamp string
	locks     []diagramNode
	threads   []diagramNode
	edges     []diagramEdge
	max       int
}

func buildContention(d *dump.ThreadDump, contention []analysis.ContentionEntry) *contentionModel {
	m := &contentionModel{timestamp: d.Timestamp}

	identities := make([]string, len(contention))
	for i, c := range contention {
		identities[i] = c.LockIdentity
		if c.WaiterCount > m.max {
			m.max = c.WaiterCount
		}
	}
	ids := lockIDs(identities)

	seen := make(map[dump.ThreadID]bool)
	var waiters []dump.ThreadID
	for _, c := range contention {
		label := []string{truncateLabel(c.LockIdentity, 60), plural(c.WaiterCount, "waiter", "waiters")}
		class := fmt.Sprintf("w%d", weightTier(c.WaiterCount, m.max))
		if c.OwnerUnknown {
			label = append(label, "owner unknown")
		} else {
			label = append(label, "held by "+threadRef(d, *c.Owner))
		}
		m.locks = append(m.locks, diagramNode{
			id:     ids[c.LockIdentity],
			label:  label,
			class:  class,
			lock:   c.LockIdentity,
			weight: c.WaiterCount,
			orphan: c.OwnerUnknown,
		})
		for pos, w := range c.WaiterIDs {
			m.edges = append(m.edges, diagramEdge{
				from:  ids[c.LockIdentity],
				to:    threadNodeID(w),
				kind:  "waiter",
				label: fmt.Sprintf("%d", pos+1),
				value: pos + 1,
			})
			if !seen[w] {
				seen[w] = true
				waiters = append(waiters, w)
			}
		}
	}

	sortThreadIDs(waiters)
	for _, id := range waiters {
		tid := id
		node := diagramNode{id: threadNodeID(id), label: []string{fmt.Sprintf("#%d", id)}, class: classInactive, threadID: &tid}
		if t, ok := d.Thread(id); ok {
			node.label = []string{truncateLabel(threadLabel(t), 60)}
			node.class = threadClass(t, false)
			node.state = t.State
		}
		m.threads = append(m.threads, node)
	}
	return m
}

func (m *contentionModel) mermaid(opts Options) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("flowchart %s\n", opts.direction()))

	if len(m.locks) == 0 {
		sb.WriteString("    empty[\"no contended locks\"]:::inactive\n")
	}
	for _, n := range m.locks {
		sb.WriteString(fmt.Sprintf("    %s{{\"%s\"}}:::%s\n", n.id, mermaidLines(n.label), n.class))
	}
	for _, n := range m.threads {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]:::%s\n", n.id, mermaidLines(n.label), n.class))
	}
	for _, e := range m.edges {
		sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", e.from, e.label, e.to))
	}
	for _, n := range m.locks {
		if n.orphan {
			sb.WriteString(fmt.Sprintf("    class %s orphan\n", n.id))
		}
	}
	for _, def := range contentionClassDefs {
		sb.WriteString("    " + def + "\n")
	}
	return []byte(sb.String())
}

func (m *contentionModel) dot(opts Options) []byte {
	var sb strings.Builder
	sb.WriteString("digraph contention {\n")
	sb.WriteString(fmt.Sprintf("    rankdir=%s;\n", opts.direction()))
	sb.WriteString("    node [fontname=\"Helvetica\", style=filled];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("\n")

	for _, n := range m.locks {
		style := ""
		if n.orphan {
			style = ", style=\"filled,dashed\""
		}
		sb.WriteString(fmt.Sprintf("    %s [label=\"%s\", shape=hexagon, fillcolor=\"%s\", width=%.2f, penwidth=%d%s];\n",
			sanitizeDOTID(n.id), escapeDOTLabel(strings.Join(n.label, "\n")),
			tierFill[weightTier(n.weight, m.max)], 0.75+0.25*float64(n.weight), n.weight, style))
	}
	for _, n := range m.threads {
		sb.WriteString(fmt.Sprintf("    %s [label=\"%s\", shape=box, fillcolor=\"%s\"];\n",
			sanitizeDOTID(n.id), escapeDOTLabel(strings.Join(n.label, "\n")), classFill[n.class]))
	}

	if len(m.edges) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range m.edges {
		sb.WriteString(fmt.Sprintf("    %s -> %s [label=\"%s\"];\n", sanitizeDOTID(e.from), sanitizeDOTID(e.to), e.label))
	}
	sb.WriteString("}\n")
	return []byte(sb.String())
}

func (m *contentionModel) json() ([]byte, error) {
	doc := graphDoc{
		Graph:     "contention",
		Timestamp: m.timestamp,
		Nodes:     make([]graphNode, 0, len(m.locks)+len(m.threads)),
		Links:     make([]graphLink, 0, len(m.edges)),
	}
	for _, n := range m.locks {
		class := n.class
		if n.orphan {
			class += " " + classOrphan
		}
		doc.Nodes = append(doc.Nodes, graphNode{
			ID: n.id, Kind: "lock", Label: strings.Join(n.label, " "), Class: class,
			Lock: n.lock, Weight: n.weight,
		})
	}
	for _, n := range m.threads {
		doc.Nodes = append(doc.Nodes, graphNode{
			ID: n.id, Kind: "thread", Label: strings.Join(n.label, " "), Class: n.class,
			ThreadID: n.threadID, State: n.state,
		})
	}
	for _, e := range m.edges {
		doc.Links = append(doc.Links, graphLink{Source: e.from, Target: e.to, Kind: e.kind, Value: e.value})
	}
	return marshalJSON(doc)
}
