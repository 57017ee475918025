// Package analysis finds deadlocks and lock contention in a parsed thread
// dump.
package analysis

import (
	"sort"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// Edge is a wait-for relation: From waits on Lock, which To owns.
type Edge struct {
	From dump.ThreadID `json:"from"`
	To   dump.ThreadID `json:"to"`
	Lock string        `json:"lock"`
}

// WaitGraph is the wait-for graph of one dump. Nodes and adjacency lists are
// sorted by thread id.
type WaitGraph struct {
	nodes []dump.ThreadID
	adj   map[dump.ThreadID][]Edge
}

// BuildWaitGraph derives the wait-for graph. Parallel edges between the same
// pair of threads collapse to one edge labelled with the smallest lock
// identity.
func BuildWaitGraph(d *dump.ThreadDump) *WaitGraph {
	g := &WaitGraph{
		nodes: d.ThreadIDs(),
		adj:   make(map[dump.ThreadID][]Edge, len(d.Threads)),
	}

	for _, id := range g.nodes {
		t, _ := d.Thread(id)
		byTarget := make(map[dump.ThreadID]string)
		for _, identity := range t.LocksWaiting {
			l, ok := d.Lock(identity)
			if !ok || l.Owner == nil || *l.Owner == id {
				continue
			}
			if prev, seen := byTarget[*l.Owner]; !seen || identity < prev {
				byTarget[*l.Owner] = identity
			}
		}

		edges := make([]Edge, 0, len(byTarget))
		for to, lock := range byTarget {
			edges = append(edges, Edge{From: id, To: to, Lock: lock})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
		g.adj[id] = edges
	}

	return g
}

// Edges returns the outgoing edges of a thread.
func (g *WaitGraph) Edges(from dump.ThreadID) []Edge {
	return g.adj[from]
}

// EdgeCount returns the number of edges.
func (g *WaitGraph) EdgeCount() int {
	n := 0
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n
}
