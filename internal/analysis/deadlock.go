package analysis

import (
	"sort"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// DeadlockGroup is one cycle in the wait-for graph. ThreadIDs starts at the
// smallest member; LockChain[i] is the lock ThreadIDs[i] waits on, owned by
// the next thread in the cycle.
type DeadlockGroup struct {
	ThreadIDs []dump.ThreadID `json:"thread_ids"`
	LockChain []string        `json:"lock_chain"`
}

// Edges returns the cycle as wait-for edges.
func (g DeadlockGroup) Edges() []Edge {
	n := len(g.ThreadIDs)
	edges := make([]Edge, 0, n)
	for i, id := range g.ThreadIDs {
		edges = append(edges, Edge{From: id, To: g.ThreadIDs[(i+1)%n], Lock: g.LockChain[i]})
	}
	return edges
}

// Contains reports whether id is a member of the cycle.
func (g DeadlockGroup) Contains(id dump.ThreadID) bool {
	for _, m := range g.ThreadIDs {
		if m == id {
			return true
		}
	}
	return false
}

type color uint8

const (
	white color = iota
	grey
	black
)

// FindDeadlocks reports every distinct cycle reachable by a depth-first
// traversal of the wait-for graph. The result does not depend on the order
// threads or locks appear in the input.
func FindDeadlocks(d *dump.ThreadDump) []DeadlockGroup {
	return findCycles(BuildWaitGraph(d))
}

func findCycles(g *WaitGraph) []DeadlockGroup {
	colors := make(map[dump.ThreadID]color, len(g.nodes))
	onStack := make(map[dump.ThreadID]int, len(g.nodes))
	var stack []dump.ThreadID
	var via []string // via[i] is the lock stack[i] waits on to reach stack[i+1]

	seen := make(map[string]bool)
	groups := make([]DeadlockGroup, 0)

	var visit func(id dump.ThreadID)
	visit = func(id dump.ThreadID) {
		colors[id] = grey
		onStack[id] = len(stack)
		stack = append(stack, id)

		for _, e := range g.adj[id] {
			switch colors[e.To] {
			case white:
				via = append(via, e.Lock)
				visit(e.To)
				via = via[:len(via)-1]
			case grey:
				start := onStack[e.To]
				ids := append([]dump.ThreadID{}, stack[start:]...)
				chain := append(append([]string{}, via[start:]...), e.Lock)
				group := canonical(ids, chain)
				if key := memberKey(group.ThreadIDs); !seen[key] {
					seen[key] = true
					groups = append(groups, group)
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		colors[id] = black
	}

	for _, id := range g.nodes {
		if colors[id] == white {
			visit(id)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return lessMembers(sortedMembers(groups[i].ThreadIDs), sortedMembers(groups[j].ThreadIDs))
	})
	return groups
}

// canonical rotates a cycle so that its smallest thread id comes first.
func canonical(ids []dump.ThreadID, chain []string) DeadlockGroup {
	minAt := 0
	for i, id := range ids {
		if id < ids[minAt] {
			minAt = i
		}
	}
	n := len(ids)
	group := DeadlockGroup{
		ThreadIDs: make([]dump.ThreadID, n),
		LockChain: make([]string, n),
	}
	for i := 0; i < n; i++ {
		group.ThreadIDs[i] = ids[(minAt+i)%n]
		group.LockChain[i] = chain[(minAt+i)%n]
	}
	return group
}

func sortedMembers(ids []dump.ThreadID) []dump.ThreadID {
	out := append([]dump.ThreadID{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func memberKey(ids []dump.ThreadID) string {
	key := make([]byte, 0, len(ids)*8)
	for _, id := range sortedMembers(ids) {
		v := uint64(id)
		for i := 0; i < 8; i++ {
			key = append(key, byte(v>>(56-8*i)))
		}
	}
	return string(key)
}

func lessMembers(a, b []dump.ThreadID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// FindSelfWaits returns the threads recorded as holding and waiting on the
// same lock. They are never reported as deadlocks.
func FindSelfWaits(d *dump.ThreadDump) []dump.SelfWait {
	out := make([]dump.SelfWait, len(d.SelfWaits))
	copy(out, d.SelfWaits)
	return out
}
