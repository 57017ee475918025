package analysis

import (
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// Result is the structured analysis of one dump, shaped for machine
// consumers such as flaky-test correlators.
type Result struct {
	Timestamp   string             `json:"timestamp"`
	ThreadCount int                `json:"thread_count"`
	LockCount   int                `json:"lock_count"`
	WaitEdges   int                `json:"wait_edges"`
	StateCounts map[dump.State]int `json:"state_counts"`
	Deadlocks   []DeadlockGroup    `json:"deadlocks"`
	SelfWaits   []dump.SelfWait    `json:"self_waits"`
	Contention  []ContentionEntry  `json:"contention"`
	Warnings    []dump.Warning     `json:"warnings"`
}

// Analyze runs every analysis over d. Warnings start empty; callers attach
// the parser's warnings.
func Analyze(d *dump.ThreadDump) *Result {
	counts := make(map[dump.State]int)
	for _, t := range d.Threads {
		counts[t.State]++
	}

	g := BuildWaitGraph(d)
	return &Result{
		Timestamp:   d.Timestamp,
		ThreadCount: len(d.Threads),
		LockCount:   len(d.Locks),
		WaitEdges:   g.EdgeCount(),
		StateCounts: counts,
		Deadlocks:   findCycles(g),
		SelfWaits:   FindSelfWaits(d),
		Contention:  RankContention(d),
		Warnings:    make([]dump.Warning, 0),
	}
}

// HasDeadlocks reports whether at least one deadlock group was found.
func (r *Result) HasDeadlocks() bool {
	return len(r.Deadlocks) > 0
}

// DeadlockedThreads returns the set of threads that belong to any group.
func DeadlockedThreads(groups []DeadlockGroup) map[dump.ThreadID]bool {
	members := make(map[dump.ThreadID]bool)
	for _, g := range groups {
		for _, id := range g.ThreadIDs {
			members[id] = true
		}
	}
	return members
}

// CycleEdges returns the set of wait-for edges that lie on a cycle.
func CycleEdges(groups []DeadlockGroup) map[Edge]bool {
	edges := make(map[Edge]bool)
	for _, g := range groups {
		for _, e := range g.Edges() {
			edges[e] = true
		}
	}
	return edges
}
