package analysis

import (
	"sort"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
)

// ContentionEntry is a lock with at least one waiter.
type ContentionEntry struct {
	LockIdentity string         `json:"lock_identity"`
	Owner        *dump.ThreadID `json:"owner_thread"`
	// OwnerUnknown marks contention whose owner is outside the captured
	// threads. Such locks are never deadlock candidates.
	OwnerUnknown bool            `json:"owner_unknown"`
	WaiterCount  int             `json:"waiter_count"`
	WaiterIDs    []dump.ThreadID `json:"waiter_ids"`
}

// RankContention returns contended locks ordered by waiter count, largest
// first, with ties broken by ascending lock identity.
func RankContention(d *dump.ThreadDump) []ContentionEntry {
	entries := make([]ContentionEntry, 0)
	for _, l := range d.Locks {
		if len(l.Waiters) == 0 {
			continue
		}
		entry := ContentionEntry{
			LockIdentity: l.Identity,
			OwnerUnknown: l.Owner == nil,
			WaiterCount:  len(l.Waiters),
			WaiterIDs:    append([]dump.ThreadID{}, l.Waiters...),
		}
		if l.Owner != nil {
			owner := *l.Owner
			entry.Owner = &owner
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WaiterCount != entries[j].WaiterCount {
			return entries[i].WaiterCount > entries[j].WaiterCount
		}
		return entries[i].LockIdentity < entries[j].LockIdentity
	})
	return entries
}

// TopN returns at most n entries. n <= 0 returns all of them.
func TopN(entries []ContentionEntry, n int) []ContentionEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
