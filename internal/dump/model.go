// Package dump turns raw thread dump payloads into a validated, repaired,
// immutable model of a process's threads and locks.
package dump

import (
	"sort"
	"strings"
	"time"
)

// ThreadID identifies a thread within one dump.
type ThreadID int64

// State is the scheduling state of a thread at capture time.
type State string

// Thread states.
const (
	StateRunnable     State = "RUNNABLE"
	StateBlocked      State = "BLOCKED"
	StateWaiting      State = "WAITING"
	StateTimedWaiting State = "TIMED_WAITING"
	StateNew          State = "NEW"
	StateTerminated   State = "TERMINATED"
)

// AllStates returns the closed set of thread states in display order.
func AllStates() []State {
	return []State{
		StateRunnable,
		StateBlocked,
		StateWaiting,
		StateTimedWaiting,
		StateNew,
		StateTerminated,
	}
}

// ParseState matches s against the known states. Case, surrounding space,
// and '-' or ' ' in place of '_' are tolerated.
func ParseState(s string) (State, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, st := range AllStates() {
		if string(st) == norm {
			return st, true
		}
	}
	return "", false
}

// Thread is one captured thread. LocksHeld and LocksWaiting are sorted,
// disjoint identity sets that agree with the dump's lock table.
type Thread struct {
	ID           ThreadID `json:"id"`
	Name         string   `json:"name"`
	State        State    `json:"state"`
	Priority     int      `json:"priority"`
	StackTrace   []string `json:"stack_trace"`
	LocksHeld    []string `json:"locks_held"`
	LocksWaiting []string `json:"locks_waiting"`
	// Annotations records repairs applied to this thread while parsing.
	Annotations []string `json:"annotations,omitempty"`
}

// DisplayName returns the thread name, or a placeholder when the capture
// did not carry one.
func (t *Thread) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return "thread-" + itoa(t.ID)
}

// IsIdle reports whether the thread neither holds nor waits on a lock.
func (t *Thread) IsIdle() bool {
	return len(t.LocksHeld) == 0 && len(t.LocksWaiting) == 0
}

// Lock is one monitor or synchronizer. Owner is nil when the owner is
// unknown or outside the captured thread set. Waiters are in arrival order
// and never contain Owner.
type Lock struct {
	Identity string     `json:"identity"`
	Owner    *ThreadID  `json:"owner_thread"`
	Waiters  []ThreadID `json:"waiting_threads"`
}

// SelfWait is a thread recorded as both holding and waiting on one lock.
type SelfWait struct {
	Thread ThreadID `json:"thread_id"`
	Lock   string   `json:"lock"`
}

// ThreadDump is one point-in-time snapshot. It is not modified after Parse
// returns it.
type ThreadDump struct {
	Timestamp string `json:"timestamp"`
	// CapturedAt is set when Timestamp is a recognised date-time.
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Threads    []Thread   `json:"threads"`
	Locks      []Lock     `json:"locks"`
	SelfWaits  []SelfWait `json:"self_waits"`

	threadIndex map[ThreadID]int
	lockIndex   map[string]int
}

// Thread looks up a thread by id.
func (d *ThreadDump) Thread(id ThreadID) (*Thread, bool) {
	i, ok := d.threadIndex[id]
	if !ok {
		return nil, false
	}
	return &d.Threads[i], true
}

// Lock looks up a lock by identity.
func (d *ThreadDump) Lock(identity string) (*Lock, bool) {
	i, ok := d.lockIndex[identity]
	if !ok {
		return nil, false
	}
	return &d.Locks[i], true
}

// ThreadIDs returns all thread ids in ascending order.
func (d *ThreadDump) ThreadIDs() []ThreadID {
	ids := make([]ThreadID, 0, len(d.Threads))
	for _, t := range d.Threads {
		ids = append(ids, t.ID)
	}
	sortIDs(ids)
	return ids
}

// Empty reports whether the dump has no threads and no locks.
func (d *ThreadDump) Empty() bool {
	return len(d.Threads) == 0 && len(d.Locks) == 0
}

func (d *ThreadDump) reindex() {
	d.threadIndex = make(map[ThreadID]int, len(d.Threads))
	for i, t := range d.Threads {
		d.threadIndex[t.ID] = i
	}
	d.lockIndex = make(map[string]int, len(d.Locks))
	for i, l := range d.Locks {
		d.lockIndex[l.Identity] = i
	}
}

func sortIDs(ids []ThreadID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
