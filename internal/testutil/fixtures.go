package testutil

import (
	"encoding/json"
	"strconv"
	"testing"

	"gopkg.in/yaml.v3"
)

type threadFixture struct {
	ID           int64    `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	State        string   `json:"state" yaml:"state"`
	Priority     int      `json:"priority" yaml:"priority"`
	StackTrace   []string `json:"stack_trace" yaml:"stack_trace"`
	LocksHeld    []string `json:"locks_held" yaml:"locks_held"`
	LocksWaiting []string `json:"locks_waiting" yaml:"locks_waiting"`
}

type lockFixture struct {
	Identity       string  `json:"identity" yaml:"identity"`
	OwnerThread    *int64  `json:"owner_thread" yaml:"owner_thread"`
	WaitingThreads []int64 `json:"waiting_threads" yaml:"waiting_threads"`
}

type dumpFixture struct {
	Timestamp string          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Threads   []threadFixture `json:"threads" yaml:"threads"`
	Locks     []lockFixture   `json:"locks" yaml:"locks"`
}

// DumpBuilder assembles thread dump payloads for tests. Locks named by
// threads but not added explicitly are derived from the thread entries, so
// a builder that only declares threads yields a consistent payload.
type DumpBuilder struct {
	fixture  dumpFixture
	explicit map[string]bool
}

// ThreadOption customises a thread entry.
type ThreadOption func(*threadFixture)

// Holds adds held lock identities.
func Holds(identities ...string) ThreadOption {
	return func(t *threadFixture) { t.LocksHeld = append(t.LocksHeld, identities...) }
}

// Waits adds waited-on lock identities.
func Waits(identities ...string) ThreadOption {
	return func(t *threadFixture) { t.LocksWaiting = append(t.LocksWaiting, identities...) }
}

// Stack sets the stack trace, innermost frame first.
func Stack(frames ...string) ThreadOption {
	return func(t *threadFixture) { t.StackTrace = frames }
}

// Priority sets the thread priority.
func Priority(p int) ThreadOption {
	return func(t *threadFixture) { t.Priority = p }
}

// NewDump starts an empty dump payload.
func NewDump() *DumpBuilder {
	return &DumpBuilder{
		fixture:  dumpFixture{Threads: []threadFixture{}, Locks: []lockFixture{}},
		explicit: make(map[string]bool),
	}
}

// At sets the capture timestamp.
func (b *DumpBuilder) At(ts string) *DumpBuilder {
	b.fixture.Timestamp = ts
	return b
}

// Thread appends a thread entry.
func (b *DumpBuilder) Thread(id int64, name, state string, opts ...ThreadOption) *DumpBuilder {
	t := threadFixture{ID: id, Name: name, State: state, Priority: 5, StackTrace: []string{}, LocksHeld: []string{}, LocksWaiting: []string{}}
	for _, opt := range opts {
		opt(&t)
	}
	b.fixture.Threads = append(b.fixture.Threads, t)
	return b
}

// Lock appends an explicit lock entry owned by owner.
func (b *DumpBuilder) Lock(identity string, owner int64, waiters ...int64) *DumpBuilder {
	o := owner
	return b.lock(identity, &o, waiters)
}

// OrphanLock appends an explicit lock entry without an owner.
func (b *DumpBuilder) OrphanLock(identity string, waiters ...int64) *DumpBuilder {
	return b.lock(identity, nil, waiters)
}

func (b *DumpBuilder) lock(identity string, owner *int64, waiters []int64) *DumpBuilder {
	if waiters == nil {
		waiters = []int64{}
	}
	b.fixture.Locks = append(b.fixture.Locks, lockFixture{Identity: identity, OwnerThread: owner, WaitingThreads: waiters})
	b.explicit[identity] = true
	return b
}

// Reversed returns a builder whose thread and explicit lock entries are in
// reverse order.
func (b *DumpBuilder) Reversed() *DumpBuilder {
	r := &DumpBuilder{explicit: b.explicit, fixture: dumpFixture{Timestamp: b.fixture.Timestamp, Threads: []threadFixture{}}}
	for i := len(b.fixture.Threads) - 1; i >= 0; i-- {
		r.fixture.Threads = append(r.fixture.Threads, b.fixture.Threads[i])
	}
	r.fixture.Locks = []lockFixture{}
	for i := len(b.fixture.Locks) - 1; i >= 0; i-- {
		r.fixture.Locks = append(r.fixture.Locks, b.fixture.Locks[i])
	}
	return r
}

func (b *DumpBuilder) build() dumpFixture {
	out := b.fixture
	out.Locks = append([]lockFixture{}, b.fixture.Locks...)

	derived := make(map[string]*lockFixture)
	var order []string
	get := func(identity string) *lockFixture {
		if l, ok := derived[identity]; ok {
			return l
		}
		l := &lockFixture{Identity: identity, WaitingThreads: []int64{}}
		derived[identity] = l
		order = append(order, identity)
		return l
	}

	for _, t := range b.fixture.Threads {
		for _, identity := range t.LocksHeld {
			if !b.explicit[identity] {
				id := t.ID
				get(identity).OwnerThread = &id
			}
		}
		for _, identity := range t.LocksWaiting {
			if !b.explicit[identity] {
				l := get(identity)
				l.WaitingThreads = append(l.WaitingThreads, t.ID)
			}
		}
	}
	for _, identity := range order {
		out.Locks = append(out.Locks, *derived[identity])
	}
	return out
}

// JSON returns the payload as JSON.
func (b *DumpBuilder) JSON(t testing.TB) []byte {
	t.Helper()
	data, err := json.MarshalIndent(b.build(), "", "  ")
	if err != nil {
		t.Fatalf("marshaling dump fixture: %v", err)
	}
	return data
}

// YAML returns the payload as YAML.
func (b *DumpBuilder) YAML(t testing.TB) []byte {
	t.Helper()
	data, err := yaml.Marshal(b.build())
	if err != nil {
		t.Fatalf("marshaling dump fixture: %v", err)
	}
	return data
}

// Sequence returns a JSON list holding every builder's payload in order.
func Sequence(t testing.TB, builders ...*DumpBuilder) []byte {
	t.Helper()
	fixtures := make([]dumpFixture, 0, len(builders))
	for _, b := range builders {
		fixtures = append(fixtures, b.build())
	}
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		t.Fatalf("marshaling dump sequence: %v", err)
	}
	return data
}

// MainWorkerFixture is three threads: main idle, worker-1 holding H and
// worker-2 blocked on H.
func MainWorkerFixture() *DumpBuilder {
	return NewDump().
		At("2024-03-01T10:00:00Z").
		Thread(1, "main", "RUNNABLE").
		Thread(2, "worker-1", "RUNNABLE", Holds("H")).
		Thread(3, "worker-2", "BLOCKED", Waits("H"))
}

// MutualWaitFixture is the two-thread deadlock: 1 holds L1 and waits on L2,
// 2 holds L2 and waits on L1.
func MutualWaitFixture() *DumpBuilder {
	return NewDump().
		At("2024-03-01T10:00:00Z").
		Thread(1, "T1", "BLOCKED", Holds("L1"), Waits("L2")).
		Thread(2, "T2", "BLOCKED", Holds("L2"), Waits("L1"))
}

// RingFixture is an n-thread circular wait: thread i holds Li and waits on
// L(i+1), the last thread waits on L1.
func RingFixture(n int) *DumpBuilder {
	b := NewDump().At("2024-03-01T10:00:00Z")
	for i := 1; i <= n; i++ {
		next := i%n + 1
		b.Thread(int64(i), "ring-"+strconv.Itoa(i), "BLOCKED", Holds("L"+strconv.Itoa(i)), Waits("L"+strconv.Itoa(next)))
	}
	return b
}
