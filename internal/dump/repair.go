package dump

import (
	"fmt"
	"sort"
	"strings"
)

// builder accumulates warnings while a dump is decoded and repaired.
type builder struct {
	warnings []Warning
}

func (b *builder) warn(kind WarningKind, subject, message string) {
	b.warnings = append(b.warnings, Warning{Kind: kind, Subject: subject, Message: message})
}

// repair reconciles the thread-side lock lists with the lock table. The lock
// table is authoritative for ownership and waiters; thread-side data only
// fills in locks the table does not mention.
func (b *builder) repair(d *ThreadDump, threads []Thread, locks []Lock) {
	known := make(map[ThreadID]int, len(threads))
	for i, t := range threads {
		known[t.ID] = i
	}
	lockIdx := make(map[string]int, len(locks))
	for i, l := range locks {
		lockIdx[l.Identity] = i
	}

	locks = b.synthesizeLocks(threads, locks, lockIdx)
	for i := range locks {
		b.cleanLock(&locks[i], known)
	}
	selfWaits := b.resolveOverlaps(threads, locks, lockIdx, known)
	b.reconcileThreads(threads, locks)

	d.Threads = threads
	d.Locks = locks
	d.SelfWaits = selfWaits
}

func (b *builder) synthesizeLocks(threads []Thread, locks []Lock, lockIdx map[string]int) []Lock {
	holders := make(map[string][]ThreadID)
	waiters := make(map[string][]ThreadID)
	var missing []string
	note := func(refs map[string][]ThreadID, identity string, id ThreadID) {
		if _, ok := lockIdx[identity]; ok {
			return
		}
		if _, ok := holders[identity]; !ok {
			if _, ok := waiters[identity]; !ok {
				missing = append(missing, identity)
			}
		}
		ids := refs[identity]
		if n := len(ids); n > 0 && ids[n-1] == id {
			return
		}
		refs[identity] = append(ids, id)
	}
	for _, t := range threads {
		for _, identity := range t.LocksHeld {
			note(holders, identity, t.ID)
		}
		for _, identity := range t.LocksWaiting {
			note(waiters, identity, t.ID)
		}
	}
	sort.Strings(missing)

	for _, identity := range missing {
		l := Lock{Identity: identity, Waiters: []ThreadID{}}
		l.Waiters = append(l.Waiters, waiters[identity]...)

		switch held := holders[identity]; len(held) {
		case 0:
		case 1:
			owner := held[0]
			l.Owner = &owner
		default:
			b.warn(WarnConflictingOwners, lockSubject(identity),
				fmt.Sprintf("lock is claimed by threads %s; owner left unknown", joinIDs(held)))
		}

		b.warn(WarnSynthesizedLock, lockSubject(identity),
			"lock is referenced by threads but missing from the lock table; rebuilt from thread data")
		lockIdx[identity] = len(locks)
		locks = append(locks, l)
	}
	return locks
}

// cleanLock drops references to threads outside the dump and duplicate
// waiter entries.
func (b *builder) cleanLock(l *Lock, known map[ThreadID]int) {
	if l.Owner != nil {
		if _, ok := known[*l.Owner]; !ok {
			b.warn(WarnDanglingOwner, lockSubject(l.Identity),
				fmt.Sprintf("owner thread %d is not in the dump; owner is unknown", *l.Owner))
			l.Owner = nil
		}
	}

	waiters := make([]ThreadID, 0, len(l.Waiters))
	seen := make(map[ThreadID]bool, len(l.Waiters))
	for _, w := range l.Waiters {
		if _, ok := known[w]; !ok {
			b.warn(WarnDanglingWaiter, lockSubject(l.Identity),
				fmt.Sprintf("waiting thread %d is not in the dump; dropped", w))
			continue
		}
		if seen[w] {
			b.warn(WarnDuplicateWaiter, lockSubject(l.Identity),
				fmt.Sprintf("waiting thread %d is listed more than once", w))
			continue
		}
		seen[w] = true
		waiters = append(waiters, w)
	}
	l.Waiters = waiters
}

// resolveOverlaps turns every hold-and-wait on the same lock into a
// waited-on-only relation and records it as a self-wait.
func (b *builder) resolveOverlaps(threads []Thread, locks []Lock, lockIdx map[string]int, known map[ThreadID]int) []SelfWait {
	selfWaits := make([]SelfWait, 0)
	recorded := make(map[SelfWait]bool)
	record := func(sw SelfWait) {
		if !recorded[sw] {
			recorded[sw] = true
			selfWaits = append(selfWaits, sw)
		}
	}

	for i := range threads {
		t := &threads[i]
		for _, identity := range intersect(t.LocksHeld, t.LocksWaiting) {
			b.warn(WarnHeldWaitingOverlap, threadSubject(t.ID),
				fmt.Sprintf("thread both holds and waits on lock %s; treated as waiting only", identity))
			t.LocksHeld = without(t.LocksHeld, identity)
			t.Annotations = append(t.Annotations, fmt.Sprintf("held and waited on %s; ownership dropped", identity))

			l := &locks[lockIdx[identity]]
			if l.Owner != nil && *l.Owner == t.ID {
				l.Owner = nil
			}
			if !hasID(l.Waiters, t.ID) {
				l.Waiters = append(l.Waiters, t.ID)
			}
			record(SelfWait{Thread: t.ID, Lock: identity})
		}
	}

	for i := range locks {
		l := &locks[i]
		if l.Owner == nil || !hasID(l.Waiters, *l.Owner) {
			continue
		}
		owner := *l.Owner
		b.warn(WarnHeldWaitingOverlap, lockSubject(l.Identity),
			fmt.Sprintf("owner thread %d is also listed as waiting; treated as waiting only", owner))
		l.Owner = nil
		t := &threads[known[owner]]
		t.Annotations = append(t.Annotations, fmt.Sprintf("held and waited on %s; ownership dropped", l.Identity))
		record(SelfWait{Thread: owner, Lock: l.Identity})
	}

	sort.Slice(selfWaits, func(i, j int) bool {
		if selfWaits[i].Thread != selfWaits[j].Thread {
			return selfWaits[i].Thread < selfWaits[j].Thread
		}
		return selfWaits[i].Lock < selfWaits[j].Lock
	})
	return selfWaits
}

// reconcileThreads rewrites each thread's held and waiting sets from the
// lock table, warning about every entry that changes.
func (b *builder) reconcileThreads(threads []Thread, locks []Lock) {
	held := make(map[ThreadID][]string)
	waiting := make(map[ThreadID][]string)
	for _, l := range locks {
		if l.Owner != nil {
			held[*l.Owner] = append(held[*l.Owner], l.Identity)
		}
		for _, w := range l.Waiters {
			waiting[w] = append(waiting[w], l.Identity)
		}
	}

	for i := range threads {
		t := &threads[i]
		wantHeld := identitySet(held[t.ID])
		wantWaiting := identitySet(waiting[t.ID])

		for _, identity := range difference(t.LocksHeld, wantHeld) {
			b.mismatch(t, WarnOwnershipMismatch,
				fmt.Sprintf("thread lists %s as held but the lock table does not name it owner; removed", identity))
		}
		for _, identity := range difference(wantHeld, t.LocksHeld) {
			b.mismatch(t, WarnOwnershipMismatch,
				fmt.Sprintf("lock table names the thread owner of %s; added to held locks", identity))
		}
		for _, identity := range difference(t.LocksWaiting, wantWaiting) {
			b.mismatch(t, WarnWaiterMismatch,
				fmt.Sprintf("thread lists %s as waited on but the lock table does not list it as a waiter; removed", identity))
		}
		for _, identity := range difference(wantWaiting, t.LocksWaiting) {
			b.mismatch(t, WarnWaiterMismatch,
				fmt.Sprintf("lock table lists the thread as waiting on %s; added to waited locks", identity))
		}

		t.LocksHeld = wantHeld
		t.LocksWaiting = wantWaiting
	}
}

func (b *builder) mismatch(t *Thread, kind WarningKind, message string) {
	b.warn(kind, threadSubject(t.ID), message)
	t.Annotations = append(t.Annotations, message)
}

// identitySet returns the sorted, de-duplicated, non-empty identities.
func identitySet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)

	uniq := out[:0]
	for _, s := range out {
		if len(uniq) == 0 || s != uniq[len(uniq)-1] {
			uniq = append(uniq, s)
		}
	}
	return uniq
}

func hasIdentity(set []string, identity string) bool {
	i := sort.SearchStrings(set, identity)
	return i < len(set) && set[i] == identity
}

func hasID(ids []ThreadID, id ThreadID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, s := range a {
		if hasIdentity(b, s) {
			out = append(out, s)
		}
	}
	return out
}

// difference returns the elements of a missing from b.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !hasIdentity(b, s) {
			out = append(out, s)
		}
	}
	return out
}

func without(set []string, identity string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != identity {
			out = append(out, s)
		}
	}
	return out
}

func joinIDs(ids []ThreadID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = itoa(id)
	}
	return strings.Join(parts, ", ")
}
