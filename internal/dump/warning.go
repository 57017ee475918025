package dump

import "fmt"

// WarningKind classifies a recovered data problem.
type WarningKind string

// Warning kinds emitted while parsing and repairing a dump.
const (
	WarnMissingField       WarningKind = "missing_field"
	WarnInvalidEntry       WarningKind = "invalid_entry"
	WarnInvalidState       WarningKind = "invalid_state"
	WarnInvalidTimestamp   WarningKind = "invalid_timestamp"
	WarnDuplicateThread    WarningKind = "duplicate_thread"
	WarnDuplicateLock      WarningKind = "duplicate_lock"
	WarnDuplicateWaiter    WarningKind = "duplicate_waiter"
	WarnDanglingOwner      WarningKind = "dangling_owner"
	WarnDanglingWaiter     WarningKind = "dangling_waiter"
	WarnConflictingOwners  WarningKind = "conflicting_owners"
	WarnOwnershipMismatch  WarningKind = "ownership_mismatch"
	WarnWaiterMismatch     WarningKind = "waiter_mismatch"
	WarnSynthesizedLock    WarningKind = "synthesized_lock"
	WarnHeldWaitingOverlap WarningKind = "held_waiting_overlap"
)

// Warning is a partial-data problem that was repaired or dropped. Subject
// names the offending thread, lock or entry.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Subject, w.Message)
}

func threadSubject(id ThreadID) string {
	return "thread " + itoa(id)
}

func lockSubject(identity string) string {
	return "lock " + identity
}

func entrySubject(section string, index int) string {
	return fmt.Sprintf("%s[%d]", section, index)
}

func itoa(id ThreadID) string {
	return fmt.Sprintf("%d", int64(id))
}
