package dump

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
)

// Format selects the payload encoding.
type Format string

// Supported payload encodings.
const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a flag or config value into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", core.ErrInput(core.CodeUnsupportedFormat,
		fmt.Sprintf("unsupported input format %q (expected auto, json or yaml)", s))
}

// entryValidate checks required fields of decoded thread and lock entries.
var entryValidate *validator.Validate

func init() {
	entryValidate = validator.New()
	entryValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = entryValidate.RegisterValidation("threadstate", validateThreadState)
}

func validateThreadState(fl validator.FieldLevel) bool {
	_, ok := ParseState(fl.Field().String())
	return ok
}

type rawThread struct {
	ID           *int64   `json:"id" yaml:"id" validate:"required"`
	Name         string   `json:"name" yaml:"name"`
	State        string   `json:"state" yaml:"state" validate:"required,threadstate"`
	Priority     int      `json:"priority" yaml:"priority"`
	StackTrace   []string `json:"stack_trace" yaml:"stack_trace"`
	LocksHeld    []string `json:"locks_held" yaml:"locks_held"`
	LocksWaiting []string `json:"locks_waiting" yaml:"locks_waiting"`
}

type rawLock struct {
	Identity       string  `json:"identity" yaml:"identity" validate:"required"`
	OwnerThread    *int64  `json:"owner_thread" yaml:"owner_thread"`
	WaitingThreads []int64 `json:"waiting_threads" yaml:"waiting_threads"`
}

// entry decodes one element of a threads or locks list.
type entry func(v any) error

// payload is one dump document whose entries have not been decoded yet.
type payload struct {
	timestamp  string
	threads    []entry
	locks      []entry
	hasThreads bool
	hasLocks   bool
}

// Parse turns a single dump payload into a validated, repaired ThreadDump.
// Recoverable problems are returned as warnings; a payload that cannot be
// used at all returns a *ParseError matching ErrMalformed.
func Parse(raw []byte, format Format) (*ThreadDump, []Warning, error) {
	docs, list, err := decode(raw, format)
	if err != nil {
		return nil, nil, err
	}
	if list {
		return nil, nil, parseError(core.CodeMalformedDump,
			fmt.Sprintf("expected a single dump object, found a list of %d dumps", len(docs)), nil)
	}
	return build(docs[0])
}

// Capture is one dump of a sequence together with its warnings.
type Capture struct {
	Dump     *ThreadDump
	Warnings []Warning
}

// ParseSequence accepts either one dump object or a list of dump objects
// and returns the captures in document order.
func ParseSequence(raw []byte, format Format) ([]Capture, error) {
	docs, list, err := decode(raw, format)
	if err != nil {
		return nil, err
	}

	captures := make([]Capture, 0, len(docs))
	for i, p := range docs {
		d, warnings, err := build(p)
		if err != nil {
			if list {
				return nil, atIndex(i, err)
			}
			return nil, err
		}
		captures = append(captures, Capture{Dump: d, Warnings: warnings})
	}
	return captures, nil
}

func decode(raw []byte, format Format) ([]*payload, bool, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, false, parseError(core.CodeEmptyInput, "dump payload is empty", nil)
	}

	if format == "" || format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '{' || trimmed[0] == '[' {
			format = FormatJSON
		}
	}

	switch format {
	case FormatJSON:
		return decodeJSON(trimmed)
	case FormatYAML:
		return decodeYAML(trimmed)
	default:
		return nil, false, core.ErrInput(core.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported input format %q", format))
	}
}

func decodeJSON(raw []byte) ([]*payload, bool, error) {
	switch raw[0] {
	case '{':
		p, err := jsonPayload(raw)
		if err != nil {
			return nil, false, err
		}
		return []*payload{p}, false, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, true, parseError(core.CodeMalformedDump, "invalid JSON payload", err)
		}
		if len(items) == 0 {
			return nil, true, parseError(core.CodeMalformedDump, "expected at least one dump, found an empty list", nil)
		}
		docs := make([]*payload, 0, len(items))
		for i, item := range items {
			p, err := jsonPayload(item)
			if err != nil {
				return nil, true, atIndex(i, err)
			}
			docs = append(docs, p)
		}
		return docs, true, nil
	default:
		return nil, false, parseError(core.CodeMalformedDump,
			fmt.Sprintf("expected a JSON object with threads and locks, found %s", describeJSON(raw)), nil)
	}
}

func jsonPayload(raw json.RawMessage) (*payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		if describeJSON(raw) != "an object" {
			return nil, parseError(core.CodeMalformedDump,
				fmt.Sprintf("expected a JSON object with threads and locks, found %s", describeJSON(raw)), nil)
		}
		return nil, parseError(core.CodeMalformedDump, "invalid JSON payload", err)
	}
	if fields == nil {
		return nil, parseError(core.CodeMalformedDump, "expected a JSON object with threads and locks, found null", nil)
	}

	p := &payload{}
	if ts, ok := fields["timestamp"]; ok {
		p.timestamp = jsonScalar(ts)
	}

	var err error
	if p.threads, p.hasThreads, err = jsonSection(fields, "threads"); err != nil {
		return nil, err
	}
	if p.locks, p.hasLocks, err = jsonSection(fields, "locks"); err != nil {
		return nil, err
	}
	return p, nil
}

func jsonSection(fields map[string]json.RawMessage, name string) ([]entry, bool, error) {
	raw, ok := fields[name]
	if !ok || describeJSON(raw) == "null" {
		return nil, false, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, parseError(core.CodeMalformedDump,
			fmt.Sprintf("%q must be a list, found %s", name, describeJSON(raw)), nil)
	}

	entries := make([]entry, len(items))
	for i, item := range items {
		entries[i] = func(v any) error { return json.Unmarshal(item, v) }
	}
	return entries, true, nil
}

func jsonScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if describeJSON(raw) == "null" {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}

func describeJSON(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch c := raw[0]; {
	case c == '{':
		return "an object"
	case c == '[':
		return "a list"
	case c == '"':
		return "a string"
	case c == '-' || (c >= '0' && c <= '9'):
		return "a number"
	case bytes.Equal(raw, []byte("null")):
		return "null"
	case bytes.Equal(raw, []byte("true")) || bytes.Equal(raw, []byte("false")):
		return "a boolean"
	default:
		return "invalid JSON"
	}
}

func decodeYAML(raw []byte) ([]*payload, bool, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, false, parseError(core.CodeMalformedDump, "invalid YAML payload", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, false, parseError(core.CodeEmptyInput, "dump payload is empty", nil)
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		p, err := yamlPayload(doc)
		if err != nil {
			return nil, false, err
		}
		return []*payload{p}, false, nil
	case yaml.SequenceNode:
		if len(doc.Content) == 0 {
			return nil, true, parseError(core.CodeMalformedDump, "expected at least one dump, found an empty list", nil)
		}
		docs := make([]*payload, 0, len(doc.Content))
		for i, item := range doc.Content {
			p, err := yamlPayload(item)
			if err != nil {
				return nil, true, atIndex(i, err)
			}
			docs = append(docs, p)
		}
		return docs, true, nil
	default:
		return nil, false, parseError(core.CodeMalformedDump,
			fmt.Sprintf("expected a mapping with threads and locks, found %s", describeYAML(doc)), nil)
	}
}

func yamlPayload(node *yaml.Node) (*payload, error) {
	if node.Kind != yaml.MappingNode {
		return nil, parseError(core.CodeMalformedDump,
			fmt.Sprintf("expected a mapping with threads and locks, found %s", describeYAML(node)), nil)
	}

	p := &payload{}
	var err error
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "timestamp":
			if val.Kind == yaml.ScalarNode && val.ShortTag() != "!!null" {
				p.timestamp = val.Value
			}
		case "threads":
			if p.threads, p.hasThreads, err = yamlSection("threads", val); err != nil {
				return nil, err
			}
		case "locks":
			if p.locks, p.hasLocks, err = yamlSection("locks", val); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func yamlSection(name string, node *yaml.Node) ([]entry, bool, error) {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil, false, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, false, parseError(core.CodeMalformedDump,
			fmt.Sprintf("%q must be a list, found %s", name, describeYAML(node)), nil)
	}

	entries := make([]entry, len(node.Content))
	for i, item := range node.Content {
		entries[i] = item.Decode
	}
	return entries, true, nil
}

func describeYAML(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.AliasNode:
		return "an alias"
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return "null"
		case "!!int", "!!float":
			return "a number"
		case "!!bool":
			return "a boolean"
		default:
			return "a string"
		}
	default:
		return "an empty document"
	}
}

func atIndex(i int, err error) error {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return err
	}
	return parseError(pe.Code(), fmt.Sprintf("dump #%d: %s", i+1, pe.Err.Message), pe.Err.Cause)
}

func build(p *payload) (*ThreadDump, []Warning, error) {
	if !p.hasThreads && !p.hasLocks {
		return nil, nil, parseError(core.CodeMissingSections,
			"expected \"threads\" and \"locks\" sections, found neither", nil)
	}

	b := &builder{}
	d := &ThreadDump{Timestamp: strings.TrimSpace(p.timestamp)}
	if d.Timestamp != "" {
		if dt, err := strfmt.ParseDateTime(d.Timestamp); err == nil {
			at := time.Time(dt)
			d.CapturedAt = &at
		} else {
			b.warn(WarnInvalidTimestamp, "timestamp",
				fmt.Sprintf("timestamp %q is not an RFC 3339 date-time; kept as text", d.Timestamp))
		}
	}

	threads := b.decodeThreads(p.threads)
	locks := b.decodeLocks(p.locks)
	b.repair(d, threads, locks)
	d.reindex()

	return d, b.warnings, nil
}

func (b *builder) decodeThreads(entries []entry) []Thread {
	threads := make([]Thread, 0, len(entries))
	index := make(map[ThreadID]int, len(entries))

	for i, decode := range entries {
		var rt rawThread
		if err := decode(&rt); err != nil {
			b.warn(WarnInvalidEntry, entrySubject("threads", i),
				fmt.Sprintf("thread entry could not be decoded: %v", err))
			continue
		}

		subject := entrySubject("threads", i)
		if rt.ID != nil {
			subject = threadSubject(ThreadID(*rt.ID))
		}
		if !b.validEntry(subject, "thread", &rt) {
			continue
		}

		state, _ := ParseState(rt.State)
		t := Thread{
			ID:           ThreadID(*rt.ID),
			Name:         strings.TrimSpace(rt.Name),
			State:        state,
			Priority:     rt.Priority,
			StackTrace:   rt.StackTrace,
			LocksHeld:    identitySet(rt.LocksHeld),
			LocksWaiting: identitySet(rt.LocksWaiting),
		}
		if t.StackTrace == nil {
			t.StackTrace = []string{}
		}

		if j, dup := index[t.ID]; dup {
			b.warn(WarnDuplicateThread, threadSubject(t.ID),
				fmt.Sprintf("thread id appears more than once; threads[%d] replaces the earlier entry", i))
			threads[j] = t
			continue
		}
		index[t.ID] = len(threads)
		threads = append(threads, t)
	}
	return threads
}

func (b *builder) decodeLocks(entries []entry) []Lock {
	locks := make([]Lock, 0, len(entries))
	index := make(map[string]int, len(entries))

	for i, decode := range entries {
		var rl rawLock
		if err := decode(&rl); err != nil {
			b.warn(WarnInvalidEntry, entrySubject("locks", i),
				fmt.Sprintf("lock entry could not be decoded: %v", err))
			continue
		}

		rl.Identity = strings.TrimSpace(rl.Identity)
		subject := entrySubject("locks", i)
		if rl.Identity != "" {
			subject = lockSubject(rl.Identity)
		}
		if !b.validEntry(subject, "lock", &rl) {
			continue
		}

		l := Lock{Identity: rl.Identity, Waiters: make([]ThreadID, 0, len(rl.WaitingThreads))}
		if rl.OwnerThread != nil {
			owner := ThreadID(*rl.OwnerThread)
			l.Owner = &owner
		}
		for _, w := range rl.WaitingThreads {
			l.Waiters = append(l.Waiters, ThreadID(w))
		}

		if j, dup := index[l.Identity]; dup {
			b.warn(WarnDuplicateLock, lockSubject(l.Identity),
				fmt.Sprintf("lock identity appears more than once; locks[%d] replaces the earlier entry", i))
			locks[j] = l
			continue
		}
		index[l.Identity] = len(locks)
		locks = append(locks, l)
	}
	return locks
}

// validEntry runs struct validation and records a warning for a rejected
// entry.
func (b *builder) validEntry(subject, kind string, v any) bool {
	err := entryValidate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		b.warn(WarnInvalidEntry, subject, fmt.Sprintf("%s entry rejected: %v", kind, err))
		return false
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "threadstate" {
			b.warn(WarnInvalidState, subject, fmt.Sprintf(
				"state %q is not one of RUNNABLE, BLOCKED, WAITING, TIMED_WAITING, NEW, TERMINATED; entry dropped",
				fe.Value()))
			return false
		}
		missing = append(missing, fe.Field())
	}
	b.warn(WarnMissingField, subject, fmt.Sprintf("%s entry is missing required field(s) %s; entry dropped",
		kind, strings.Join(missing, ", ")))
	return false
}
