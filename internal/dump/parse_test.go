package dump

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/testutil"
)

func warningsOf(warnings []Warning, kind WarningKind) []Warning {
	var out []Warning
	for _, w := range warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestParse_MainWorkerFixture(t *testing.T) {
	t.Parallel()

	d, warnings, err := Parse(testutil.MainWorkerFixture().JSON(t), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, d.Threads, 3)
	require.NotNil(t, d.CapturedAt)
	assert.Equal(t, 2024, d.CapturedAt.Year())

	main, ok := d.Thread(1)
	require.True(t, ok)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, StateRunnable, main.State)
	assert.True(t, main.IsIdle())

	h, ok := d.Lock("H")
	require.True(t, ok)
	require.NotNil(t, h.Owner)
	assert.Equal(t, ThreadID(2), *h.Owner)
	assert.Equal(t, []ThreadID{3}, h.Waiters)

	w2, _ := d.Thread(3)
	assert.Equal(t, []string{"H"}, w2.LocksWaiting)
	assert.Empty(t, w2.LocksHeld)
	assert.Empty(t, d.SelfWaits)
}

func TestParse_InputErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		code  string
	}{
		{"empty", "", core.CodeEmptyInput},
		{"whitespace", "  \n\t ", core.CodeEmptyInput},
		{"yaml comment only", "# nothing here\n", core.CodeEmptyInput},
		{"json number", "42", core.CodeMalformedDump},
		{"json string", `"threads"`, core.CodeMalformedDump},
		{"json boolean", "true", core.CodeMalformedDump},
		{"truncated json", `{"threads": [`, core.CodeMalformedDump},
		{"list in parse", `[{"threads": []}]`, core.CodeMalformedDump},
		{"list of numbers", `[1, 2]`, core.CodeMalformedDump},
		{"threads not a list", `{"threads": {"id": 1}}`, core.CodeMalformedDump},
		{"locks not a list", `{"threads": [], "locks": "L1"}`, core.CodeMalformedDump},
		{"neither section", `{"timestamp": "2024-03-01T10:00:00Z"}`, core.CodeMissingSections},
		{"both null", `{"threads": null, "locks": null}`, core.CodeMissingSections},
		{"yaml scalar", "just some text", core.CodeMalformedDump},
		{"broken yaml", "threads: [", core.CodeMalformedDump},
		{"yaml missing sections", "timestamp: now\n", core.CodeMissingSections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, warnings, err := Parse([]byte(tt.input), FormatAuto)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.Nil(t, warnings)

			assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed, got %v", err)
			assert.Equal(t, tt.code, core.GetCode(err))
			assert.Equal(t, core.ErrCatInput, core.GetCategory(err))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.NotEmpty(t, pe.Error())
		})
	}
}

func TestParse_ErrorMessagesNameTheDefect(t *testing.T) {
	t.Parallel()

	_, _, err := Parse([]byte(`{"threads": 7}`), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"threads" must be a list, found a number`)

	_, _, err = Parse([]byte("42"), FormatAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found a number")
}

func TestParse_EmptyThreadsIsValid(t *testing.T) {
	t.Parallel()

	d, warnings, err := Parse([]byte(`{"timestamp": "t0", "threads": []}`), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, d.Threads)
	assert.Empty(t, d.Locks)
	assert.True(t, d.Empty())
	assert.Nil(t, d.CapturedAt)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnInvalidTimestamp, warnings[0].Kind)
}

func TestParse_LocksOnly(t *testing.T) {
	t.Parallel()

	d, warnings, err := Parse([]byte(`{"locks": [{"identity": "L", "owner_thread": null, "waiting_threads": []}]}`), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, d.Locks, 1)
	assert.Nil(t, d.Locks[0].Owner)
}

func TestParse_DropsBadEntries(t *testing.T) {
	t.Parallel()

	input := `{
  "threads": [
    {"name": "no-id", "state": "RUNNABLE"},
    {"id": 2, "name": "no-state"},
    {"id": 3, "name": "sleepy", "state": "SLEEPING"},
    {"id": "four", "state": "RUNNABLE"},
    {"id": 5, "name": "ok", "state": "RUNNABLE"}
  ],
  "locks": [
    {"owner_thread": 5},
    {"identity": "   ", "owner_thread": 5},
    {"identity": "L", "owner_thread": "five"}
  ]
}`
	d, warnings, err := Parse([]byte(input), FormatAuto)
	require.NoError(t, err)

	require.Len(t, d.Threads, 1)
	assert.Equal(t, ThreadID(5), d.Threads[0].ID)
	assert.Empty(t, d.Locks)

	missing := warningsOf(warnings, WarnMissingField)
	require.Len(t, missing, 4)
	assert.Equal(t, "threads[0]", missing[0].Subject)
	assert.Contains(t, missing[0].Message, "id")
	assert.Equal(t, "thread 2", missing[1].Subject)
	assert.Contains(t, missing[1].Message, "state")
	assert.Equal(t, "locks[0]", missing[2].Subject)
	assert.Equal(t, "locks[1]", missing[3].Subject)

	invalidState := warningsOf(warnings, WarnInvalidState)
	require.Len(t, invalidState, 1)
	assert.Equal(t, "thread 3", invalidState[0].Subject)
	assert.Contains(t, invalidState[0].Message, "SLEEPING")

	invalid := warningsOf(warnings, WarnInvalidEntry)
	require.Len(t, invalid, 2)
	assert.Equal(t, "threads[3]", invalid[0].Subject)
	assert.Equal(t, "locks[2]", invalid[1].Subject)
}

func TestParse_StateNormalisation(t *testing.T) {
	t.Parallel()

	input := `{"threads": [
  {"id": 1, "state": "timed-waiting"},
  {"id": 2, "state": "Timed Waiting"},
  {"id": 3, "state": " blocked "},
  {"id": 4, "state": "new"},
  {"id": 5, "state": "Terminated"},
  {"id": 6, "state": "waiting"}
]}`
	d, warnings, err := Parse([]byte(input), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	want := []State{StateTimedWaiting, StateTimedWaiting, StateBlocked, StateNew, StateTerminated, StateWaiting}
	for i, st := range want {
		assert.Equal(t, st, d.Threads[i].State, "thread %d", i+1)
	}
	_, ok := ParseState("running")
	assert.False(t, ok)
}

func TestParse_YAMLMatchesJSON(t *testing.T) {
	t.Parallel()

	b := testutil.NewDump().
		At("2024-03-01T10:00:00Z").
		Thread(1, "main", "RUNNABLE", testutil.Stack("java.lang.Thread.run(Thread.java:833)")).
		Thread(2, "pool-1", "BLOCKED", testutil.Holds("A"), testutil.Waits("B")).
		Thread(3, "pool-2", "WAITING", testutil.Holds("B"), testutil.Waits("A")).
		OrphanLock("C", 1)

	fromJSON, jsonWarnings, err := Parse(b.JSON(t), FormatJSON)
	require.NoError(t, err)
	fromYAML, yamlWarnings, err := Parse(b.YAML(t), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, fromJSON.Threads, fromYAML.Threads)
	assert.Equal(t, fromJSON.Locks, fromYAML.Locks)
	assert.Equal(t, fromJSON.SelfWaits, fromYAML.SelfWaits)
	assert.Equal(t, jsonWarnings, yamlWarnings)
	assert.Equal(t, fromJSON.Timestamp, fromYAML.Timestamp)
}

func TestParse_AutoDetectsYAML(t *testing.T) {
	t.Parallel()

	input := `
timestamp: 2024-03-01T10:00:00Z
threads:
  - id: 1
    name: main
    state: runnable
    locks_held: [M]
locks:
  - identity: M
    owner_thread: 1
`
	d, warnings, err := Parse([]byte(input), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, d.Threads, 1)
	assert.Equal(t, []string{"M"}, d.Threads[0].LocksHeld)
	assert.NotNil(t, d.CapturedAt)
}

func TestParse_ExplicitFormatMismatch(t *testing.T) {
	t.Parallel()

	_, _, err := Parse([]byte("threads: []\n"), FormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatAuto, "AUTO": FormatAuto, "json": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
	assert.Equal(t, core.CodeUnsupportedFormat, core.GetCode(err))
	assert.Equal(t, core.ErrCatInput, core.GetCategory(err))
}

func TestParseSequence(t *testing.T) {
	t.Parallel()

	first := testutil.MainWorkerFixture()
	second := testutil.NewDump().At("2024-03-01T10:00:05Z").Thread(1, "main", "TERMINATED")

	captures, err := ParseSequence(testutil.Sequence(t, first, second), FormatAuto)
	require.NoError(t, err)
	require.Len(t, captures, 2)
	assert.Len(t, captures[0].Dump.Threads, 3)
	assert.Len(t, captures[1].Dump.Threads, 1)
	assert.Equal(t, StateTerminated, captures[1].Dump.Threads[0].State)

	single, err := ParseSequence(first.JSON(t), FormatAuto)
	require.NoError(t, err)
	require.Len(t, single, 1)

	yamlSingle, err := ParseSequence(first.YAML(t), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, single[0].Dump.Threads, yamlSingle[0].Dump.Threads)
}

func TestParseSequence_ReportsFailingIndex(t *testing.T) {
	t.Parallel()

	_, err := ParseSequence([]byte(`[{"threads": []}, {"timestamp": "x"}]`), FormatAuto)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Equal(t, core.CodeMissingSections, core.GetCode(err))
	assert.Contains(t, err.Error(), "dump #2")

	_, err = ParseSequence([]byte("- threads: []\n- 17\n"), FormatAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump #2")

	_, err = ParseSequence([]byte("[]"), FormatAuto)
	require.Error(t, err)
	assert.Equal(t, core.CodeMalformedDump, core.GetCode(err))
}

func TestParse_Idempotent(t *testing.T) {
	t.Parallel()

	raw := testutil.RingFixture(5).JSON(t)
	a, wa, err := Parse(raw, FormatAuto)
	require.NoError(t, err)
	b, wb, err := Parse(raw, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, wa, wb)
}
