package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
	"github.com/hugo-lorenzo-mato/threadlens/internal/testutil"
)

func captureSeries(t *testing.T) []*dump.ThreadDump {
	t.Helper()
	builders := []*testutil.DumpBuilder{
		testutil.NewDump().At("t0").
			Thread(1, "main", "RUNNABLE").
			Thread(2, "worker", "BLOCKED"),
		testutil.NewDump().At("t1").
			Thread(2, "worker-renamed", "BLOCKED").
			Thread(1, "main", "RUNNABLE"),
		testutil.NewDump().At("t2").
			Thread(2, "worker-renamed", "RUNNABLE").
			Thread(3, "late", "WAITING"),
	}
	dumps := make([]*dump.ThreadDump, len(builders))
	for i, b := range builders {
		dumps[i], _ = mustParse(t, b)
	}
	return dumps
}

func TestTimeline_GanttMergesRuns(t *testing.T) {
	t.Parallel()

	out, err := Timeline(captureSeries(t), DefaultOptions())
	require.NoError(t, err)

	testutil.AssertOrder(t, string(out),
		"gantt\n",
		"    title Thread states across 3 captures\n",
		"    dateFormat X\n",
		"    axisFormat %s\n",
		"    section main (1)\n",
		"    RUNNABLE :t1_0, 0, 2\n",
		"    section worker-renamed (2)\n",
		"    BLOCKED :crit, t2_0, 0, 2\n",
		"    RUNNABLE :t2_1, 2, 3\n",
		"    section late (3)\n",
		"    WAITING :active, t3_0, 2, 3\n",
	)
	assert.NotContains(t, string(out), "section worker (2)")
}

func TestTimeline_GanttTags(t *testing.T) {
	t.Parallel()

	d, _ := mustParse(t, testutil.NewDump().
		Thread(1, "a", "TERMINATED").
		Thread(2, "b", "TIMED_WAITING").
		Thread(3, "c", "NEW"))
	out, err := Timeline([]*dump.ThreadDump{d}, DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, string(out), "    title Thread states across 1 capture\n")
	assert.Contains(t, string(out), "    TERMINATED :done, t1_0, 0, 1\n")
	assert.Contains(t, string(out), "    TIMED_WAITING :active, t2_0, 0, 1\n")
	assert.Contains(t, string(out), "    NEW :t3_0, 0, 1\n")
}

func TestTimeline_GapSplitsRun(t *testing.T) {
	t.Parallel()

	var dumps []*dump.ThreadDump
	for _, b := range []*testutil.DumpBuilder{
		testutil.NewDump().Thread(1, "flaky", "WAITING"),
		testutil.NewDump().Thread(2, "other", "RUNNABLE"),
		testutil.NewDump().Thread(1, "flaky", "WAITING"),
	} {
		d, _ := mustParse(t, b)
		dumps = append(dumps, d)
	}

	out, err := Timeline(dumps, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, string(out), "    WAITING :active, t1_0, 0, 1\n")
	assert.Contains(t, string(out), "    WAITING :active, t1_1, 2, 3\n")
}

func TestTimeline_JSON(t *testing.T) {
	t.Parallel()

	out, err := Timeline(captureSeries(t), DefaultOptions().with(FormatJSON))
	require.NoError(t, err)

	var doc timelineDoc
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.Captures, 3)
	assert.Equal(t, "t2", doc.Captures[2].Timestamp)

	require.Len(t, doc.Lanes, 3)
	main := doc.Lanes[0]
	assert.Equal(t, dump.ThreadID(1), main.ThreadID)
	require.Len(t, main.States, 3)
	assert.Nil(t, main.States[2])
	assert.Equal(t, 0, main.Transitions)

	worker := doc.Lanes[1]
	assert.Equal(t, "worker-renamed (#2)", worker.Label)
	assert.Equal(t, 1, worker.Transitions)
	require.NotNil(t, worker.States[2])
	assert.Equal(t, dump.StateRunnable, *worker.States[2])

	assert.Contains(t, string(out), `null`)
}

func TestTimeline_Table(t *testing.T) {
	t.Parallel()

	out, err := Timeline(captureSeries(t), DefaultOptions().with(FormatTable))
	require.NoError(t, err)

	assert.Equal(t,
		"| Thread | #0 t0 | #1 t1 | #2 t2 |\n"+
			"|---|---|---|---|\n"+
			"| main (#1) | RUNNABLE | RUNNABLE | - |\n"+
			"| worker-renamed (#2) | BLOCKED | BLOCKED | RUNNABLE |\n"+
			"| late (#3) | - | - | WAITING |\n",
		string(out))
}

func TestTimeline_TableWithoutTimestamps(t *testing.T) {
	t.Parallel()

	d, _ := mustParse(t, testutil.NewDump().Thread(5, "pipe|name", "NEW"))
	out, err := Timeline([]*dump.ThreadDump{d}, DefaultOptions().with(FormatTable))
	require.NoError(t, err)

	assert.Equal(t, "| Thread | #0 |\n|---|---|\n| pipe\\|name (#5) | NEW |\n", string(out))
}
