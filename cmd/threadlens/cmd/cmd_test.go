package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/testutil"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI in a fresh working directory and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return out.String(), err
}

func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func fixtureFile(t *testing.T, dir, name string, b *testutil.DumpBuilder) string {
	t.Helper()
	return testutil.TempFile(t, dir, name, string(b.JSON(t)))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"deadlocks", ErrDeadlocksFound, ExitDeadlock},
		{"wrapped deadlocks", fmt.Errorf("detect: %w", ErrDeadlocksFound), ExitDeadlock},
		{"input", core.ErrInput(core.CodeMalformedDump, "bad"), ExitInput},
		{"wrapped input", fmt.Errorf("dump.json: %w", core.ErrInput(core.CodeEmptyInput, "empty")), ExitInput},
		{"render", core.ErrRender(core.CodeWriteFailed, "disk full"), ExitInternal},
		{"internal", core.ErrInternal(core.CodePanic, "boom"), ExitInternal},
		{"plain", errors.New("unexpected"), ExitInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), tt.name)
	}
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintError(&buf, ErrDeadlocksFound)
	assert.Empty(t, buf.String())

	PrintError(&buf, core.ErrInput(core.CodeEmptyInput, "dump payload is empty"))
	assert.Equal(t, "Error: dump payload is empty\n", buf.String())
}

func TestDiagramCommand_WritesFile(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "dump.json", testutil.MutualWaitFixture())
	out := filepath.Join(dir, "diagram.mmd")

	stdout, err := execute(t, "", "diagram", in, out, "--direction", "TB")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	content := testutil.ReadFile(t, out)
	assert.True(t, strings.HasPrefix(content, "flowchart TB\n"))
	assert.Contains(t, content, ":::deadlock")
}

func TestDiagramCommand_StdinToStdout(t *testing.T) {
	workdir(t)

	stdout, err := execute(t, string(testutil.MainWorkerFixture().JSON(t)), "diagram", "-", "-", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "interaction", doc["graph"])
}

func TestDiagramCommand_ConfigAndEnvFormat(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "dump.json", testutil.MainWorkerFixture())
	testutil.TempFile(t, dir, ".threadlens.yaml", "render:\n  format: dot\n")

	stdout, err := execute(t, "", "diagram", in, "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "digraph interaction {"))

	t.Setenv("THREADLENS_RENDER_FORMAT", "json")
	stdout, err = execute(t, "", "diagram", in, "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"graph": "interaction"`)

	stdout, err = execute(t, "", "diagram", in, "-", "--format", "mermaid")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "flowchart LR"))
}

func TestCommands_UsageErrorsAreInputErrors(t *testing.T) {
	workdir(t)

	cases := [][]string{
		{"diagram", "only-one-arg"},
		{"timeline", "single"},
		{"detect-deadlocks"},
		{"diagram", "a", "b", "--no-such-flag"},
		{"no-such-command"},
	}
	for _, args := range cases {
		_, err := execute(t, "", args...)
		require.Error(t, err, args)
		assert.Equal(t, ExitInput, ExitCode(err), args)
		assert.Equal(t, core.CodeInvalidArgs, core.GetCode(err), args)
	}
}

func TestCommands_InvalidConfiguration(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "dump.json", testutil.MainWorkerFixture())

	_, err := execute(t, "", "visualize", in, "-", "--report-format", "pdf")
	require.Error(t, err)
	assert.Equal(t, core.CodeInvalidConfig, core.GetCode(err))
	assert.Equal(t, ExitInput, ExitCode(err))

	testutil.TempFile(t, dir, ".threadlens.yaml", "batch:\n  concurrency: 0\n")
	_, err = execute(t, "", "analyze", in)
	assert.Equal(t, core.CodeInvalidConfig, core.GetCode(err))
}

func TestCommands_InputErrors(t *testing.T) {
	dir := workdir(t)
	empty := testutil.TempFile(t, dir, "empty.json", "")
	broken := testutil.TempFile(t, dir, "broken.yaml", "threads: [\n")

	for _, in := range []string{empty, broken, filepath.Join(dir, "missing.json")} {
		_, err := execute(t, "", "detect-deadlocks", in)
		require.Error(t, err, in)
		assert.Equal(t, ExitInput, ExitCode(err), in)
	}

	_, err := execute(t, "", "analyze", "-", "--max-bytes", "4")
	assert.Equal(t, core.CodeEmptyInput, core.GetCode(err))

	_, err = execute(t, "{\"threads\": []}", "analyze", "-", "--max-bytes", "4")
	assert.Equal(t, core.CodeInputTooLarge, core.GetCode(err))
}

func TestCommands_WriteFailureIsInternal(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "dump.json", testutil.MainWorkerFixture())
	blocker := testutil.TempFile(t, dir, "blocker", "x")

	_, err := execute(t, "", "contention", in, filepath.Join(blocker, "out.mmd"))
	require.Error(t, err)
	assert.Equal(t, core.CodeWriteFailed, core.GetCode(err))
	assert.Equal(t, ExitInternal, ExitCode(err))
}

func TestDetectCommand(t *testing.T) {
	dir := workdir(t)
	mutual := fixtureFile(t, dir, "mutual.json", testutil.MutualWaitFixture())
	healthy := fixtureFile(t, dir, "healthy.json", testutil.MainWorkerFixture())

	stdout, err := execute(t, "", "detect-deadlocks", mutual)
	assert.ErrorIs(t, err, ErrDeadlocksFound)
	assert.Equal(t, ExitDeadlock, ExitCode(err))
	assert.Contains(t, stdout, "1 deadlock group(s) in "+mutual)
	assert.Contains(t, stdout, "group 1: T1 (#1) → L2 → T2 (#2) → L1 → T1 (#1)")

	stdout, err = execute(t, "", "detect-deadlocks", healthy)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no deadlocks in "+healthy)

	stdout, err = execute(t, "", "detect-deadlocks", "--json", healthy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deadlocks": [], "self_waits": []}`, stdout)
}

func TestDetectCommand_SelfWait(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "self.json", testutil.NewDump().
		Thread(4, "reentrant", "WAITING", testutil.Holds("M"), testutil.Waits("M")))

	stdout, err := execute(t, "", "detect-deadlocks", in)
	require.NoError(t, err)
	assert.Contains(t, stdout, "self-wait: reentrant (#4) waits on M, which it already holds")
}

func TestAnalyzeCommand(t *testing.T) {
	dir := workdir(t)
	in := fixtureFile(t, dir, "dump.json", testutil.MainWorkerFixture())

	stdout, err := execute(t, "", "analyze", in, "--json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.EqualValues(t, 3, res["thread_count"])

	stdout, err = execute(t, "", "analyze", in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "# Thread dump analysis\n"))
	assert.Contains(t, stdout, "No deadlocks detected.")
	assert.Contains(t, stdout, "| `H` | worker-1 (#2) | 1 | worker-2 (#3) |")
}

func TestTimelineCommand(t *testing.T) {
	dir := workdir(t)
	seq := testutil.TempFile(t, dir, "seq.json", string(testutil.Sequence(t,
		testutil.NewDump().At("a").Thread(1, "main", "RUNNABLE"),
		testutil.NewDump().At("b").Thread(1, "main", "BLOCKED"),
	)))

	stdout, err := execute(t, "", "timeline", seq, "-", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, stdout, "| main (#1) | RUNNABLE | BLOCKED |")

	_, err = execute(t, "", "timeline", seq, "-", "--format", "dot")
	assert.Equal(t, core.CodeUnsupportedFormat, core.GetCode(err))
	assert.Equal(t, ExitInput, ExitCode(err))
}

func TestVisualizeCommand(t *testing.T) {
	dir := workdir(t)
	first := fixtureFile(t, dir, "first.json", testutil.MainWorkerFixture())
	second := fixtureFile(t, dir, "second.json", testutil.MutualWaitFixture())
	out := filepath.Join(dir, "report.html")

	_, err := execute(t, "", "visualize", first, second, out, "--report-format", "html", "--top-n", "1")
	require.NoError(t, err)

	content := testutil.ReadFile(t, out)
	assert.Contains(t, content, "<!DOCTYPE html>")
	assert.Contains(t, content, "Captures: 2")
	assert.Contains(t, content, "Top 1 of 2 contended locks.")
}

func TestBatchCommand(t *testing.T) {
	dir := workdir(t)
	mutual := fixtureFile(t, dir, "mutual.json", testutil.MutualWaitFixture())
	healthy := fixtureFile(t, dir, "healthy.json", testutil.MainWorkerFixture())
	broken := testutil.TempFile(t, dir, "broken.json", "{")

	stdout, err := execute(t, "", "batch", healthy, mutual)
	assert.ErrorIs(t, err, ErrDeadlocksFound)
	assert.Contains(t, stdout, "2 input(s), 1 deadlocked, 0 failed")
	testutil.AssertOrder(t, stdout, healthy, "ok", mutual, "deadlock")

	stdout, err = execute(t, "", "batch", "--concurrency", "1", broken, healthy, mutual)
	require.Error(t, err)
	assert.Equal(t, core.CodeBatchFailed, core.GetCode(err))
	assert.Equal(t, ExitInput, ExitCode(err))
	assert.Contains(t, stdout, "3 input(s), 1 deadlocked, 1 failed")

	stdout, err = execute(t, "", "batch", "--json", healthy)
	require.NoError(t, err)
	var report struct {
		Items []struct {
			Path string `json:"path"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Items, 1)
	assert.Equal(t, healthy, report.Items[0].Path)
}

func TestInitCommand(t *testing.T) {
	dir := workdir(t)

	stdout, err := execute(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration file: .threadlens.yaml")

	written, err := os.ReadFile(filepath.Join(dir, ".threadlens.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "render:")

	_, err = execute(t, "", "init")
	assert.Equal(t, ExitInput, ExitCode(err))

	_, err = execute(t, "", "init", "--force")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	workdir(t)
	SetVersion("v1.2.3", "abc123", "2026-01-15")
	t.Cleanup(func() { SetVersion("", "", "") })

	stdout, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "threadlens v1.2.3")
	assert.Contains(t, stdout, "commit: abc123")
	assert.Contains(t, stdout, "built:  2026-01-15")
	assert.Equal(t, "v1.2.3", GetVersion())
}

func TestExecute_Help(t *testing.T) {
	workdir(t)

	stdout, err := execute(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "detect-deadlocks")
	assert.Contains(t, stdout, "visualize")
}
