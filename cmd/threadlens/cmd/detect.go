package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/dump"
	"github.com/hugo-lorenzo-mato/threadlens/internal/service"
)

var detectJSON bool

var detectCmd = &cobra.Command{
	Use:   "detect-deadlocks <dump>",
	Short: "Report deadlock groups and self-wait anomalies",
	Long: `Report every circular wait in the dump and every thread recorded as waiting
on a lock it already holds.

Exits with status 1 when at least one deadlock group is found, so the command
can gate scripts and CI jobs.`,
	Args: exactInputs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "print deadlock groups and self-waits as JSON")
}

type detection struct {
	Deadlocks []analysis.DeadlockGroup `json:"deadlocks"`
	SelfWaits []dump.SelfWait          `json:"self_waits"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	a, err := newService(cmd).Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if detectJSON {
		data, err := json.MarshalIndent(detection{Deadlocks: a.Result.Deadlocks, SelfWaits: a.Result.SelfWaits}, "", "  ")
		if err != nil {
			return core.ErrInternal(core.CodeRenderFailed, "encoding detection result").WithCause(err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		printDetection(out, a)
	}

	if a.Result.HasDeadlocks() {
		return ErrDeadlocksFound
	}
	return nil
}

func printDetection(w io.Writer, a *service.Analysis) {
	st := newStyles(w)
	name := a.Path
	if name == service.StdioPath {
		name = "stdin"
	}

	if !a.Result.HasDeadlocks() {
		fmt.Fprintf(w, "%s no deadlocks in %s\n", st.ok.Render("✓"), name)
	} else {
		fmt.Fprintf(w, "%s %d deadlock group(s) in %s\n", st.fail.Render("✗"), len(a.Result.Deadlocks), name)
		for i, g := range a.Result.Deadlocks {
			fmt.Fprintf(w, "  %s %s\n", st.header.Render(fmt.Sprintf("group %d:", i+1)), cycleText(a.Dump, g, st))
		}
	}

	for _, sw := range a.Result.SelfWaits {
		fmt.Fprintf(w, "%s self-wait: %s waits on %s, which it already holds\n",
			st.warn.Render("!"), threadName(a.Dump, sw.Thread), st.accent.Render(sw.Lock))
	}
}

// cycleText renders a group as "A (#1) → L2 → B (#2) → L1 → A (#1)".
func cycleText(d *dump.ThreadDump, g analysis.DeadlockGroup, st styles) string {
	parts := make([]string, 0, 2*len(g.ThreadIDs)+1)
	for i, id := range g.ThreadIDs {
		parts = append(parts, threadName(d, id), st.accent.Render(g.LockChain[i]))
	}
	parts = append(parts, threadName(d, g.ThreadIDs[0]))
	return strings.Join(parts, st.muted.Render(" → "))
}

func threadName(d *dump.ThreadDump, id dump.ThreadID) string {
	if t, ok := d.Thread(id); ok {
		return fmt.Sprintf("%s (#%d)", t.DisplayName(), t.ID)
	}
	return fmt.Sprintf("#%d", id)
}
