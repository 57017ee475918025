package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/service"
)

var (
	batchJSON   bool
	concurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dump>...",
	Short: "Detect deadlocks in many dumps at once",
	Long: `Analyze every input independently and concurrently. A malformed or
unreadable input is reported and the remaining inputs are still analyzed.

Exits with status 2 when any input could not be analyzed, otherwise 1 when
any input holds a deadlock, otherwise 0.`,
	Args: minInputs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print per-input results as JSON")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "inputs analyzed in parallel")
}

func runBatch(cmd *cobra.Command, args []string) error {
	report := newService(cmd).Batch(cmd.Context(), args)

	out := cmd.OutOrStdout()
	if batchJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return core.ErrInternal(core.CodeRenderFailed, "encoding batch result").WithCause(err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		printBatch(out, report)
	}

	if failed := report.Failed(); failed > 0 {
		return core.ErrInput(core.CodeBatchFailed,
			fmt.Sprintf("%d of %d inputs could not be analyzed", failed, len(report.Items)))
	}
	if report.Deadlocked() > 0 {
		return ErrDeadlocksFound
	}
	return nil
}

func printBatch(w io.Writer, report *service.BatchReport) {
	st := newStyles(w)

	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		switch {
		case item.Err() != nil:
			rows = append(rows, []string{item.Path, "error", "-", "-", "-", item.Error})
		case item.Deadlocked():
			rows = append(rows, []string{item.Path, "deadlock",
				strconv.Itoa(item.Result.ThreadCount),
				strconv.Itoa(len(item.Result.Deadlocks)),
				strconv.Itoa(len(item.Result.Contention)), ""})
		default:
			rows = append(rows, []string{item.Path, "ok",
				strconv.Itoa(item.Result.ThreadCount), "0",
				strconv.Itoa(len(item.Result.Contention)), ""})
		}
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.muted).
		Headers("INPUT", "STATUS", "THREADS", "DEADLOCKS", "CONTENDED", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header.Padding(0, 1)
			}
			if col != 1 {
				return cell
			}
			switch rows[row][1] {
			case "error":
				return st.fail.Padding(0, 1)
			case "deadlock":
				return st.warn.Padding(0, 1)
			default:
				return st.ok.Padding(0, 1)
			}
		})

	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d input(s), %d deadlocked, %d failed\n",
		len(report.Items), report.Deadlocked(), report.Failed())
}
