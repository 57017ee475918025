package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
)

var (
	analyzeJSON  bool
	analyzePlain bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dump>",
	Short: "Print the analysis summary of a dump",
	Long: `Print thread and lock counts, deadlock groups, self-wait anomalies, top
contended locks and repair warnings.

On a terminal the summary is rendered as styled markdown; --plain prints the
markdown source and --json prints the structured result.`,
	Args: exactInputs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the structured result as JSON")
	analyzeCmd.Flags().BoolVar(&analyzePlain, "plain", false, "print markdown without terminal styling")
	analyzeCmd.Flags().IntVar(&topN, "top-n", 10, "contended locks listed in the summary")
	analyzeCmd.Flags().IntVar(&stackDepth, "stack-depth", 5, "stack frames shown per deadlocked thread")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	svc := newService(cmd)
	a, err := svc.Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		data, err := json.MarshalIndent(a.Result, "", "  ")
		if err != nil {
			return core.ErrInternal(core.CodeRenderFailed, "encoding analysis").WithCause(err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	summary, err := svc.Summary(a)
	if err != nil {
		return err
	}

	if analyzePlain || noColor || !isTerminal(out) {
		_, err = out.Write(summary)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return core.ErrRender(core.CodeRenderFailed, "creating terminal renderer").WithCause(err)
	}
	styled, err := renderer.Render(string(summary))
	if err != nil {
		return core.ErrRender(core.CodeRenderFailed, "rendering summary").WithCause(err)
	}
	_, err = fmt.Fprint(out, styled)
	return err
}
