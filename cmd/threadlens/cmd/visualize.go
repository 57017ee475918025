package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

var (
	reportFormat string
	topN         int
	stackDepth   int
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize <dump>... <output>",
	Short: "Write the combined diagnostic report",
	Long: `Write a single markdown or HTML report: summary, deadlocks, self-wait
anomalies, top contended locks, the interaction diagram, the contention graph,
the timeline over every capture, and repair warnings.

The last capture is analyzed; all captures feed the timeline.`,
	Args: minInputs(2),
	RunE: runVisualize,
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
	visualizeCmd.Flags().StringVar(&reportFormat, "report-format", "markdown", "report format: markdown, html")
	visualizeCmd.Flags().IntVar(&topN, "top-n", 10, "contended locks listed in the report")
	visualizeCmd.Flags().IntVar(&stackDepth, "stack-depth", 5, "stack frames shown per deadlocked thread")
	addLayoutFlags(visualizeCmd)
}

func runVisualize(cmd *cobra.Command, args []string) error {
	inputs, out := args[:len(args)-1], args[len(args)-1]
	return newService(cmd).Visualize(cmd.Context(), inputs, out, render.Format(cfg.Report.Format))
}
