package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

var timelineFormat string

var timelineCmd = &cobra.Command{
	Use:   "timeline <dump>... <output>",
	Short: "Render thread states across a series of captures",
	Long: `Render one lane per thread and one column per capture. Inputs are read in
argument order; each input may hold a single dump or a list of dumps.`,
	Example: `  threadlens timeline t0.json t1.json t2.json timeline.mmd
  threadlens timeline --format table captures.json -`,
	Args: minInputs(2),
	RunE: runTimeline,
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().StringVarP(&timelineFormat, "format", "f", "mermaid",
		"output format: mermaid, json, table")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	inputs, out := args[:len(args)-1], args[len(args)-1]
	return newService(cmd).Timeline(cmd.Context(), inputs, out, render.Format(timelineFormat))
}
