package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

var (
	diagramFormat string
	direction     string
	hideIdle      bool
)

var diagramCmd = &cobra.Command{
	Use:   "diagram <dump> <output>",
	Short: "Render the thread and lock interaction diagram",
	Long: `Render which threads hold and wait on which locks. Deadlocked threads and
the edges of each cycle are highlighted.

Use "-" as <dump> to read stdin and as <output> to write stdout.`,
	Example: `  threadlens diagram dump.json diagram.mmd
  threadlens diagram --format dot dump.yaml - | dot -Tsvg > diagram.svg`,
	Args: exactInputs(2),
	RunE: runDiagram,
}

func init() {
	rootCmd.AddCommand(diagramCmd)
	diagramCmd.Flags().StringVarP(&diagramFormat, "format", "f", "",
		"output format: mermaid, dot, json (default: render.format)")
	addLayoutFlags(diagramCmd)
}

// addLayoutFlags registers the diagram layout flags on cmd.
func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&direction, "direction", "LR", "flowchart direction: LR, RL, TB, BT")
	cmd.Flags().BoolVar(&hideIdle, "hide-idle", false, "omit threads without lock relations")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	format := render.Format(formatOr(diagramFormat, cfg.Render.Format))
	return newService(cmd).Diagram(cmd.Context(), args[0], args[1], format)
}
