package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/render"
)

var contentionFormat string

var contentionCmd = &cobra.Command{
	Use:   "contention <dump> <output>",
	Short: "Render the lock contention graph",
	Long: `Render contended locks and the threads waiting on them. Lock nodes are
weighted by waiter count and edges carry each waiter's arrival position.`,
	Args: exactInputs(2),
	RunE: runContention,
}

func init() {
	rootCmd.AddCommand(contentionCmd)
	contentionCmd.Flags().StringVarP(&contentionFormat, "format", "f", "",
		"output format: mermaid, dot, json (default: render.format)")
	addLayoutFlags(contentionCmd)
}

func runContention(cmd *cobra.Command, args []string) error {
	format := render.Format(formatOr(contentionFormat, cfg.Render.Format))
	return newService(cmd).Contention(cmd.Context(), args[0], args[1], format)
}
