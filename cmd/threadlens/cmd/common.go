package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/service"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitDeadlock = 1
	ExitInput    = 2
	ExitInternal = 3
)

// ErrDeadlocksFound is returned by detection commands that completed and
// found at least one deadlock group.
var ErrDeadlocksFound = errors.New("deadlocks found")

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDeadlocksFound):
		return ExitDeadlock
	case core.IsCategory(err, core.ErrCatInput):
		return ExitInput
	default:
		return ExitInternal
	}
}

// PrintError writes the one-line error message for err. Deadlock findings
// have already been reported and print nothing.
func PrintError(w io.Writer, err error) {
	if err == nil || errors.Is(err, ErrDeadlocksFound) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func newService(cmd *cobra.Command) *service.Service {
	return service.New(cfg, logger,
		service.WithStdin(cmd.InOrStdin()),
		service.WithStdout(cmd.OutOrStdout()),
	)
}

// formatOr returns flag when the user set it, otherwise fallback.
func formatOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// exactInputs validates positional arguments and reports violations as
// input errors.
func exactInputs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return core.ErrInput(core.CodeInvalidArgs,
				fmt.Sprintf("expected %d argument(s), found %d", n, len(args)))
		}
		return nil
	}
}

func minInputs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < n {
			return core.ErrInput(core.CodeInvalidArgs,
				fmt.Sprintf("expected at least %d argument(s), found %d", n, len(args)))
		}
		return nil
	}
}
