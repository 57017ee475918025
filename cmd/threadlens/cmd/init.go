package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/threadlens/internal/config"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/fsutil"
)

// configFileName is the project configuration file written by init.
const configFileName = ".threadlens.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write .threadlens.yaml with every setting at its default value to the
current directory.`,
	Args:        exactInputs(0),
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, configFileName)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return core.ErrInput(core.CodeInvalidArgs, "configuration already exists, use --force to overwrite").
			WithDetail("path", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return core.ErrInput(core.CodeReadFailed, "checking existing configuration").WithCause(err)
	}

	if err := fsutil.WriteFileAtomic(configPath, []byte(config.DefaultConfigYAML), 0o644); err != nil {
		return core.ErrRender(core.CodeWriteFailed, "writing configuration").
			WithCause(err).
			WithDetail("path", configPath)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized threadlens configuration in", cwd)
	fmt.Fprintln(out, "Configuration file:", configFileName)
	return nil
}
