package cmd

import (
	"fmt"

	"github.com/agentic-research/twbgraph/api"
	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply [workbook]",
	Short: "Apply every palette binding from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(hostFS, cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

// runApply applies bindings in file order. A binding either colors measure
// worksheets, or attaches its palette and binds its columns, optionally
// after adding column instances for them.
func runApply(fsys billy.Filesystem, c *api.Config, path string) error {
	if len(c.Bindings) == 0 {
		return fmt.Errorf("config has no binding blocks")
	}
	wb, err := workbook.Open(fsys, path)
	if err != nil {
		return err
	}
	defer wb.Close()

	prefs := preferences(c)
	for _, b := range c.Bindings {
		if b.Measure {
			if err := wb.ApplyMeasureColorPalette(prefs, b.Palette); err != nil {
				return fmt.Errorf("binding %q: %w", b.Palette, err)
			}
			continue
		}
		if b.Instances {
			if err := wb.AddColumnInstances(b.Columns); err != nil {
				return fmt.Errorf("binding %q: %w", b.Palette, err)
			}
		}
		if err := wb.SetPalette(prefs, b.Palette); err != nil {
			return fmt.Errorf("binding %q: %w", b.Palette, err)
		}
		if err := wb.ApplyColorPalette(b.Columns, b.Palette); err != nil {
			return fmt.Errorf("binding %q: %w", b.Palette, err)
		}
	}
	return nil
}
