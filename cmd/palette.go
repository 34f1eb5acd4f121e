package cmd

import (
	"fmt"

	"github.com/agentic-research/twbgraph/internal/config"
	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/spf13/cobra"
)

var colorColumns []string

var setPaletteCmd = &cobra.Command{
	Use:   "set-palette [workbook] [palette]",
	Short: "Copy a palette from the preference file into the workbook",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := config.PaletteOr(cfg, optionalArg(args, 1))
		if err != nil {
			return err
		}
		return edit(args[0], func(wb *workbook.Workbook) error {
			return wb.SetPalette(preferences(cfg), name)
		})
	},
}

var applyColorCmd = &cobra.Command{
	Use:   "apply-color [workbook] [palette]",
	Short: "Bind columns to a palette through mark style rules",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := config.PaletteOr(cfg, optionalArg(args, 1))
		if err != nil {
			return err
		}
		if len(colorColumns) == 0 {
			return fmt.Errorf("no columns given, use --column")
		}
		return edit(args[0], func(wb *workbook.Workbook) error {
			return wb.ApplyColorPalette(colorColumns, name)
		})
	},
}

var measurePaletteCmd = &cobra.Command{
	Use:   "measure-palette [workbook] [palette]",
	Short: "Color measure-encoded worksheets with an interpolated palette",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := config.PaletteOr(cfg, optionalArg(args, 1))
		if err != nil {
			return err
		}
		return edit(args[0], func(wb *workbook.Workbook) error {
			return wb.ApplyMeasureColorPalette(preferences(cfg), name)
		})
	},
}

func init() {
	applyColorCmd.Flags().StringSliceVar(&colorColumns, "column", nil, "Column identifier such as [none:Region:nk] (repeatable)")
	rootCmd.AddCommand(setPaletteCmd, applyColorCmd, measurePaletteCmd)
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// edit opens the workbook at path on the host filesystem and runs fn, which
// is expected to save.
func edit(path string, fn func(*workbook.Workbook) error) error {
	wb, err := workbook.Open(hostFS, path)
	if err != nil {
		return err
	}
	defer wb.Close()
	if err := fn(wb); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", wb.Path())
	return nil
}
