package cmd

import (
	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/spf13/cobra"
)

var addColumnsCmd = &cobra.Command{
	Use:   "add-columns [workbook] [column...]",
	Short: "Add nominal key column instances to every data source",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return edit(args[0], func(wb *workbook.Workbook) error {
			return wb.AddColumnInstances(args[1:])
		})
	},
}

var removeDashboardCmd = &cobra.Command{
	Use:   "remove-dashboard [workbook] [name...]",
	Short: "Delete dashboards and the story points that captured them",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return edit(args[0], func(wb *workbook.Workbook) error {
			for _, name := range args[1:] {
				if err := wb.RemoveDashboard(name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addColumnsCmd, removeDashboardCmd)
}
