package cmd

import (
	"fmt"
	"io"

	"github.com/agentic-research/twbgraph/internal/view"
	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

var selectExpr string

var inspectCmd = &cobra.Command{
	Use:   "inspect [workbook]",
	Short: "Print data sources, fields, dashboards and color encodings as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), hostFS, args[0], selectExpr)
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&selectExpr, "select", "q", "", "JSONPath applied to the summary")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(out io.Writer, fsys billy.Filesystem, path, selector string) error {
	wb, err := workbook.Open(fsys, path)
	if err != nil {
		return err
	}
	defer wb.Close()

	summary, err := view.Summary(wb)
	if err != nil {
		return err
	}
	var data any = summary
	if selector != "" {
		if data, err = view.Select(data, selector); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out, view.JSON(data))
	return err
}
