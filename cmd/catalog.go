package cmd

import (
	"fmt"
	"time"

	"github.com/agentic-research/twbgraph/internal/catalog"
	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

var catalogOut string

var catalogCmd = &cobra.Command{
	Use:   "catalog [workbook...]",
	Short: "Export workbook metadata into a SQLite catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := catalogOut
		if output == "" {
			output = cfg.Catalog
		}
		start := time.Now()
		fmt.Printf("Building %s from %d workbook(s)...\n", output, len(args))
		if err := runCatalog(hostFS, output, args); err != nil {
			return err
		}
		fmt.Printf("Done in %v.\n", time.Since(start))
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogOut, "out", "o", "", "Catalog database (overrides config)")
	rootCmd.AddCommand(catalogCmd)
}

// runCatalog writes each workbook into the catalog at dbPath. The database
// is opened by the SQLite driver directly, not through fsys.
func runCatalog(fsys billy.Filesystem, dbPath string, paths []string) error {
	writer, err := catalog.NewWriter(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	for _, p := range paths {
		wb, err := workbook.Open(fsys, p)
		if err != nil {
			return err
		}
		err = writer.WriteWorkbook(wb)
		wb.Close()
		if err != nil {
			return fmt.Errorf("catalog %s: %w", p, err)
		}
	}
	return nil
}
