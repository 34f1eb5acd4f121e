package workbook

import (
	"log"

	"github.com/agentic-research/twbgraph/internal/graph"
)

// resolveDependencies links worksheet dependency declarations to field
// definitions and returns the worksheet names in document order.
//
// Resolution is best-effort: declarations naming a data source or field that
// no longer exists are skipped, since older workbooks keep dependencies on
// deleted data sources.
func resolveDependencies(t *graph.Tree, idx *Index) []string {
	var worksheets []string
	coll, ok := t.FindFirst(t.Root(), "worksheets")
	if !ok {
		return worksheets
	}

	for _, ws := range t.Children(coll) {
		wsName, ok := t.Attr(ws, "name")
		if !ok {
			continue
		}
		worksheets = append(worksheets, wsName)

		for _, dep := range t.FindDescendants(ws, "datasource-dependencies") {
			dsName, ok := t.Attr(dep, "datasource")
			if !ok {
				continue
			}
			ds, err := idx.Lookup(t, dsName)
			if err != nil {
				log.Printf("resolve %s: skip dependency: %v", wsName, err)
				continue
			}
			for _, col := range t.FindDescendants(dep, "column") {
				colName, ok := t.Attr(col, "name")
				if !ok {
					continue
				}
				f, err := ds.Fields.Get(colName)
				if err != nil {
					continue
				}
				f.AddUsedIn(wsName)
			}
		}
	}
	return worksheets
}
