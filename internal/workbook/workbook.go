// Package workbook models an analytics workbook document: data sources and
// their fields, worksheet dependencies, dashboards, color encodings, and the
// structural edits that attach palettes and derived columns.
//
// A Workbook is not safe for concurrent use.
package workbook

import (
	"github.com/agentic-research/twbgraph/internal/graph"
	"github.com/agentic-research/twbgraph/internal/ingest"
	"github.com/agentic-research/twbgraph/internal/writeback"
	"github.com/go-git/go-billy/v5"
)

// RootTag labels the document element of a workbook.
const RootTag = "workbook"

// Workbook is an open workbook document.
type Workbook struct {
	doc        *ingest.Document
	index      *Index
	worksheets []string
}

// Open loads a plain or packaged workbook, builds the data source index and
// links worksheet dependencies to fields.
func Open(fsys billy.Filesystem, path string) (*Workbook, error) {
	doc, err := ingest.Open(fsys, path, RootTag)
	if err != nil {
		return nil, err
	}
	return newWorkbook(doc), nil
}

func newWorkbook(doc *ingest.Document) *Workbook {
	w := &Workbook{doc: doc}
	w.index = BuildIndex(doc.Tree())
	w.worksheets = resolveDependencies(doc.Tree(), w.index)
	return w
}

func (w *Workbook) tree() *graph.Tree { return w.doc.Tree() }

// Tree exposes the underlying element tree.
func (w *Workbook) Tree() *graph.Tree { return w.doc.Tree() }

// Path is the file the workbook was opened from.
func (w *Workbook) Path() string { return w.doc.Path }

// Packaged reports whether the workbook was read from a packaged container.
func (w *Workbook) Packaged() bool { return w.doc.Package != nil }

// DataSources returns the data sources in document order.
func (w *Workbook) DataSources() ([]*DataSource, error) { return w.index.All(w.tree()) }

// DataSource looks up a data source by name.
func (w *Workbook) DataSource(name string) (*DataSource, error) {
	return w.index.Lookup(w.tree(), name)
}

// Worksheets returns the worksheet names in document order.
func (w *Workbook) Worksheets() []string {
	out := make([]string, len(w.worksheets))
	copy(out, w.worksheets)
	return out
}

// Save writes the workbook to the path it was opened from.
func (w *Workbook) Save() error { return writeback.Save(w.doc) }

// SaveAs writes the workbook to path. Save keeps writing to the original path.
func (w *Workbook) SaveAs(path string) error { return writeback.SaveAs(w.doc, path) }

// Close discards the document and its index. Data source lookups fail
// afterwards.
func (w *Workbook) Close() {
	w.doc.Close()
	w.index.release()
}
