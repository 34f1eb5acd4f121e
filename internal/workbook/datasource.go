package workbook

import (
	"errors"
	"fmt"

	"github.com/agentic-research/twbgraph/internal/graph"
)

// ErrNotFound is wrapped by every name lookup miss: data source, field, palette.
var ErrNotFound = errors.New("not found")

// ParametersDataSource is the reserved data source holding workbook
// parameters. Mutations that decorate data sources skip it.
const ParametersDataSource = "Parameters"

// Field is a column or measure definition owned by a data source.
type Field struct {
	Name        string
	Caption     string
	Datatype    string
	Role        string
	Type        string
	Aggregation string
	Calculation string // formula, for calculated fields

	usedIn []string
}

// AddUsedIn records that worksheet references the field. Repeated
// declarations are recorded again; the list is append-only.
func (f *Field) AddUsedIn(worksheet string) {
	f.usedIn = append(f.usedIn, worksheet)
}

// UsedIn returns the worksheets referencing the field, one entry per declaration.
func (f *Field) UsedIn() []string {
	out := make([]string, len(f.usedIn))
	copy(out, f.usedIn)
	return out
}

// FieldRegistry maps field name → descriptor for one data source.
type FieldRegistry struct {
	fields map[string]*Field
	order  []string
}

func newFieldRegistry() *FieldRegistry {
	return &FieldRegistry{fields: make(map[string]*Field)}
}

func (r *FieldRegistry) add(f *Field) {
	if _, ok := r.fields[f.Name]; !ok {
		r.order = append(r.order, f.Name)
	}
	r.fields[f.Name] = f
}

// Get returns the named field.
func (r *FieldRegistry) Get(name string) (*Field, error) {
	f, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", name, ErrNotFound)
	}
	return f, nil
}

// Names returns field names in definition order.
func (r *FieldRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of fields.
func (r *FieldRegistry) Len() int { return len(r.order) }

// DataSource is a named collection of field definitions.
type DataSource struct {
	Name    string
	Caption string
	Node    graph.NodeID
	Fields  *FieldRegistry
}

// newDataSource builds the field registry from the data source's direct
// column definitions, then adds metadata-record columns not already defined.
func newDataSource(t *graph.Tree, id graph.NodeID) *DataSource {
	ds := &DataSource{
		Name:    t.AttrOr(id, "name", ""),
		Caption: t.AttrOr(id, "caption", ""),
		Node:    id,
		Fields:  newFieldRegistry(),
	}

	for _, col := range t.FindChildren(id, "column") {
		name, ok := t.Attr(col, "name")
		if !ok {
			continue
		}
		f := &Field{
			Name:        name,
			Caption:     t.AttrOr(col, "caption", ""),
			Datatype:    t.AttrOr(col, "datatype", ""),
			Role:        t.AttrOr(col, "role", ""),
			Type:        t.AttrOr(col, "type", ""),
			Aggregation: t.AttrOr(col, "aggregation", ""),
		}
		if calc, ok := t.FindChild(col, "calculation"); ok {
			f.Calculation = t.AttrOr(calc, "formula", "")
		}
		ds.Fields.add(f)
	}

	for _, rec := range t.FindDescendants(id, "metadata-record") {
		if t.AttrOr(rec, "class", "") != "column" {
			continue
		}
		ln, ok := t.FindChild(rec, "local-name")
		if !ok {
			continue
		}
		name := t.Text(ln)
		if name == "" {
			continue
		}
		if _, err := ds.Fields.Get(name); err == nil {
			continue
		}
		f := &Field{Name: name}
		if dt, ok := t.FindChild(rec, "local-type"); ok {
			f.Datatype = t.Text(dt)
		}
		if agg, ok := t.FindChild(rec, "aggregation"); ok {
			f.Aggregation = t.Text(agg)
		}
		ds.Fields.add(f)
	}
	return ds
}

// Index maps data source name → data source. It holds arena handles, never
// the tree itself: lookups take the tree and fail once it has been closed or
// when handed a tree other than the one the index was built from.
type Index struct {
	treeID  uint64
	entries map[string]*DataSource
	order   []*DataSource
}

// BuildIndex walks the datasources collection in document order. Later
// entries win on duplicate names. A document without a datasources
// collection yields an empty index.
func BuildIndex(t *graph.Tree) *Index {
	idx := &Index{treeID: t.ID(), entries: make(map[string]*DataSource)}
	coll, ok := t.FindChild(t.Root(), "datasources")
	if !ok {
		return idx
	}
	for _, id := range t.FindChildren(coll, "datasource") {
		ds := newDataSource(t, id)
		idx.entries[ds.Name] = ds
		idx.order = append(idx.order, ds)
	}
	return idx
}

// Lookup returns the named data source. It fails with graph.ErrClosed after
// the document is closed and with ErrNotFound on a miss.
func (x *Index) Lookup(t *graph.Tree, name string) (*DataSource, error) {
	if t == nil || t.Closed() {
		return nil, graph.ErrClosed
	}
	if t.ID() != x.treeID {
		return nil, fmt.Errorf("index built for tree %d, queried with tree %d", x.treeID, t.ID())
	}
	ds, ok := x.entries[name]
	if !ok || !t.Valid(ds.Node) {
		return nil, fmt.Errorf("datasource %q: %w", name, ErrNotFound)
	}
	return ds, nil
}

// All returns every data source in document order, shadowed duplicates
// included. Like Lookup it fails with graph.ErrClosed once the document is
// closed.
func (x *Index) All(t *graph.Tree) ([]*DataSource, error) {
	if t == nil || t.Closed() {
		return nil, graph.ErrClosed
	}
	if t.ID() != x.treeID {
		return nil, fmt.Errorf("index built for tree %d, queried with tree %d", x.treeID, t.ID())
	}
	out := make([]*DataSource, len(x.order))
	copy(out, x.order)
	return out, nil
}

// release drops every entry so fields do not outlive the document.
func (x *Index) release() {
	x.entries = make(map[string]*DataSource)
	x.order = nil
}

// Len returns the number of distinct names.
func (x *Index) Len() int { return len(x.entries) }
