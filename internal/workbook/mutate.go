package workbook

import (
	"fmt"
	"strings"

	"github.com/agentic-research/twbgraph/internal/graph"
)

// Mutations edit the tree in place and save as their last step. A mutation
// that fails part way returns the error without saving; the in-memory tree
// may already carry some of its edits.

// ObjectModelColumnTag labels columns typed by the object model. It is the
// preferred anchor for new column instances.
const ObjectModelColumnTag = "_.fcp.ObjectModelTableType.true...column"

// derivations maps the code embedded in a column identifier to the
// derivation written on its column instance.
var derivations = map[string]string{
	"sum":  "Sum",
	"yr":   "Year",
	"none": "None",
}

// SetPalette copies the named palette from the preference file at prefPath
// into every preferences element of the workbook, then saves.
func (w *Workbook) SetPalette(prefPath, name string) error {
	if err := w.attachPalette(prefPath, name); err != nil {
		return err
	}
	return w.Save()
}

func (w *Workbook) attachPalette(prefPath, name string) error {
	prefs, err := OpenPreferences(w.doc.FS, prefPath)
	if err != nil {
		return err
	}
	defer prefs.Close()

	palette, err := prefs.Palette(name)
	if err != nil {
		return err
	}

	t := w.tree()
	for _, holder := range t.FindDescendants(t.Root(), "preferences") {
		if _, ok := t.Parent(holder); !ok {
			continue
		}
		if _, err := t.Append(holder, palette.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// decoratedDataSources returns the data source elements of the datasources
// collection, excluding Parameters.
func (w *Workbook) decoratedDataSources() ([]graph.NodeID, error) {
	t := w.tree()
	coll, ok := t.FindChild(t.Root(), "datasources")
	if !ok {
		return nil, nil
	}
	var out []graph.NodeID
	for _, ds := range t.Children(coll) {
		name, err := t.RequireAttr(ds, "name")
		if err != nil {
			return nil, err
		}
		if name != ParametersDataSource {
			out = append(out, ds)
		}
	}
	return out, nil
}

// ApplyColorPalette binds each column to palette through mark style rules.
// A data source without any style rule first gets an empty mark rule
// inserted right after its layout element; data sources with no layout
// element, or a layout in first position, are left without one. Each column
// then becomes a palette encoding at the front of every mark style rule.
func (w *Workbook) ApplyColorPalette(columns []string, palette string) error {
	t := w.tree()
	sources, err := w.decoratedDataSources()
	if err != nil {
		return err
	}

	for _, ds := range sources {
		if len(t.FindDescendants(ds, "style-rule")) == 0 {
			if i := t.IndexWhere(ds, t.HasTag("layout")); i > 0 {
				if _, err := t.Insert(ds, i+1, markStyle()); err != nil {
					return err
				}
			}
		}

		for _, rule := range markStyleRules(t, ds) {
			for _, col := range columns {
				if _, err := t.Insert(rule, 0, paletteEncoding(col, palette)); err != nil {
					return err
				}
			}
		}
	}
	return w.Save()
}

// AddColumnInstances adds a nominal key column instance for every column
// identifier to each data source, right after the anchor column: the last
// object-model column if any, else the last plain column. Data sources whose
// anchor sits in first position, or that have none, are skipped.
func (w *Workbook) AddColumnInstances(columns []string) error {
	t := w.tree()
	sources, err := w.decoratedDataSources()
	if err != nil {
		return err
	}

	instances := make([]*graph.Element, 0, len(columns))
	for _, col := range columns {
		ci, err := columnInstance(col)
		if err != nil {
			return err
		}
		instances = append(instances, ci)
	}

	for _, ds := range sources {
		anchor := t.LastIndexWhere(ds, t.HasTag(ObjectModelColumnTag))
		if anchor <= 0 {
			anchor = t.LastIndexWhere(ds, t.HasTag("column"))
		}
		if anchor <= 0 {
			continue
		}
		for _, ci := range instances {
			if _, err := t.Insert(ds, anchor+1, ci.Clone()); err != nil {
				return err
			}
		}
	}
	return w.Save()
}

// ColumnRef is a parsed column identifier such as "[sum:Sales:qk]".
type ColumnRef struct {
	Code  string // derivation code: sum, yr, none, ...
	Field string // bare field name
}

// ParseColumnRef splits an identifier into its derivation code and field.
// Leading separators are tolerated, so "[:sum:revenue]" yields sum/revenue.
func ParseColumnRef(id string) (ColumnRef, error) {
	s := strings.TrimSuffix(strings.TrimPrefix(id, "["), "]")
	s = strings.TrimLeft(s, ":")
	parts := strings.Split(s, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ColumnRef{}, fmt.Errorf("column identifier %q has no derivation code and field", id)
	}
	return ColumnRef{Code: parts[0], Field: parts[1]}, nil
}

// Derivation maps a derivation code to its display form. Unknown codes map to "None".
func Derivation(code string) string {
	if d, ok := derivations[code]; ok {
		return d
	}
	return "None"
}

// InstanceName derives the generated column instance name: the final three
// characters of the identifier become "ok]" for yearly columns and "nk]"
// otherwise.
func InstanceName(id, code string) string {
	suffix := "nk]"
	if code == "yr" {
		suffix = "ok]"
	}
	if len(id) < 3 {
		return suffix
	}
	return id[:len(id)-3] + suffix
}

func columnInstance(id string) (*graph.Element, error) {
	ref, err := ParseColumnRef(id)
	if err != nil {
		return nil, err
	}
	return graph.E("column-instance", graph.A(
		"column", "["+ref.Field+"]",
		"derivation", Derivation(ref.Code),
		"name", InstanceName(id, ref.Code),
		"pivot", "key",
		"type", "nominal",
	)), nil
}

func markStyle(children ...*graph.Element) *graph.Element {
	return graph.E("style", nil, graph.E("style-rule", graph.A("element", "mark"), children...))
}

func paletteEncoding(field, palette string) *graph.Element {
	return graph.E("encoding", graph.A("attr", "color", "field", field, "palette", palette, "type", "palette"))
}

func interpolatedEncoding(field, palette string) *graph.Element {
	return graph.E("encoding", graph.A("attr", "color", "field", field, "palette", palette, "type", "interpolated"))
}

// ApplyMeasureColorPalette attaches the palette from prefPath, then gives
// worksheets colored by a quantitative field an interpolated color rule.
//
// Color shelf columns are split into categorical (identifier contains
// "none") and measure columns. Worksheets with a color encoding on a "qk"
// column are matched, along with the data sources they use. The new rule is
// built from the first matched data source and the first measure column
// only; every matched worksheet's table loses its existing style and gets
// the rule at position 1.
func (w *Workbook) ApplyMeasureColorPalette(prefPath, palette string) error {
	if err := w.attachPalette(prefPath, palette); err != nil {
		return err
	}
	t := w.tree()

	var measures []string
	for _, col := range w.colorShelfColumns() {
		if strings.Contains(col, "none") {
			continue
		}
		if _, field, ok := strings.Cut(col, "]."); ok {
			measures = append(measures, field)
		}
	}

	var sheets []graph.NodeID
	for _, ws := range t.FindDescendants(t.Root(), "worksheet") {
		for _, c := range t.FindDescendants(ws, "color") {
			if strings.Contains(t.AttrOr(c, "column", ""), "qk") {
				sheets = append(sheets, ws)
				break
			}
		}
	}

	var dsNames []string
	for _, ws := range sheets {
		for _, ds := range t.FindDescendants(ws, "datasource") {
			if name, ok := t.Attr(ds, "name"); ok {
				dsNames = append(dsNames, name)
			}
		}
	}

	if len(measures) > 0 && len(dsNames) > 0 {
		field := fmt.Sprintf("[%s].%s", dsNames[0], measures[0])
		rule := markStyle(interpolatedEncoding(field, palette))

		for _, ws := range sheets {
			for _, table := range t.FindChildren(ws, "table") {
				for _, style := range t.FindChildren(table, "style") {
					if err := t.Remove(table, style); err != nil {
						return err
					}
				}
				at := min(1, t.NumChildren(table))
				if _, err := t.Insert(table, at, rule.Clone()); err != nil {
					return err
				}
			}
		}
	}
	return w.Save()
}
