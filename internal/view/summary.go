// Package view renders a workbook as generic JSON data and queries it with
// JSONPath.
package view

import (
	"fmt"

	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Summary builds a JSON-shaped snapshot of wb: data sources with their
// fields and usage, worksheets, dashboards, and color extraction results.
// Only maps, slices and scalars appear in it, so it can be walked by jp.
// It fails once the workbook is closed.
func Summary(wb *workbook.Workbook) (map[string]any, error) {
	all, err := wb.DataSources()
	if err != nil {
		return nil, err
	}
	sources := make([]any, 0, len(all))
	for _, ds := range all {
		fields := make([]any, 0, ds.Fields.Len())
		for _, name := range ds.Fields.Names() {
			f, err := ds.Fields.Get(name)
			if err != nil {
				continue
			}
			fields = append(fields, map[string]any{
				"name":        f.Name,
				"caption":     f.Caption,
				"datatype":    f.Datatype,
				"role":        f.Role,
				"type":        f.Type,
				"aggregation": f.Aggregation,
				"calculation": f.Calculation,
				"used_in":     anySlice(f.UsedIn()),
			})
		}
		sources = append(sources, map[string]any{
			"name":    ds.Name,
			"caption": ds.Caption,
			"fields":  fields,
		})
	}

	dashboards := make([]any, 0)
	for _, d := range wb.DashboardViews() {
		dashboards = append(dashboards, map[string]any{
			"name":   d.Name,
			"sheets": anySlice(d.Sheets),
		})
	}

	palettes := make(map[string]any)
	for field, palette := range wb.ColorPaletteMap() {
		palettes[field] = palette
	}

	return map[string]any{
		"path":                  wb.Path(),
		"packaged":              wb.Packaged(),
		"datasources":           sources,
		"worksheets":            anySlice(wb.Worksheets()),
		"dashboards":            dashboards,
		"palettes":              anySlice(wb.Palettes()),
		"color_columns":         anySlice(wb.ColorColumns()),
		"encoded_color_columns": anySlice(wb.EncodedColorColumns()),
		"color_palettes":        palettes,
	}, nil
}

// Select evaluates a JSONPath expression against data.
func Select(data any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(data), nil
}

// JSON renders v indented with sorted keys.
func JSON(v any) string {
	return oj.JSON(v, &ojg.Options{Indent: 2, Sort: true})
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
