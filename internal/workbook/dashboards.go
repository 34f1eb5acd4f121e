package workbook

import (
	"github.com/agentic-research/twbgraph/internal/graph"
)

// DashboardView is a dashboard and the distinct sheet names its zones
// reference, in first-occurrence order.
type DashboardView struct {
	Name   string
	Sheets []string
}

// Dashboards extracts a dashboard name → zone sheet names map.
//
// Only dashboard elements carrying a type attribute are collected; an
// untyped dashboard is a legacy entry and produces nothing. The check is on
// presence, so an empty type still counts. Dashboards without a name are
// skipped, and a later dashboard overwrites an earlier one of the same name.
// A collected dashboard with no named zones maps to an empty list.
func (w *Workbook) Dashboards() map[string][]string {
	out := make(map[string][]string)
	for _, v := range w.DashboardViews() {
		out[v.Name] = v.Sheets
	}
	return out
}

// DashboardViews is Dashboards in document order. Duplicate names keep the
// position of their first occurrence and the content of their last.
func (w *Workbook) DashboardViews() []DashboardView {
	t := w.tree()
	var views []DashboardView
	pos := make(map[string]int)

	for _, d := range t.FindDescendants(t.Root(), "dashboard") {
		name, ok := t.Attr(d, "name")
		if !ok || name == "" {
			continue
		}
		if _, typed := t.Attr(d, "type"); !typed {
			continue
		}
		v := DashboardView{Name: name, Sheets: zoneSheets(t, d)}
		if i, seen := pos[name]; seen {
			views[i] = v
			continue
		}
		pos[name] = len(views)
		views = append(views, v)
	}
	return views
}

func zoneSheets(t *graph.Tree, dashboard graph.NodeID) []string {
	sheets := []string{}
	seen := make(map[string]bool)
	for _, z := range t.FindDescendants(dashboard, "zone") {
		name, ok := t.Attr(z, "name")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		sheets = append(sheets, name)
	}
	return sheets
}

// RemoveDashboard deletes every dashboard named name, the story points that
// captured it, and any dashboards collection left empty, then saves.
func (w *Workbook) RemoveDashboard(name string) error {
	t := w.tree()

	for _, coll := range t.FindDescendants(t.Root(), "dashboards") {
		for _, d := range t.FindChildren(coll, "dashboard") {
			if t.AttrOr(d, "name", "") == name {
				if err := t.Remove(coll, d); err != nil {
					return err
				}
			}
		}
	}

	for _, coll := range t.FindDescendants(t.Root(), "story-points") {
		for _, sp := range t.FindChildren(coll, "story-point") {
			if v, ok := t.Attr(sp, "captured-sheet"); ok && v == name {
				if err := t.Remove(coll, sp); err != nil {
					return err
				}
			}
		}
	}

	for _, coll := range t.FindChildren(t.Root(), "dashboards") {
		if t.NumChildren(coll) == 0 {
			if err := t.Remove(t.Root(), coll); err != nil {
				return err
			}
		}
	}
	return w.Save()
}
