package workbook

import (
	"strings"

	"github.com/agentic-research/twbgraph/internal/graph"
)

// Every extractor here is a fresh read-only pass over the tree; nothing is
// cached, so results always reflect the current document.

// Palettes returns the name of every color palette in the document, in
// document order, duplicates kept.
func (w *Workbook) Palettes() []string {
	t := w.tree()
	out := []string{}
	for _, p := range t.FindDescendants(t.Root(), "color-palette") {
		if name, ok := t.Attr(p, "name"); ok {
			out = append(out, name)
		}
	}
	return out
}

// ColorColumns returns the fields bound directly to a color shelf, with the
// data source qualifier stripped: "[ds].[sum:Sales:qk]" → "[sum:Sales:qk]".
func (w *Workbook) ColorColumns() []string {
	out := []string{}
	for _, col := range w.colorShelfColumns() {
		if _, field, ok := strings.Cut(col, "]."); ok {
			out = append(out, field)
		}
	}
	return out
}

// colorShelfColumns returns the raw column attribute of every color encoding
// found under an encodings collection.
func (w *Workbook) colorShelfColumns() []string {
	t := w.tree()
	var out []string
	for _, enc := range t.FindUnderCollection(t.Root(), "encodings") {
		if t.Tag(enc) != "color" {
			continue
		}
		if col, ok := t.Attr(enc, "column"); ok {
			out = append(out, col)
		}
	}
	return out
}

// EncodedColorColumns returns the field of every encoding nested in a mark
// style rule, verbatim.
func (w *Workbook) EncodedColorColumns() []string {
	t := w.tree()
	out := []string{}
	for _, enc := range markEncodings(t, t.Root()) {
		if field, ok := t.Attr(enc, "field"); ok {
			out = append(out, field)
		}
	}
	return out
}

// ColorPaletteMap maps each mark style rule encoding's field to its palette.
// Keys drop the first 6 and last 4 characters of the field, which strip the
// fixed-width qualifier and suffix of the generated field names. A missing
// palette maps to "".
func (w *Workbook) ColorPaletteMap() map[string]string {
	t := w.tree()
	out := make(map[string]string)
	for _, enc := range markEncodings(t, t.Root()) {
		field, ok := t.Attr(enc, "field")
		if !ok {
			continue
		}
		out[trimFieldKey(field)] = t.AttrOr(enc, "palette", "")
	}
	return out
}

// trimFieldKey counts characters, not bytes, so accented field names trim the
// same way as ASCII ones.
func trimFieldKey(field string) string {
	r := []rune(field)
	if len(r) <= 10 {
		return ""
	}
	return string(r[6 : len(r)-4])
}

// markStyleRules returns style rules under root targeting marks.
func markStyleRules(t *graph.Tree, root graph.NodeID) []graph.NodeID {
	var out []graph.NodeID
	for _, rule := range t.FindDescendants(root, "style-rule") {
		if el, ok := t.Attr(rule, "element"); ok && el == "mark" {
			out = append(out, rule)
		}
	}
	return out
}

func markEncodings(t *graph.Tree, root graph.NodeID) []graph.NodeID {
	var out []graph.NodeID
	for _, rule := range markStyleRules(t, root) {
		out = append(out, t.FindDescendants(rule, "encoding")...)
	}
	return out
}
