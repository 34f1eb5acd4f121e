package workbook

import (
	"fmt"

	"github.com/agentic-research/twbgraph/internal/graph"
	"github.com/agentic-research/twbgraph/internal/ingest"
	"github.com/go-git/go-billy/v5"
)

// Preferences is a read-only preference file supplying named color palettes.
type Preferences struct {
	doc      *ingest.Document
	palettes []graph.NodeID
}

// OpenPreferences loads the preference file at path.
func OpenPreferences(fsys billy.Filesystem, path string) (*Preferences, error) {
	doc, err := ingest.Open(fsys, path, "preferences")
	if err != nil {
		return nil, err
	}
	t := doc.Tree()
	return &Preferences{doc: doc, palettes: t.FindDescendants(t.Root(), "color-palette")}, nil
}

// PaletteNames returns the palette names in file order.
func (p *Preferences) PaletteNames() []string {
	t := p.doc.Tree()
	out := make([]string, 0, len(p.palettes))
	for _, id := range p.palettes {
		out = append(out, t.AttrOr(id, "name", ""))
	}
	return out
}

// Palette returns a detached copy of the named palette. When several
// palettes share the name the last one wins.
func (p *Preferences) Palette(name string) (*graph.Element, error) {
	t := p.doc.Tree()
	found := graph.NoNode
	for _, id := range p.palettes {
		if v, ok := t.Attr(id, "name"); ok && v == name {
			found = id
		}
	}
	if found == graph.NoNode {
		return nil, fmt.Errorf("palette %q in %s: %w", name, p.doc.Path, ErrNotFound)
	}
	return t.Fragment(found)
}

// Close releases the preference tree.
func (p *Preferences) Close() { p.doc.Close() }
