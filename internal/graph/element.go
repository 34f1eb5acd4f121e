package graph

// Element is a detached subtree: the unit that Insert and Append place into
// a Tree, and that Fragment copies out of one. Building fragments as values
// keeps attribute content out of markup text, so no input can inject tags.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string
	Tail     string
}

// E builds an element. attrs is a flat name, value list; a trailing odd
// name is ignored.
func E(tag string, attrs []string, children ...*Element) *Element {
	el := &Element{Tag: tag, Children: children}
	for i := 0; i+1 < len(attrs); i += 2 {
		el.Attrs = append(el.Attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	return el
}

// A is shorthand for the attribute list passed to E.
func A(pairs ...string) []string { return pairs }

// Attr returns the value of a fragment attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the fragment.
func (e *Element) Clone() *Element {
	out := &Element{Tag: e.Tag, Text: e.Text, Tail: e.Tail, Attrs: make([]Attr, len(e.Attrs))}
	copy(out.Attrs, e.Attrs)
	for _, c := range e.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}
