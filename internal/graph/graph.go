package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNotFound         = errors.New("node not found")
	ErrClosed           = errors.New("tree is closed")
	ErrIndexRange       = errors.New("child index out of range")
	ErrMissingAttribute = errors.New("missing attribute")
)

// NodeID is an arena handle into a Tree. IDs are never reused, so a handle
// to a removed node keeps failing lookups instead of aliasing a newer node.
type NodeID uint32

// NoNode is returned where a lookup produced no node.
const NoNode NodeID = ^NodeID(0)

// Attr is a single attribute. Attribute order is preserved on write.
type Attr struct {
	Name  string
	Value string
}

// node is an arena slot. Text is the character data before the first child,
// Tail the character data after the end tag (inside the parent).
type node struct {
	tag      string
	attrs    []Attr
	children []NodeID
	parent   NodeID
	text     string
	tail     string
	live     bool
}

var treeSeq atomic.Uint64

// Tree is an ordered, attributed, mutable element tree stored in an arena.
// Parents own their children; the parent link is only a back-reference used
// for removal and insertion context.
//
// A Tree is not safe for concurrent mutation. Callers serialize access.
type Tree struct {
	id     uint64
	nodes  []node
	root   NodeID
	closed bool

	// Roaring bitmap index: tag → set of live node IDs.
	// Lets tag searches return early for tags the tree does not contain
	// and skip the per-node tag comparison.
	tags map[string]*roaring.Bitmap
}

// NewTree creates a tree with a single root element.
func NewTree(rootTag string) *Tree {
	t := &Tree{
		id:   treeSeq.Add(1),
		tags: make(map[string]*roaring.Bitmap),
	}
	t.root = t.alloc(rootTag, nil, NoNode)
	return t
}

// ID uniquely identifies this tree within the process. Indexes built over a
// tree record it so they can refuse lookups against a different tree.
func (t *Tree) ID() uint64 { return t.id }

// Root returns the document element.
func (t *Tree) Root() NodeID { return t.root }

// Closed reports whether Close has been called.
func (t *Tree) Closed() bool { return t.closed }

// Close releases the arena. Every handle into the tree becomes invalid.
func (t *Tree) Close() {
	t.closed = true
	t.nodes = nil
	t.tags = nil
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].live {
			n++
		}
	}
	return n
}

func (t *Tree) alloc(tag string, attrs []Attr, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{tag: tag, attrs: attrs, parent: parent, live: true})
	bm, ok := t.tags[tag]
	if !ok {
		bm = roaring.New()
		t.tags[tag] = bm
	}
	bm.Add(uint32(id))
	return id
}

func (t *Tree) get(id NodeID) (*node, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if int(id) >= len(t.nodes) || !t.nodes[id].live {
		return nil, ErrNotFound
	}
	return &t.nodes[id], nil
}

// Valid reports whether id refers to a live node of this tree.
func (t *Tree) Valid(id NodeID) bool {
	_, err := t.get(id)
	return err == nil
}

// Tag returns the element label, or "" for an invalid handle.
func (t *Tree) Tag(id NodeID) string {
	n, err := t.get(id)
	if err != nil {
		return ""
	}
	return n.tag
}

// Attr returns the attribute value and whether it is present.
// A present-but-empty attribute returns ("", true).
func (t *Tree) Attr(id NodeID, name string) (string, bool) {
	n, err := t.get(id)
	if err != nil {
		return "", false
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func (t *Tree) AttrOr(id NodeID, name, def string) string {
	if v, ok := t.Attr(id, name); ok {
		return v
	}
	return def
}

// RequireAttr returns the attribute value or an error wrapping ErrMissingAttribute.
func (t *Tree) RequireAttr(id NodeID, name string) (string, error) {
	n, err := t.get(id)
	if err != nil {
		return "", err
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, nil
		}
	}
	return "", fmt.Errorf("<%s> %q: %w", n.tag, name, ErrMissingAttribute)
}

// Attrs returns a copy of the node's attributes in document order.
func (t *Tree) Attrs(id NodeID) []Attr {
	n, err := t.get(id)
	if err != nil {
		return nil
	}
	out := make([]Attr, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// SetAttr sets an attribute, replacing an existing value in place or
// appending a new attribute at the end.
func (t *Tree) SetAttr(id NodeID, name, value string) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return nil
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
	return nil
}

// Text returns the character data directly inside the element, before its first child.
func (t *Tree) Text(id NodeID) string {
	n, err := t.get(id)
	if err != nil {
		return ""
	}
	return n.text
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	n, err := t.get(id)
	if err != nil || n.parent == NoNode {
		return NoNode, false
	}
	return n.parent, true
}

// Children returns a copy of the ordered child list.
func (t *Tree) Children(id NodeID) []NodeID {
	n, err := t.get(id)
	if err != nil {
		return nil
	}
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out
}

// NumChildren returns the number of direct children.
func (t *Tree) NumChildren(id NodeID) int {
	n, err := t.get(id)
	if err != nil {
		return 0
	}
	return len(n.children)
}

// FindChildren returns direct children of parent labeled tag, in order.
func (t *Tree) FindChildren(parent NodeID, tag string) []NodeID {
	n, err := t.get(parent)
	if err != nil {
		return nil
	}
	bm := t.tags[tag]
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	var out []NodeID
	for _, c := range n.children {
		if bm.Contains(uint32(c)) {
			out = append(out, c)
		}
	}
	return out
}

// FindChild returns the first direct child of parent labeled tag.
func (t *Tree) FindChild(parent NodeID, tag string) (NodeID, bool) {
	found := t.FindChildren(parent, tag)
	if len(found) == 0 {
		return NoNode, false
	}
	return found[0], true
}

// FindDescendants returns every element labeled tag in the subtree rooted at
// root, root included, depth-first in document order.
func (t *Tree) FindDescendants(root NodeID, tag string) []NodeID {
	if _, err := t.get(root); err != nil {
		return nil
	}
	bm := t.tags[tag]
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	var out []NodeID
	t.walk(root, func(id NodeID) {
		if bm.Contains(uint32(id)) {
			out = append(out, id)
		}
	})
	return out
}

// FindFirst returns the first element labeled tag in document order under root.
func (t *Tree) FindFirst(root NodeID, tag string) (NodeID, bool) {
	found := t.FindDescendants(root, tag)
	if len(found) == 0 {
		return NoNode, false
	}
	return found[0], true
}

// FindUnderCollection returns the direct children of every collection-labeled
// element below root, in document order. Searching an "encodings" collection
// yields the individual encodings regardless of their labels.
func (t *Tree) FindUnderCollection(root NodeID, collection string) []NodeID {
	var out []NodeID
	for _, group := range t.FindDescendants(root, collection) {
		out = append(out, t.nodes[group].children...)
	}
	return out
}

func (t *Tree) walk(id NodeID, fn func(NodeID)) {
	fn(id)
	for _, c := range t.nodes[id].children {
		t.walk(c, fn)
	}
}

// ChildIndex returns the position of child within parent's child list, or -1.
// Callers must check for -1 before using the result as an insertion base.
func (t *Tree) ChildIndex(parent, child NodeID) int {
	return t.IndexWhere(parent, func(c NodeID) bool { return c == child })
}

// IndexWhere returns the position of the first direct child satisfying match, or -1.
func (t *Tree) IndexWhere(parent NodeID, match func(NodeID) bool) int {
	n, err := t.get(parent)
	if err != nil {
		return -1
	}
	for i, c := range n.children {
		if match(c) {
			return i
		}
	}
	return -1
}

// LastIndexWhere returns the position of the last direct child satisfying match, or -1.
func (t *Tree) LastIndexWhere(parent NodeID, match func(NodeID) bool) int {
	n, err := t.get(parent)
	if err != nil {
		return -1
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if match(n.children[i]) {
			return i
		}
	}
	return -1
}

// HasTag returns a predicate matching nodes labeled tag.
func (t *Tree) HasTag(tag string) func(NodeID) bool {
	return func(id NodeID) bool { return t.Tag(id) == tag }
}

// Insert materializes frag and places it at index within parent's children,
// shifting later siblings right. index must be in [0, NumChildren(parent)].
func (t *Tree) Insert(parent NodeID, index int, frag *Element) (NodeID, error) {
	p, err := t.get(parent)
	if err != nil {
		return NoNode, err
	}
	if index < 0 || index > len(p.children) {
		return NoNode, fmt.Errorf("insert at %d into <%s> with %d children: %w", index, p.tag, len(p.children), ErrIndexRange)
	}
	id := t.build(frag, parent)
	// re-fetch: build may have grown the arena
	p = &t.nodes[parent]
	p.children = append(p.children, NoNode)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = id
	return id, nil
}

// Append materializes frag as the last child of parent.
func (t *Tree) Append(parent NodeID, frag *Element) (NodeID, error) {
	p, err := t.get(parent)
	if err != nil {
		return NoNode, err
	}
	return t.Insert(parent, len(p.children), frag)
}

// Remove detaches child from parent and releases the detached subtree.
func (t *Tree) Remove(parent, child NodeID) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}
	idx := t.ChildIndex(parent, child)
	if idx < 0 {
		return fmt.Errorf("<%s> is not a child of <%s>: %w", t.Tag(child), p.tag, ErrNotFound)
	}
	p.children = append(p.children[:idx], p.children[idx+1:]...)
	t.release(child)
	return nil
}

func (t *Tree) release(id NodeID) {
	n := &t.nodes[id]
	for _, c := range n.children {
		t.release(c)
	}
	if bm := t.tags[n.tag]; bm != nil {
		bm.Remove(uint32(id))
	}
	*n = node{parent: NoNode}
}

func (t *Tree) build(frag *Element, parent NodeID) NodeID {
	attrs := make([]Attr, len(frag.Attrs))
	copy(attrs, frag.Attrs)
	id := t.alloc(frag.Tag, attrs, parent)
	t.nodes[id].text = frag.Text
	t.nodes[id].tail = frag.Tail
	children := make([]NodeID, 0, len(frag.Children))
	for _, c := range frag.Children {
		children = append(children, t.build(c, id))
	}
	t.nodes[id].children = children
	return id
}

// Fragment returns a detached deep copy of the subtree rooted at id,
// suitable for inserting into this or another tree.
func (t *Tree) Fragment(id NodeID) (*Element, error) {
	n, err := t.get(id)
	if err != nil {
		return nil, err
	}
	el := &Element{Tag: n.tag, Text: n.text, Attrs: make([]Attr, len(n.attrs))}
	copy(el.Attrs, n.attrs)
	for _, c := range n.children {
		ce, err := t.Fragment(c)
		if err != nil {
			return nil, err
		}
		ce.Tail = t.nodes[c].tail
		el.Children = append(el.Children, ce)
	}
	return el, nil
}
