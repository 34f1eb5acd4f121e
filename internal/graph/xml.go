package graph

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SyntaxError reports malformed markup.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Document is a parsed tree plus the prolog (XML declaration, comments,
// doctype) that preceded the document element, kept verbatim for writing.
type Document struct {
	Prolog []byte
	Tree   *Tree
}

// Parse reads markup into a Tree. Namespace prefixes are kept as part of tag
// and attribute names ("user:ui-builder") so they round-trip unchanged.
// Comments and processing instructions inside the document element are dropped.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	doc := &Document{}
	var prolog bytes.Buffer
	var t *Tree
	var stack []NodeID
	done := false

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return nil, &SyntaxError{Line: se.Line, Message: se.Msg}
			}
			return nil, err
		}
		line, _ := dec.InputPos()

		switch tok := tok.(type) {
		case xml.StartElement:
			if done {
				return nil, &SyntaxError{Line: line, Message: "content after document element"}
			}
			name := qualified(tok.Name)
			attrs := make([]Attr, 0, len(tok.Attr))
			for _, a := range tok.Attr {
				attrs = append(attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if t == nil {
				t = NewTree(name)
				t.nodes[t.root].attrs = attrs
				stack = append(stack, t.root)
				continue
			}
			parent := stack[len(stack)-1]
			id := t.alloc(name, attrs, parent)
			t.nodes[parent].children = append(t.nodes[parent].children, id)
			stack = append(stack, id)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &SyntaxError{Line: line, Message: "unexpected end element " + qualified(tok.Name)}
			}
			top := stack[len(stack)-1]
			if got := qualified(tok.Name); got != t.nodes[top].tag {
				return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("element <%s> closed by </%s>", t.nodes[top].tag, got)}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				done = true
			}

		case xml.CharData:
			if len(stack) == 0 {
				if !done {
					prolog.Write(tok)
				}
				continue
			}
			top := stack[len(stack)-1]
			n := &t.nodes[top]
			if len(n.children) == 0 {
				n.text += string(tok)
			} else {
				last := n.children[len(n.children)-1]
				t.nodes[last].tail += string(tok)
			}

		case xml.ProcInst:
			if t == nil {
				fmt.Fprintf(&prolog, "<?%s %s?>", tok.Target, tok.Inst)
			}

		case xml.Comment:
			if t == nil {
				fmt.Fprintf(&prolog, "<!--%s-->", tok)
			}

		case xml.Directive:
			if t == nil {
				fmt.Fprintf(&prolog, "<!%s>", tok)
			}
		}
	}

	if t == nil {
		return nil, &SyntaxError{Message: "no document element"}
	}
	if len(stack) != 0 {
		return nil, &SyntaxError{Message: fmt.Sprintf("unclosed element <%s>", t.nodes[stack[len(stack)-1]].tag)}
	}
	doc.Prolog = prolog.Bytes()
	doc.Tree = t
	return doc, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Encode writes the prolog and the tree as markup.
func (d *Document) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(d.Prolog); err != nil {
		return err
	}
	if err := d.Tree.Encode(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// Bytes encodes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the tree starting at the document element. Elements with no
// children and no text are written self-closed.
func (t *Tree) Encode(w io.Writer) error {
	if t.closed {
		return ErrClosed
	}
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	t.encode(bw, t.root)
	return bw.Flush()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;",
		"\n", "&#10;", "\r", "&#13;", "\t", "&#9;")
)

func (t *Tree) encode(w *bufio.Writer, id NodeID) {
	n := &t.nodes[id]
	w.WriteByte('<')
	w.WriteString(n.tag)
	for _, a := range n.attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString("='")
		attrEscaper.WriteString(w, a.Value)
		w.WriteByte('\'')
	}
	if len(n.children) == 0 && n.text == "" {
		w.WriteString(" />")
	} else {
		w.WriteByte('>')
		textEscaper.WriteString(w, n.text)
		for _, c := range n.children {
			t.encode(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.tag)
		w.WriteByte('>')
	}
	textEscaper.WriteString(w, n.tail)
}
