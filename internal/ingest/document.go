package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/agentic-research/twbgraph/internal/graph"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Document extensions that may appear inside a packaged container.
var documentExts = []string{".twb", ".tds", ".tps"}

// FormatError reports a file that was read but is not the expected document.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError reports a path that could not be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Package describes the container a packaged document was read from.
// Entry is the archive member holding the document markup.
type Package struct {
	Entry string
}

// Document is one loaded file: the element tree plus where it came from.
// The document element label is fixed at load time.
type Document struct {
	FS      billy.Filesystem
	Path    string
	RootTag string
	Package *Package // nil for plain files

	markup *graph.Document
}

// Tree returns the element tree.
func (d *Document) Tree() *graph.Tree { return d.markup.Tree }

// Markup returns the parsed markup including its prolog.
func (d *Document) Markup() *graph.Document { return d.markup }

// Close releases the tree. Handles and indexes built over it stop resolving.
func (d *Document) Close() {
	d.markup.Tree.Close()
}

// Open loads the document at p from fsys. Plain markup and packaged (zip)
// containers are both accepted. The document element must be labeled
// rootTag or a *FormatError is returned.
func Open(fsys billy.Filesystem, p, rootTag string) (*Document, error) {
	raw, err := util.ReadFile(fsys, p)
	if err != nil {
		return nil, &IOError{Op: "read", Path: p, Err: err}
	}

	doc := &Document{FS: fsys, Path: p, RootTag: rootTag}
	markup := raw
	if IsPackage(raw) {
		entry, data, err := readPackage(raw)
		if err != nil {
			return nil, &FormatError{Path: p, Reason: "invalid package", Err: err}
		}
		doc.Package = &Package{Entry: entry}
		markup = data
	}

	parsed, err := graph.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, &FormatError{Path: p, Reason: "malformed markup", Err: err}
	}
	if got := parsed.Tree.Tag(parsed.Tree.Root()); got != rootTag {
		return nil, &FormatError{Path: p, Reason: fmt.Sprintf("root element is <%s>, want <%s>", got, rootTag)}
	}
	doc.markup = parsed
	return doc, nil
}

// IsPackage reports whether raw starts with a zip local file header.
func IsPackage(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("PK\x03\x04"))
}

// readPackage returns the first top-level document member of a zip container.
func readPackage(raw []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", nil, err
	}
	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") || !isDocumentName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", nil, err
		}
		return f.Name, data, nil
	}
	return "", nil, errors.New("no document member in package")
}

func isDocumentName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range documentExts {
		if ext == e {
			return true
		}
	}
	return false
}
