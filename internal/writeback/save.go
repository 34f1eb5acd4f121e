package writeback

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/agentic-research/twbgraph/internal/ingest"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Save writes doc back to the path it was opened from.
func Save(doc *ingest.Document) error {
	return SaveAs(doc, doc.Path)
}

// SaveAs writes doc to target. The document keeps its original identity:
// a later Save still writes to doc.Path. A packaged document is written as
// a package, with every other member copied from the original container.
func SaveAs(doc *ingest.Document, target string) error {
	markup, err := doc.Markup().Bytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Path, err)
	}
	if err := Validate(markup, target, doc.RootTag); err != nil {
		return err
	}

	content := markup
	if doc.Package != nil {
		content, err = repack(doc, markup)
		if err != nil {
			return err
		}
	}
	return writeAtomic(doc.FS, target, content)
}

// repack rebuilds the original container with the document member replaced.
func repack(doc *ingest.Document, markup []byte) ([]byte, error) {
	orig, err := util.ReadFile(doc.FS, doc.Path)
	if err != nil {
		return nil, &ingest.IOError{Op: "read", Path: doc.Path, Err: err}
	}
	zr, err := zip.NewReader(bytes.NewReader(orig), int64(len(orig)))
	if err != nil {
		return nil, &ingest.FormatError{Path: doc.Path, Reason: "invalid package", Err: err}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		hdr := f.FileHeader
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("repack %s: %w", f.Name, err)
		}
		if f.Name == doc.Package.Entry {
			if _, err := w.Write(markup); err != nil {
				return nil, fmt.Errorf("repack %s: %w", f.Name, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("repack %s: %w", f.Name, err)
		}
		_, err = io.Copy(w, rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("repack %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("repack: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes content to a temp file next to target, then renames it
// into place.
func writeAtomic(fsys billy.Filesystem, target string, content []byte) error {
	dir := filepath.Dir(target)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return &ingest.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := fsys.TempFile(dir, ".twbgraph-save-")
	if err != nil {
		return &ingest.IOError{Op: "create temp", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return &ingest.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return &ingest.IOError{Op: "close", Path: tmpName, Err: err}
	}

	// Preserve the existing file's permissions where the filesystem supports it.
	if info, err := fsys.Stat(target); err == nil {
		if ch, ok := fsys.(billy.Change); ok {
			_ = ch.Chmod(tmpName, info.Mode()) // best-effort permission sync
		}
	}

	if err := fsys.Rename(tmpName, target); err != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return &ingest.IOError{Op: "rename", Path: target, Err: err}
	}
	return nil
}
