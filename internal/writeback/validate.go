package writeback

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/agentic-research/twbgraph/internal/graph"
)

// ValidationError reports serialized markup that would not load again.
type ValidationError struct {
	FilePath string
	Line     int // 1-indexed, 0 when unknown
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Validate reparses markup and checks that its document element is rootTag.
// An empty rootTag accepts any document element.
func Validate(markup []byte, filePath, rootTag string) error {
	doc, err := graph.Parse(bytes.NewReader(markup))
	if err != nil {
		ve := &ValidationError{FilePath: filePath, Message: err.Error()}
		var se *graph.SyntaxError
		if errors.As(err, &se) {
			ve.Line = se.Line
			ve.Message = se.Message
		}
		return ve
	}
	defer doc.Tree.Close()

	if got := doc.Tree.Tag(doc.Tree.Root()); rootTag != "" && got != rootTag {
		return &ValidationError{
			FilePath: filePath,
			Message:  fmt.Sprintf("document element is <%s>, want <%s>", got, rootTag),
		}
	}
	return nil
}
