package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrDepthExceeded is returned when archives nest deeper than MaxArchiveDepth.
	ErrDepthExceeded = errors.New("archive nesting too deep")
	// ErrSizeExceeded is returned when an archive expands past MaxArchiveBytes.
	ErrSizeExceeded = errors.New("archive expands beyond size limit")
	// ErrUnsupported is returned when a kind cannot be handled in this build.
	ErrUnsupported = errors.New("unsupported payload")
)

// ExtractionError wraps any failure turning a payload into text. It is
// recovered at the file boundary: the item scans as empty text.
type ExtractionError struct {
	Path string
	Kind PayloadKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
