package extract

import (
	"errors"
	"fmt"
)

var errEmptyDocument = errors.New("document has no pages")

// ExtractionError is a fatal pipeline failure (decode or OCR engine init).
// The run aborts, progress resets and no partial document is returned.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError reports a failed upload-record save after extraction
// completed. It is non-fatal: the extracted document stays valid and is
// returned alongside this error.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist upload record: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
