package services

import (
	"errors"
	"fmt"
)

var (
	ErrBusy            = errors.New("a load is already in progress")
	ErrEmptyDeck       = errors.New("deck has no pages to export")
	ErrIndexOutOfRange = errors.New("page index out of range")
	ErrUnknownPage     = errors.New("unknown page id")
)

// LoadError aborts a whole batch load. Page is 0 when the file itself could
// not be opened.
type LoadError struct {
	File string
	Page int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("load failed for %s page %d: %v", e.File, e.Page, e.Err)
	}
	return fmt.Sprintf("load failed for %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ExportError aborts an export. No output is delivered when one is returned.
type ExportError struct {
	Stage  string // "copy", "append", "serialize" or "deliver"
	PageID string
	Err    error
}

func (e *ExportError) Error() string {
	if e.PageID != "" {
		return fmt.Sprintf("export failed at %s of %s: %v", e.Stage, e.PageID, e.Err)
	}
	return fmt.Sprintf("export failed at %s: %v", e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
