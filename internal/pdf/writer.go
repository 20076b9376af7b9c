package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Lllllllleong/pdfweave/internal/deck"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Writer assembles new documents out of pages copied from parsed sources.
type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) CreateEmpty() deck.Output { return &Output{} }

// Output collects single-page PDFs cut from their sources and merges them on
// Serialize.
type Output struct {
	pages [][]byte
}

type copiedPage struct {
	owner *Output
	data  []byte
}

// CopyPage cuts page pageIndex (zero-based) out of src, keeping its fonts,
// images and other resources.
func (o *Output) CopyPage(src deck.Source, pageIndex int) (deck.CopiedPage, error) {
	doc, ok := src.(*Document)
	if !ok {
		return nil, ErrForeignSource
	}
	if pageIndex < 0 || pageIndex >= doc.PageCount() {
		return nil, fmt.Errorf("page index %d out of range for %s (%d pages)", pageIndex, doc.name, doc.PageCount())
	}
	var buf bytes.Buffer
	selected := []string{strconv.Itoa(pageIndex + 1)}
	if err := api.Trim(bytes.NewReader(doc.raw), &buf, selected, newConfig()); err != nil {
		return nil, fmt.Errorf("failed to copy page %d of %s: %w", pageIndex+1, doc.name, err)
	}
	return &copiedPage{owner: o, data: buf.Bytes()}, nil
}

func (o *Output) AppendPage(page deck.CopiedPage) error {
	cp, ok := page.(*copiedPage)
	if !ok || cp.owner != o {
		return errors.New("page was not copied for this output")
	}
	o.pages = append(o.pages, cp.data)
	return nil
}

func (o *Output) PageCount() int { return len(o.pages) }

// Serialize writes the assembled document. Pages appear in append order.
func (o *Output) Serialize(w io.Writer) error {
	switch len(o.pages) {
	case 0:
		return errors.New("output document has no pages")
	case 1:
		_, err := w.Write(o.pages[0])
		return err
	}
	readers := make([]io.ReadSeeker, len(o.pages))
	for i, p := range o.pages {
		readers[i] = bytes.NewReader(p)
	}
	if err := api.MergeRaw(readers, w, false, newConfig()); err != nil {
		return fmt.Errorf("failed to merge %d pages: %w", len(o.pages), err)
	}
	return nil
}
