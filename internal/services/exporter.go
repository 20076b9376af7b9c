package services

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/Lllllllleong/pdfweave/internal/deck"
)

// FallbackFileName is used when neither the user nor a load supplied a name.
const FallbackFileName = "untitled.pdf"

// Delivery hands an assembled PDF to its destination and reports where it went.
type Delivery interface {
	Deliver(ctx context.Context, fileName string, data []byte) (string, error)
}

// Exporter copies deck pages, in deck order, into a new document.
type Exporter struct {
	writer deck.Writer
}

func NewExporter(writer deck.Writer) *Exporter {
	return &Exporter{writer: writer}
}

// Assemble builds the output document for d. Pages are copied from their
// source documents, never from the previews.
func (e *Exporter) Assemble(ctx context.Context, d deck.Deck) ([]byte, error) {
	if len(d) == 0 {
		return nil, ErrEmptyDeck
	}
	out := e.writer.CreateEmpty()
	for _, rec := range d {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Stage: "copy", PageID: rec.ID, Err: err}
		}
		page, err := out.CopyPage(rec.Source, rec.SourcePageIndex)
		if err != nil {
			return nil, &ExportError{Stage: "copy", PageID: rec.ID, Err: err}
		}
		if err := out.AppendPage(page); err != nil {
			return nil, &ExportError{Stage: "append", PageID: rec.ID, Err: err}
		}
	}
	var buf bytes.Buffer
	if err := out.Serialize(&buf); err != nil {
		return nil, &ExportError{Stage: "serialize", Err: err}
	}
	return buf.Bytes(), nil
}

// Export assembles d and delivers it under fileName.
func (e *Exporter) Export(ctx context.Context, d deck.Deck, fileName string, delivery Delivery) (string, error) {
	data, err := e.Assemble(ctx, d)
	if err != nil {
		return "", err
	}
	location, err := delivery.Deliver(ctx, OutputFileName(fileName), data)
	if err != nil {
		return "", &ExportError{Stage: "deliver", Err: err}
	}
	return location, nil
}

// OutputFileName normalises a user-facing name into a file name with a .pdf
// extension. Directory parts are dropped so the result never leaves the
// delivery's destination.
func OutputFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = strings.TrimSpace(path.Base(name))
	switch name {
	case "", ".", "..", "/":
		return FallbackFileName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
