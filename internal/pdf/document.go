// Package pdf binds the deck collaborators to pdfcpu: parsing source
// documents, copying their pages into a new document and rendering previews.
package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Lllllllleong/pdfweave/internal/deck"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrForeignSource is returned when a page is copied from a Source that was
// not produced by this package's Parser.
var ErrForeignSource = errors.New("source document was not parsed by pdfcpu")

// Document is a parsed source PDF. It keeps the original bytes so pages can be
// copied with all their resources intact.
type Document struct {
	name string
	raw  []byte
	ctx  *model.Context
}

func (d *Document) Name() string   { return d.name }
func (d *Document) PageCount() int { return d.ctx.PageCount }

// Parser reads and validates PDFs with pdfcpu.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(name string, data []byte) (deck.Source, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &Document{name: name, raw: data, ctx: ctx}, nil
}

func readContext(data []byte) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), newConfig())
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return ctx, nil
}

func newConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}
