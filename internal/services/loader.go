package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/Lllllllleong/pdfweave/internal/deck"
)

// DefaultPreviewScale renders previews unscaled: one PDF point per pixel.
const DefaultPreviewScale = 1.0

// InputFile is one raw document of a load batch.
type InputFile struct {
	Name string
	Data []byte
}

// Loader expands a batch of PDFs into page records with rendered previews.
type Loader struct {
	parser       deck.Parser
	rasterizer   deck.Rasterizer
	previewScale float64
}

func NewLoader(parser deck.Parser, rasterizer deck.Rasterizer, previewScale float64) *Loader {
	if previewScale <= 0 {
		previewScale = DefaultPreviewScale
	}
	return &Loader{parser: parser, rasterizer: rasterizer, previewScale: previewScale}
}

// Load returns a deck covering every page of every file, in file order then
// page order. Pages are rendered one at a time; any failure discards the
// whole batch.
func (l *Loader) Load(ctx context.Context, files []InputFile) (deck.Deck, error) {
	var out deck.Deck
	for i, f := range files {
		logCtx := slog.With("file", f.Name, "batchPosition", i)

		src, err := l.parser.Parse(f.Name, f.Data)
		if err != nil {
			return nil, &LoadError{File: f.Name, Err: err}
		}
		raster, err := l.rasterizer.Open(f.Data)
		if err != nil {
			return nil, &LoadError{File: f.Name, Err: fmt.Errorf("failed to open for rendering: %w", err)}
		}
		pageCount := raster.PageCount()
		if pageCount != src.PageCount() {
			return nil, &LoadError{File: f.Name, Err: fmt.Errorf("page count mismatch: parsed %d, renderable %d", src.PageCount(), pageCount)}
		}

		for n := 1; n <= pageCount; n++ {
			if err := ctx.Err(); err != nil {
				return nil, &LoadError{File: f.Name, Page: n, Err: err}
			}
			preview, err := l.renderPreview(raster, n)
			if err != nil {
				return nil, &LoadError{File: f.Name, Page: n, Err: err}
			}
			out = append(out, deck.PageRecord{
				ID:                 deck.PageID(i, n),
				Source:             src,
				SourcePageIndex:    n - 1,
				Preview:            preview,
				OriginalFileName:   f.Name,
				OriginalPageNumber: n,
			})
		}
		logCtx.Debug("File loaded.", "pageCount", pageCount)
	}
	return out, nil
}

func (l *Loader) renderPreview(raster deck.RasterDocument, pageNumber int) ([]byte, error) {
	img, err := raster.RenderPage(pageNumber, l.previewScale)
	if err != nil {
		return nil, fmt.Errorf("failed to render: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
