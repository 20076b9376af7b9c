package services

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/Lllllllleong/pdfweave/internal/deck"
	"github.com/Lllllllleong/pdfweave/internal/gcp"
	"github.com/Lllllllleong/pdfweave/internal/models"
	"github.com/Lllllllleong/pdfweave/internal/pdf"
)

// DeckConfig holds configuration for the page-deck service.
type DeckConfig struct {
	MaxUploadBytes int64
	PreviewScale   float64
}

// DeckFunction holds the working session behind the page-deck HTTP functions.
type DeckFunction struct {
	Session *Session
	Config  DeckConfig
}

// NewDeckFunction creates a DeckFunction backed by pdfcpu.
func NewDeckFunction(ctx context.Context) (*DeckFunction, error) {
	config := DeckConfig{
		MaxUploadBytes: gcp.GetEnvInt64("MAX_UPLOAD_BYTES", 64<<20),
		PreviewScale:   gcp.GetEnvFloat("PREVIEW_SCALE", DefaultPreviewScale),
	}
	f := &DeckFunction{
		Session: NewPDFSession(config.PreviewScale),
		Config:  config,
	}
	slog.Info("Page deck initialized.", "maxUploadBytes", config.MaxUploadBytes, "previewScale", config.PreviewScale)
	return f, nil
}

// NewPDFSession returns an empty session wired to the pdfcpu collaborators.
func NewPDFSession(previewScale float64) *Session {
	loader := NewLoader(pdf.NewParser(), pdf.NewRasterizer(), previewScale)
	return NewSession(loader, NewExporter(pdf.NewWriter()))
}

// View renders the session state for clients. Previews are embedded as data
// URLs when withPreviews is set.
func (f *DeckFunction) View(withPreviews bool) *models.DeckResponse {
	return DeckView(f.Session, withPreviews)
}

func DeckView(s *Session, withPreviews bool) *models.DeckResponse {
	d := s.Deck()
	res := &models.DeckResponse{
		Busy:     s.Busy(),
		FileName: s.FileName(),
		Pages:    make([]models.PageView, len(d)),
	}
	for i, rec := range d {
		res.Pages[i] = pageView(i, rec, withPreviews)
	}
	return res
}

func pageView(index int, rec deck.PageRecord, withPreview bool) models.PageView {
	v := models.PageView{
		Index:              index,
		ID:                 rec.ID,
		OriginalFileName:   rec.OriginalFileName,
		OriginalPageNumber: rec.OriginalPageNumber,
	}
	if withPreview && len(rec.Preview) > 0 {
		v.Preview = "data:image/png;base64," + base64.StdEncoding.EncodeToString(rec.Preview)
	}
	return v
}
