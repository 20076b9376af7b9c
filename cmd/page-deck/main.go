package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pdfweave/internal/models"
	"github.com/Lllllllleong/pdfweave/internal/services"
)

var (
	deckInstance *services.DeckFunction
	once         sync.Once
	initErr      error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleLoad", handleLoad)
	functions.HTTP("HandleDeck", handleDeck)
	functions.HTTP("HandleReorder", handleReorder)
	functions.HTTP("HandleRemove", handleRemove)
	functions.HTTP("HandleRename", handleRename)
	functions.HTTP("HandleExport", handleExport)
}

// main is required by the Go Functions Framework.
func main() {}

func instance(w http.ResponseWriter) (*services.DeckFunction, bool) {
	once.Do(func() {
		deckInstance, initErr = services.NewDeckFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: page deck initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return nil, false
	}
	return deckInstance, true
}

// handleLoad replaces the deck with the PDFs posted as multipart "files" parts.
func handleLoad(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, f.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(f.Config.MaxUploadBytes); err != nil {
		slog.Warn("Could not parse upload", "error", err)
		http.Error(w, "Bad Request: could not parse multipart upload", http.StatusBadRequest)
		return
	}

	var files []services.InputFile
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			data, err := readPart(fh)
			if err != nil {
				slog.Warn("Could not read uploaded file", "error", err, "file", fh.Filename)
				http.Error(w, "Bad Request: could not read uploaded file", http.StatusBadRequest)
				return
			}
			files = append(files, services.InputFile{Name: fh.Filename, Data: data})
		}
	}

	if err := f.Session.Load(r.Context(), files); err != nil {
		slog.Error("Load failed", "error", err, "fileCount", len(files))
		writeError(w, err)
		return
	}
	writeJSON(w, f.View(true))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	rc, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// handleDeck returns the current deck. Previews are omitted with ?previews=false.
func handleDeck(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodGet) {
		return
	}
	withPreviews := true
	if v := r.URL.Query().Get("previews"); v != "" {
		var err error
		if withPreviews, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "Bad Request: previews must be true or false", http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, f.View(withPreviews))
}

// handleReorder applies a drag result from the client.
func handleReorder(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PreviousIndex == nil || req.NextIndex == nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: expected previousIndex and nextIndex", http.StatusBadRequest)
		return
	}
	if err := f.Session.Reorder(*req.PreviousIndex, *req.NextIndex); err != nil {
		slog.Warn("Reorder rejected", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, f.View(false))
}

func handleRemove(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	removed := f.Session.Remove(req.ID)
	res := f.View(false)
	res.Removed = &removed
	writeJSON(w, res)
}

func handleRename(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	f.Session.SetFileName(req.FileName)
	writeJSON(w, f.View(false))
}

// handleExport streams the assembled PDF back as a download.
func handleExport(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok || !allowMethod(w, r, http.MethodPost) {
		return
	}
	if _, err := f.Session.Export(r.Context(), &responseDelivery{w: w}); err != nil {
		var exportErr *services.ExportError
		if errors.As(err, &exportErr) && exportErr.Stage == "deliver" {
			// The attachment headers are already out.
			slog.Error("Failed to stream export", "error", err)
			return
		}
		slog.Error("Export failed", "error", err)
		writeError(w, err)
	}
}

// responseDelivery sends the exported document as an HTTP attachment.
type responseDelivery struct {
	w http.ResponseWriter
}

func (d *responseDelivery) Deliver(_ context.Context, fileName string, data []byte) (string, error) {
	d.w.Header().Set("Content-Type", "application/pdf")
	d.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	d.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := d.w.Write(data); err != nil {
		return "", fmt.Errorf("failed to write response: %w", err)
	}
	return "attachment:" + fileName, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var loadErr *services.LoadError
	switch {
	case errors.Is(err, services.ErrBusy):
		http.Error(w, "Conflict: a load is already in progress", http.StatusConflict)
	case errors.Is(err, services.ErrEmptyDeck):
		http.Error(w, "Conflict: the deck has no pages", http.StatusConflict)
	case errors.Is(err, services.ErrIndexOutOfRange):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.As(err, &loadErr):
		http.Error(w, "Unprocessable Entity: "+loadErr.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
	}
}
