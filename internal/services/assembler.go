package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/pdfweave/internal/gcp"
	"github.com/Lllllllleong/pdfweave/internal/models"
	"golang.org/x/sync/errgroup"
)

// ManifestSuffix marks the objects the assembler reacts to.
const ManifestSuffix = ".manifest.json"

type AssemblerConfig struct {
	ProjectID        string
	OutputBucket     string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	PreviewScale     float64
}

// AssemblerFunction turns deck manifests dropped in GCS into assembled PDFs.
type AssemblerFunction struct {
	storageClient    *storage.Client
	ledger           ExportLedger
	executionsClient *executions.Client
	config           AssemblerConfig
}

// GCSEvent is the payload of a GCS event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewAssembler(ctx context.Context) (*AssemblerFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := AssemblerConfig{
		ProjectID:        projectID,
		OutputBucket:     gcp.GetEnv("OUTPUT_BUCKET", ""),
		CollectionName:   gcp.GetEnv("EXPORTS_COLLECTION", "exports"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		PreviewScale:     gcp.GetEnvFloat("PREVIEW_SCALE", DefaultPreviewScale),
	}
	if config.OutputBucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	f := &AssemblerFunction{
		storageClient: storageClient,
		ledger:        NewFirestoreLedger(firestoreClient, config.CollectionName),
		config:        config,
	}
	if config.WorkflowID != "" {
		f.executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	slog.Info("Assembler logic initialized.", "outputBucket", config.OutputBucket, "workflowId", config.WorkflowID)
	return f, nil
}

// Process assembles the PDF described by the manifest object named in e.
func (f *AssemblerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.HasSuffix(e.Name, ManifestSuffix) {
		logCtx.Info("Not a manifest. Skipping.")
		return nil
	}
	logCtx.Info("Processing new manifest.")

	raw, err := gcp.ReadObject(ctx, f.storageClient.Bucket(e.Bucket), e.Name)
	if err != nil {
		logCtx.Error("Failed to read manifest", "error", err)
		return err
	}
	manifest, err := ParseManifest(raw)
	if err != nil {
		logCtx.Error("Failed to decode manifest", "error", err)
		return err
	}
	manifestHash := hashBytes(raw)
	logCtx = logCtx.With("manifestHash", manifestHash)

	existingID, err := f.ledger.FindActive(ctx, manifestHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if existingID != "" {
		logCtx.Info("Manifest already handled. Skipping.", "existingExportId", existingID)
		return nil
	}

	exportID, err := f.ledger.Create(ctx, models.ExportRecord{
		ManifestHash:   manifestHash,
		ManifestObject: fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name),
		Status:         models.ExportStatusAssembling,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		logCtx.Error("Failed to create export record", "error", err)
		return err
	}
	logCtx = logCtx.With("exportId", exportID)

	sourceBucket := manifest.SourceBucket
	if sourceBucket == "" {
		sourceBucket = e.Bucket
	}
	sources, err := f.resolveSources(ctx, sourceBucket, manifest)
	if err != nil {
		return f.handleError(ctx, logCtx, exportID, "failed to resolve sources", err)
	}
	files, err := f.downloadSources(ctx, sourceBucket, sources)
	if err != nil {
		return f.handleError(ctx, logCtx, exportID, "one or more sources failed to download", err)
	}
	logCtx.Info("Sources downloaded.", "sourceCount", len(files))

	session := NewPDFSession(f.config.PreviewScale)
	if err := ApplyManifest(ctx, session, manifest, files); err != nil {
		return f.handleError(ctx, logCtx, exportID, "failed to build deck", err)
	}

	delivery := NewGCSDelivery(f.storageClient, f.config.OutputBucket, exportID)
	outputURI, err := session.Export(ctx, delivery)
	if err != nil {
		return f.handleError(ctx, logCtx, exportID, "failed to export deck", err)
	}
	pageCount := len(session.Deck())
	logCtx = logCtx.With("outputUri", outputURI)

	result := ExportResult{
		OutputURI:     outputURI,
		FileName:      path.Base(outputURI),
		PageCount:     pageCount,
		SourceObjects: sources,
	}
	if f.executionsClient != nil {
		execName, err := gcp.StartWorkflow(ctx, f.executionsClient, f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID,
			models.AssemblyWorkflowArgs{ExportID: exportID, OutputURI: outputURI, PageCount: pageCount})
		if err != nil {
			return f.handleError(ctx, logCtx, exportID, "failed to hand off to workflow", err)
		}
		result.WorkflowExecutionID = execName
		logCtx.Info("Workflow triggered.", "execution", execName)
	}
	if err := f.ledger.Complete(ctx, exportID, result); err != nil {
		return f.handleError(ctx, logCtx, exportID, "failed to update status to COMPLETE", err)
	}

	logCtx.Info("Assembly complete.", "pageCount", pageCount)
	return nil
}

func (f *AssemblerFunction) resolveSources(ctx context.Context, bucket string, m *models.Manifest) ([]string, error) {
	if len(m.Sources) > 0 {
		return m.Sources, nil
	}
	names, err := gcp.ListObjects(ctx, f.storageClient.Bucket(bucket), m.SourcePrefix, ".pdf")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no PDFs found under gs://%s/%s", bucket, m.SourcePrefix)
	}
	return names, nil
}

// downloadSources fetches the sources concurrently. Each result lands in the
// slot of its source so batch order does not depend on download order.
func (f *AssemblerFunction) downloadSources(ctx context.Context, bucket string, names []string) ([]InputFile, error) {
	files := make([]InputFile, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)

	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			data, err := gcp.ReadObject(gctx, f.storageClient.Bucket(bucket), name)
			if err != nil {
				return fmt.Errorf("source %s: %w", name, err)
			}
			files[i] = InputFile{Name: path.Base(name), Data: data}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (f *AssemblerFunction) handleError(ctx context.Context, logCtx *slog.Logger, exportID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.ledger.Fail(ctx, exportID, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update export status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// ParseManifest decodes and checks a manifest.
func ParseManifest(raw []byte) (*models.Manifest, error) {
	var m models.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if len(m.Sources) == 0 && m.SourcePrefix == "" {
		return nil, fmt.Errorf("manifest lists no sources and no sourcePrefix")
	}
	if m.FileName != "" && (strings.ContainsAny(m.FileName, `/\`) || strings.Contains(m.FileName, "..")) {
		return nil, fmt.Errorf("manifest fileName %q must be a bare file name", m.FileName)
	}
	return &m, nil
}

// ApplyManifest loads files into session, then applies the manifest's page
// selection and file name.
func ApplyManifest(ctx context.Context, session *Session, m *models.Manifest, files []InputFile) error {
	if err := session.Load(ctx, files); err != nil {
		return err
	}
	if len(m.Pages) > 0 {
		if err := session.Select(m.Pages); err != nil {
			return err
		}
	}
	if m.FileName != "" {
		session.SetFileName(m.FileName)
	}
	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
