package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pdfweave/internal/gcp"
	"github.com/Lllllllleong/pdfweave/internal/models"
)

// ExportResult is recorded on an export once its PDF is delivered.
type ExportResult struct {
	OutputURI           string
	FileName            string
	PageCount           int
	SourceObjects       []string
	WorkflowExecutionID string
}

// ExportLedger tracks manifest-driven exports through their lifecycle.
type ExportLedger interface {
	// FindActive returns the id of an export of manifestHash that is still
	// assembling or already complete, or "" when there is none.
	FindActive(ctx context.Context, manifestHash string) (string, error)
	Create(ctx context.Context, rec models.ExportRecord) (string, error)
	Complete(ctx context.Context, id string, res ExportResult) error
	Fail(ctx context.Context, id, details string) error
}

// FirestoreLedger keeps export records in a Firestore collection.
type FirestoreLedger struct {
	collection *firestore.CollectionRef
}

func NewFirestoreLedger(client *firestore.Client, collectionName string) *FirestoreLedger {
	return &FirestoreLedger{collection: client.Collection(collectionName)}
}

func (l *FirestoreLedger) FindActive(ctx context.Context, manifestHash string) (string, error) {
	doc, err := gcp.FindOne(ctx, l.collection, "manifestHash", manifestHash, models.ActiveExportStatuses...)
	if err != nil || doc == nil {
		return "", err
	}
	return doc.ID, nil
}

func (l *FirestoreLedger) Create(ctx context.Context, rec models.ExportRecord) (string, error) {
	docRef, _, err := l.collection.Add(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("failed to create export record: %w", err)
	}
	return docRef.ID, nil
}

func (l *FirestoreLedger) Complete(ctx context.Context, id string, res ExportResult) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.ExportStatusComplete},
		{Path: "outputUri", Value: res.OutputURI},
		{Path: "fileName", Value: res.FileName},
		{Path: "pageCount", Value: res.PageCount},
		{Path: "sourceObjects", Value: res.SourceObjects},
	}
	if res.WorkflowExecutionID != "" {
		updates = append(updates, firestore.Update{Path: "workflowExecutionId", Value: res.WorkflowExecutionID})
	}
	_, err := l.collection.Doc(id).Update(ctx, updates)
	return err
}

func (l *FirestoreLedger) Fail(ctx context.Context, id, details string) error {
	return gcp.UpdateStatus(ctx, l.collection.Doc(id), models.ExportStatusFailed, details)
}
