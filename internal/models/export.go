package models

import "time"

// Export status values stored on ExportRecord.Status.
const (
	ExportStatusAssembling = "ASSEMBLING"
	ExportStatusComplete   = "COMPLETE"
	ExportStatusFailed     = "FAILED"
)

// ActiveExportStatuses are the statuses under which a manifest counts as
// already handled.
var ActiveExportStatuses = []string{ExportStatusAssembling, ExportStatusComplete}

// ExportRecord tracks one manifest-driven assembly in Firestore.
type ExportRecord struct {
	ManifestHash        string    `firestore:"manifestHash,omitempty"`
	ManifestObject      string    `firestore:"manifestObject,omitempty"`
	SourceObjects       []string  `firestore:"sourceObjects,omitempty"`
	FileName            string    `firestore:"fileName,omitempty"`
	OutputURI           string    `firestore:"outputUri,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}
