package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FindOne returns the first document in collection where field == value and
// whose status is one of statuses, or nil when none matches.
func FindOne(ctx context.Context, col *firestore.CollectionRef, field string, value any, statuses ...string) (*firestore.DocumentRef, error) {
	q := col.Where(field, "==", value)
	switch len(statuses) {
	case 0:
	case 1:
		q = q.Where("status", "==", statuses[0])
	default:
		q = q.Where("status", "in", statuses)
	}
	docs, err := q.Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", col.ID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0].Ref, nil
}

// UpdateStatus sets the status of a ledger document, with error details when given.
func UpdateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := docRef.Update(ctx, updates)
	return err
}
