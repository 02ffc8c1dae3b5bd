package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"agripulse-api/internal/models"
)

const recordsCollection = "price_records"

// Firestore persists records to a Firestore collection, one document per
// snapshot, queried by the timestamp field.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Insert(ctx context.Context, rec *models.PriceRecord) (string, error) {
	ref, _, err := f.client.Collection(recordsCollection).Add(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("%w: insert record: %v", ErrStorage, err)
	}
	return ref.ID, nil
}

func (f *Firestore) Latest(ctx context.Context) (*models.PriceRecord, error) {
	recs, err := f.Recent(ctx, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (f *Firestore) Recent(ctx context.Context, limit int) ([]models.PriceRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	iter := f.client.Collection(recordsCollection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var out []models.PriceRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: query records: %v", ErrStorage, err)
		}
		var rec models.PriceRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("%w: decode record %s: %v", ErrStorage, doc.Ref.ID, err)
		}
		rec.ID = doc.Ref.ID
		out = append(out, rec)
	}
	return out, nil
}

func (f *Firestore) Close() error { return f.client.Close() }
