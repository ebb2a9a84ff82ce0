package scenario

import (
	"context"
	"sort"
)

// Store persists records. Put upserts by ID, assigning one when empty.
// Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns records of the given kind (all kinds when empty), newest
	// first, without payloads.
	List(ctx context.Context, kind Kind) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func matchKind(rec *Record, kind Kind) bool {
	return kind == "" || rec.Kind == kind
}
