package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
	"github.com/harvestlink/api/internal/platform/pagination"
)

// runInTransaction joins the transaction carried by ctx when the call happens
// inside Registry.RunInTx, and starts its own otherwise.
func runInTransaction(ctx context.Context, provider *pfirestore.Provider, fn pfirestore.TxFunc) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	return provider.RunTransaction(ctx, fn)
}

var errInvalidPageToken = errors.New("invalid page token")

func normalizePageSize(size int) int {
	if size <= 0 {
		return pagination.DefaultPageSize
	}
	if size > pagination.DefaultMaxPageSize {
		return pagination.DefaultMaxPageSize
	}
	return size
}

// encodePageToken builds an opaque cursor from the sort key of the last
// returned document.
func encodePageToken(createdAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodePageToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil || len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errInvalidPageToken
	}
	rawTS, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", errInvalidPageToken
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || docID == "" {
		return time.Time{}, "", errInvalidPageToken
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return time.Time{}, "", errInvalidPageToken
	}
	return ts, docID, nil
}

// cursorStartAfter decodes the page token into StartAfter arguments, or nil
// for a first page.
func cursorStartAfter(token string) ([]any, error) {
	if token == "" {
		return nil, nil
	}
	ts, docID, err := decodePageToken(token)
	if err != nil {
		return nil, err
	}
	return []any{ts, docID}, nil
}

// orderNewestFirst appends the ordering clauses shared by all list queries:
// newest first, document ID as the tiebreaker.
func orderNewestFirst(query firestore.Query, startAfter []any) firestore.Query {
	query = query.
		OrderBy("created_at", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if len(startAfter) > 0 {
		query = query.StartAfter(startAfter...)
	}
	return query
}

func chooseTime(primary, fallback time.Time) time.Time {
	if primary.IsZero() {
		return fallback.UTC()
	}
	return primary.UTC()
}

func normalizeTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	return ts.UTC()
}

func normalizeTimePointer(ts *time.Time) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
