package store

import (
	"context"
	"fmt"
	"time"

	"github.com/postpilot/postpilot/internal/recordstore"
)

// RecordBackend persists blobs as rows of a record store table: one row
// per key, the blob JSON-serialized into a text column. This is the
// production durable layer — the same hosted store that holds the
// business tables.
type RecordBackend struct {
	Client    recordstore.Client
	Table     string
	KeyField  string // e.g. "UserID"
	BlobField string // e.g. "SessionJSON"
}

// NewRecordBackend creates a backend over the given table.
func NewRecordBackend(c recordstore.Client, table, keyField, blobField string) *RecordBackend {
	return &RecordBackend{Client: c, Table: table, KeyField: keyField, BlobField: blobField}
}

// Load fetches the row for key and returns its blob column.
func (b *RecordBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	rec, found, err := b.find(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	blob := rec.Fields.Str(b.BlobField, "")
	if blob == "" {
		return nil, false, nil
	}
	return []byte(blob), true, nil
}

// Save upserts the row for key.
func (b *RecordBackend) Save(ctx context.Context, key string, data []byte) error {
	fields := recordstore.Fields{
		b.KeyField:    key,
		b.BlobField:   string(data),
		"LastUpdated": time.Now().UTC().Format(time.RFC3339),
	}
	rec, found, err := b.find(ctx, key)
	if err != nil {
		return err
	}
	if found {
		_, err = b.Client.Update(ctx, b.Table, rec.ID, fields)
	} else {
		_, err = b.Client.Create(ctx, b.Table, fields)
	}
	return err
}

// Delete removes the row for key, if any.
func (b *RecordBackend) Delete(ctx context.Context, key string) error {
	rec, found, err := b.find(ctx, key)
	if err != nil || !found {
		return err
	}
	return b.Client.Delete(ctx, b.Table, rec.ID)
}

func (b *RecordBackend) find(ctx context.Context, key string) (recordstore.Record, bool, error) {
	recs, err := b.Client.List(ctx, b.Table, recordstore.Query{
		Formula:    fmt.Sprintf("{%s}='%s'", b.KeyField, key),
		MaxRecords: 1,
	})
	if err != nil {
		return recordstore.Record{}, false, err
	}
	if len(recs) == 0 {
		return recordstore.Record{}, false, nil
	}
	return recs[0], true, nil
}
