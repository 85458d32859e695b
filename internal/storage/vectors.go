package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// UpsertRecords writes the given embedding records in one transaction.
// An existing (ref_id, chunk_id) pair is overwritten, so re-indexing an
// entity is idempotent.
func (s *Store) UpsertRecords(ctx context.Context, records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		metadata := r.Metadata
		if metadata == "" {
			metadata = "{}"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embedding_records (ref_id, chunk_id, source_kind, language, text, vector, vector_dim, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ref_id, chunk_id) DO UPDATE SET
				source_kind = excluded.source_kind,
				language = excluded.language,
				text = excluded.text,
				vector = excluded.vector,
				vector_dim = excluded.vector_dim,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at`,
			r.RefID, r.ChunkID, r.SourceKind, r.Language, r.Text,
			encodeFloat32s(r.Vector), len(r.Vector), metadata, now, now,
		)
		if err != nil {
			return fmt.Errorf("upserting record %s/%s: %w", r.RefID, r.ChunkID, err)
		}
	}

	return tx.Commit()
}

// ListRecords returns embedding records in insertion order. An empty
// sourceKind returns records of every kind.
func (s *Store) ListRecords(ctx context.Context, sourceKind string) ([]EmbeddingRecord, error) {
	query := `
		SELECT ref_id, chunk_id, source_kind, language, text, vector, vector_dim, metadata, created_at, updated_at
		FROM embedding_records`
	var args []any
	if sourceKind != "" {
		query += " WHERE source_kind = ?"
		args = append(args, sourceKind)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EmbeddingRecord
	for rows.Next() {
		var r EmbeddingRecord
		var blob []byte
		var createdAt, updatedAt string
		if err := rows.Scan(&r.RefID, &r.ChunkID, &r.SourceKind, &r.Language, &r.Text, &blob, &r.VectorDim, &r.Metadata, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Vector = decodeFloat32s(blob)
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountRecords returns the total number of embedding records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_records").Scan(&n)
	return n, err
}

// CountRecordsByRef returns the number of chunks stored for one entity.
func (s *Store) CountRecordsByRef(ctx context.Context, refID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_records WHERE ref_id = ?", refID).Scan(&n)
	return n, err
}

// DeleteRecordsByRef removes every chunk belonging to one entity.
func (s *Store) DeleteRecordsByRef(ctx context.Context, refID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM embedding_records WHERE ref_id = ?", refID)
	return err
}

// encodeFloat32s packs a float32 slice into a little-endian byte blob.
func encodeFloat32s(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeFloat32s unpacks a little-endian byte blob into float32s.
func decodeFloat32s(buf []byte) []float32 {
	values := make([]float32, len(buf)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return values
}
