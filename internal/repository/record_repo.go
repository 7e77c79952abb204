package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/digistore/internal/store"
)

// SQLSTATE classes that mean the server refused the write for lack of room.
const (
	pqDiskFull         = "53100"
	pqOutOfMemory      = "53200"
	pqProgramLimitExcd = "54000"
)

// RecordRepository keeps store records in the store_records table. It
// implements store.Backend.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get returns the record value at key or store.ErrKeyNotFound.
func (r *RecordRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM store_records WHERE key = $1`

	var value string
	if err := r.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrKeyNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

// Set upserts the record at key.
func (r *RecordRepository) Set(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO store_records (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, key, string(value)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqDiskFull, pqOutOfMemory, pqProgramLimitExcd:
				return fmt.Errorf("%w: %s", store.ErrQuotaExceeded, pqErr.Message)
			}
		}
		return err
	}
	return nil
}

// Delete removes the record at key. Missing keys are ignored.
func (r *RecordRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM store_records WHERE key = $1`, key)
	return err
}
