package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "crypto-analyst/internal/errors"
)

// SQLiteStore implements AnalysisStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_results (
		symbol TEXT NOT NULL,
		analysis_date TEXT NOT NULL,
		analysis_type TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, analysis_date, analysis_type)
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_date ON analysis_results(analysis_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored payload for key.
func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM analysis_results
		WHERE symbol = ? AND analysis_date = ? AND analysis_type = ?
	`, key.Symbol, key.Date, key.Type).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrDataNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", key.String(), apperrors.Join(apperrors.ErrDatabaseError, err))
	}
	return payload, nil
}

// Put stores payload under key, replacing any earlier value.
func (s *SQLiteStore) Put(ctx context.Context, key Key, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results (symbol, analysis_date, analysis_type, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, key.Symbol, key.Date, key.Type, payload, time.Now().UTC())
	if err != nil {
		return apperrors.NewStoreError("put", key.String(), apperrors.Join(apperrors.ErrDatabaseError, err))
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM analysis_results
		WHERE symbol = ? AND analysis_date = ? AND analysis_type = ?
	`, key.Symbol, key.Date, key.Type)
	if err != nil {
		return apperrors.NewStoreError("delete", key.String(), apperrors.Join(apperrors.ErrDatabaseError, err))
	}
	return nil
}

// List returns the keys stored for date.
func (s *SQLiteStore) List(ctx context.Context, date string) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, analysis_date, analysis_type
		FROM analysis_results
		WHERE analysis_date = ?
		ORDER BY symbol ASC, analysis_type ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	keys := make([]Key, 0)
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Symbol, &k.Date, &k.Type); err != nil {
			return nil, fmt.Errorf("failed to scan analysis key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}

	return keys, nil
}

// Prune deletes analyses dated before the given date.
func (s *SQLiteStore) Prune(ctx context.Context, before string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE analysis_date < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune analyses: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
