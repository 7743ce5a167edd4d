// Package store persists memory records in SQLite and ranks them for
// retrieval. The driver is pure Go, so the binary stays cgo-free.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/contextcore/recall/internal/memory"
)

var (
	// ErrNotFound reports a lookup for an ID the store has never seen.
	ErrNotFound = errors.New("memory record not found")

	// ErrStale reports an upsert that lost a write race: the stored row is
	// newer than the one being written. Callers re-read and reapply.
	ErrStale = errors.New("memory record is stale")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			memory_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source_session_id TEXT NOT NULL,
			confidence REAL NOT NULL,
			validation_status TEXT NOT NULL,
			history TEXT NOT NULL,
			embedding BLOB,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes a record. An existing row is only overwritten when the
// incoming record is newer than the stored one, or carries at least as much
// confidence history at the same timestamp; otherwise a concurrent writer
// won and the caller gets ErrStale. History is append-only, so its encoded
// length orders same-timestamp writes.
func (s *SQLiteStore) Upsert(rec *memory.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid record: %w", err)
	}

	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("failed to marshal confidence history: %w", err)
	}
	vecBlob, err := encodeVector(rec.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	query := `INSERT INTO memories
		(memory_id, content, source_session_id, confidence, validation_status, history, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			content = excluded.content,
			source_session_id = excluded.source_session_id,
			confidence = excluded.confidence,
			validation_status = excluded.validation_status,
			history = excluded.history,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at > memories.updated_at
			OR (excluded.updated_at = memories.updated_at
				AND length(excluded.history) >= length(memories.history))`

	res, err := s.db.Exec(query,
		rec.MemoryID, rec.Content, rec.SourceSessionID, rec.Confidence,
		string(rec.Status), string(historyJSON), vecBlob,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.MemoryID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("upsert of %s: %w", rec.MemoryID, ErrStale)
	}
	return nil
}

// Apply persists a consolidation plan atomically. Either every record in the
// plan lands or none do.
func (s *SQLiteStore) Apply(create, update []*memory.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range append(append([]*memory.Record{}, create...), update...) {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("refusing to store invalid record: %w", err)
		}
		historyJSON, err := json.Marshal(rec.History)
		if err != nil {
			return fmt.Errorf("failed to marshal confidence history: %w", err)
		}
		vecBlob, err := encodeVector(rec.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO memories
			(memory_id, content, source_session_id, confidence, validation_status, history, embedding, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(memory_id) DO UPDATE SET
				content = excluded.content,
				source_session_id = excluded.source_session_id,
				confidence = excluded.confidence,
				validation_status = excluded.validation_status,
				history = excluded.history,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at`,
			rec.MemoryID, rec.Content, rec.SourceSessionID, rec.Confidence,
			string(rec.Status), string(historyJSON), vecBlob,
			rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to apply record %s: %w", rec.MemoryID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Get(id string) (*memory.Record, error) {
	row := s.db.QueryRow(`SELECT memory_id, content, source_session_id, confidence,
		validation_status, history, embedding, created_at, updated_at
		FROM memories WHERE memory_id = ?`, id)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// List returns every record, newest update first.
func (s *SQLiteStore) List() ([]*memory.Record, error) {
	rows, err := s.db.Query(`SELECT memory_id, content, source_session_id, confidence,
		validation_status, history, embedding, created_at, updated_at
		FROM memories ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM memories WHERE memory_id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// ExportAudit returns the audit view of every record: provenance, trend, and
// effective confidence, with no raw history internals.
func (s *SQLiteStore) ExportAudit() ([]memory.AuditEntry, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	entries := make([]memory.AuditEntry, len(records))
	for i, rec := range records {
		entries[i] = rec.Audit()
	}
	return entries, nil
}

type scanFunc func(dest ...any) error

func scanRecord(scan scanFunc) (*memory.Record, error) {
	var rec memory.Record
	var status, historyJSON string
	var vecBlob []byte

	if err := scan(&rec.MemoryID, &rec.Content, &rec.SourceSessionID, &rec.Confidence,
		&status, &historyJSON, &vecBlob, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Status = memory.ValidationStatus(status)
	if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal confidence history: %w", err)
	}
	rec.Embedding = decodeVector(vecBlob)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func encodeVector(vector []float32) ([]byte, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) []float32 {
	if len(blob) < 4 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vector); err != nil {
		return nil
	}
	return vector
}
