package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

// SQLiteStore is the default local document store. Documents are stored as
// JSON in a single table keyed by (collection, key); append-only collections
// get an autoincrement rowid instead of a caller key.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the document database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, key)
		);
		CREATE TABLE IF NOT EXISTS appended (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_appended_collection ON appended(collection);
	`)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &engine.StoreError{Op: "get", Key: key, Err: err}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false, &engine.StoreError{Op: "decode", Key: key, Err: err}
	}
	return fields, true, nil
}

func (s *SQLiteStore) CreateIfAbsent(ctx context.Context, collection, key string, fields map[string]any) (bool, error) {
	created, err := createIfAbsentExec(ctx, s.db, collection, key, fields)
	if err != nil {
		return false, &engine.StoreError{Op: "create", Key: key, Err: err}
	}
	return created, nil
}

// execer abstracts *sql.DB and *sql.Tx so batch and direct writes share code.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func createIfAbsentExec(ctx context.Context, e execer, collection, key string, fields map[string]any) (bool, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return false, err
	}
	ts := now()
	res, err := e.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (collection, key, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		collection, key, string(data), ts, ts,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Merge(ctx context.Context, collection, key string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &engine.StoreError{Op: "merge", Key: key, Err: err}
	}
	defer tx.Rollback()
	if err := mergeExec(ctx, tx, collection, key, fields); err != nil {
		return &engine.StoreError{Op: "merge", Key: key, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &engine.StoreError{Op: "merge", Key: key, Err: err}
	}
	return nil
}

func mergeExec(ctx context.Context, e execer, collection, key string, fields map[string]any) error {
	var raw string
	existing := map[string]any{}
	err := e.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		_, err := createIfAbsentExec(ctx, e, collection, key, fields)
		return err
	case err != nil:
		return err
	}
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		// Corrupt legacy document: replace rather than fail the merge.
		existing = map[string]any{}
	}
	data, err := json.Marshal(mergeFields(existing, fields))
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND key = ?`,
		string(data), now(), collection, key,
	)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return &engine.StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data FROM documents WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, &engine.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, &engine.StoreError{Op: "list", Err: err}
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue // skip corrupt legacy rows
		}
		docs = append(docs, Document{Key: key, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.StoreError{Op: "list", Err: err}
	}
	return docs, nil
}

func (s *SQLiteStore) Append(ctx context.Context, collection string, fields map[string]any) error {
	if err := appendExec(ctx, s.db, collection, fields); err != nil {
		return &engine.StoreError{Op: "append", Err: err}
	}
	return nil
}

func appendExec(ctx context.Context, e execer, collection string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO appended (collection, data, created_at) VALUES (?, ?, ?)`,
		collection, string(data), now())
	return err
}

// ListAppended returns every appended document in a collection, oldest first.
func (s *SQLiteStore) ListAppended(ctx context.Context, collection string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM appended WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, &engine.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var docs []map[string]any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &engine.StoreError{Op: "list", Err: err}
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue
		}
		docs = append(docs, fields)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Batch() Batch {
	return &sqliteBatch{store: s}
}

type sqliteBatch struct {
	store *SQLiteStore
	ops   []batchOp
}

func (b *sqliteBatch) CreateIfAbsent(collection, key string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opCreateIfAbsent, collection: collection, key: key, fields: fields})
}

func (b *sqliteBatch) Merge(collection, key string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opMerge, collection: collection, key: key, fields: fields})
}

func (b *sqliteBatch) Append(collection string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opAppend, collection: collection, fields: fields})
}

func (b *sqliteBatch) Commit(ctx context.Context) (int, error) {
	if len(b.ops) == 0 {
		return 0, nil
	}
	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &engine.StoreError{Op: "batch", Err: err}
	}
	defer tx.Rollback()

	created := 0
	for _, op := range b.ops {
		switch op.kind {
		case opCreateIfAbsent:
			ok, err := createIfAbsentExec(ctx, tx, op.collection, op.key, op.fields)
			if err != nil {
				return 0, &engine.StoreError{Op: "batch create", Key: op.key, Err: err}
			}
			if ok {
				created++
			}
		case opMerge:
			if err := mergeExec(ctx, tx, op.collection, op.key, op.fields); err != nil {
				return 0, &engine.StoreError{Op: "batch merge", Key: op.key, Err: err}
			}
		case opAppend:
			if err := appendExec(ctx, tx, op.collection, op.fields); err != nil {
				return 0, &engine.StoreError{Op: "batch append", Err: err}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, &engine.StoreError{Op: "batch", Err: err}
	}
	b.ops = nil
	return created, nil
}
