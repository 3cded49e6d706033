package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

// PostgresStore is the shared-deployment document store. Same interface as
// sqlite; documents live in a jsonb column with server-side shallow merge.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and ensures the schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	slog.Info("document store postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, key)
		);
		CREATE TABLE IF NOT EXISTS appended (
			id         BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_appended_collection ON appended(collection);
	`)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (map[string]any, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &engine.StoreError{Op: "get", Key: key, Err: err}
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, &engine.StoreError{Op: "decode", Key: key, Err: err}
	}
	return fields, true, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, collection, key string, fields map[string]any) (bool, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return false, &engine.StoreError{Op: "create", Key: key, Err: err}
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, data,
	)
	if err != nil {
		return false, &engine.StoreError{Op: "create", Key: key, Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Merge(ctx context.Context, collection, key string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return &engine.StoreError{Op: "merge", Key: key, Err: err}
	}
	// jsonb || overlays top-level fields, matching the sqlite merge.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key)
		 DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`,
		collection, key, data,
	)
	if err != nil {
		return &engine.StoreError{Op: "merge", Key: key, Err: err}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return &engine.StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, data FROM documents WHERE collection = $1 ORDER BY key`, collection)
	if err != nil {
		return nil, &engine.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, &engine.StoreError{Op: "list", Err: err}
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		docs = append(docs, Document{Key: key, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.StoreError{Op: "list", Err: err}
	}
	return docs, nil
}

func (s *PostgresStore) Append(ctx context.Context, collection string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return &engine.StoreError{Op: "append", Err: err}
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO appended (collection, data) VALUES ($1, $2)`, collection, data)
	if err != nil {
		return &engine.StoreError{Op: "append", Err: err}
	}
	return nil
}

func (s *PostgresStore) Batch() Batch {
	return &pgBatch{store: s}
}

type pgBatch struct {
	store *PostgresStore
	ops   []batchOp
}

func (b *pgBatch) CreateIfAbsent(collection, key string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opCreateIfAbsent, collection: collection, key: key, fields: fields})
}

func (b *pgBatch) Merge(collection, key string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opMerge, collection: collection, key: key, fields: fields})
}

func (b *pgBatch) Append(collection string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opAppend, collection: collection, fields: fields})
}

func (b *pgBatch) Commit(ctx context.Context) (int, error) {
	if len(b.ops) == 0 {
		return 0, nil
	}
	tx, err := b.store.pool.Begin(ctx)
	if err != nil {
		return 0, &engine.StoreError{Op: "batch", Err: err}
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, op := range b.ops {
		data, err := json.Marshal(op.fields)
		if err != nil {
			return 0, &engine.StoreError{Op: "batch", Key: op.key, Err: err}
		}
		switch op.kind {
		case opCreateIfAbsent:
			tag, err := tx.Exec(ctx,
				`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3)
				 ON CONFLICT (collection, key) DO NOTHING`,
				op.collection, op.key, data)
			if err != nil {
				return 0, &engine.StoreError{Op: "batch create", Key: op.key, Err: err}
			}
			if tag.RowsAffected() > 0 {
				created++
			}
		case opMerge:
			_, err := tx.Exec(ctx,
				`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3)
				 ON CONFLICT (collection, key)
				 DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`,
				op.collection, op.key, data)
			if err != nil {
				return 0, &engine.StoreError{Op: "batch merge", Key: op.key, Err: err}
			}
		case opAppend:
			_, err := tx.Exec(ctx,
				`INSERT INTO appended (collection, data) VALUES ($1, $2)`, op.collection, data)
			if err != nil {
				return 0, &engine.StoreError{Op: "batch append", Err: err}
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &engine.StoreError{Op: "batch", Err: err}
	}
	b.ops = nil
	return created, nil
}
