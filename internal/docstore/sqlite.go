package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notes-go/internal/docstore/migrations"
	"notes-go/internal/notes"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is a document store kept in a single SQLite file. Each
// document is one row holding its fields as a JSON object.
type SQLiteStore struct {
	*liveStore
	path string
}

// NewSQLiteStore opens (or creates) the store at path and migrates it.
// path can be a file path or ":memory:".
func NewSQLiteStore(path string, clock notes.Clock, ids notes.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	s := NewSQLiteStoreFromDB(db, clock, ids)
	s.path = path
	return s, nil
}

// NewSQLiteStoreFromDB wraps a connection whose schema is already current.
func NewSQLiteStoreFromDB(db *sql.DB, clock notes.Clock, ids notes.IDGenerator) *SQLiteStore {
	return &SQLiteStore{liveStore: newLiveStore(&sqliteBackend{db: db}, clock, ids)}
}

// Path returns the database file path, or "" for a wrapped connection.
func (s *SQLiteStore) Path() string { return s.path }

// OpenConnection opens a SQLite database configured for the store. All
// access goes through one connection, which also keeps ":memory:"
// databases from splitting across the pool.
func OpenConnection(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

type sqliteBackend struct {
	db *sql.DB
}

// encodeFields splits out top-level timestamps, which are stored as Unix
// nanoseconds and listed in time_fields so they decode back to time.Time.
func encodeFields(fields notes.Fields) (string, string, error) {
	plain := make(map[string]any, len(fields))
	var times []string
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			plain[k] = t.UnixNano()
			times = append(times, k)
			continue
		}
		plain[k] = v
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", "", fmt.Errorf("encoding fields: %w", err)
	}
	if times == nil {
		times = []string{}
	}
	tf, err := json.Marshal(times)
	if err != nil {
		return "", "", fmt.Errorf("encoding time fields: %w", err)
	}
	return string(data), string(tf), nil
}

func decodeFields(data, timeFields string) (notes.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	var times []string
	if err := json.Unmarshal([]byte(timeFields), &times); err != nil {
		return nil, fmt.Errorf("decoding time fields: %w", err)
	}

	fields := make(notes.Fields, len(raw))
	for k, v := range raw {
		fields[k] = normalizeNumbers(v)
	}
	for _, k := range times {
		if n, ok := fields[k].(int64); ok {
			fields[k] = time.Unix(0, n).UTC()
		}
	}
	return fields, nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	}
	return v
}

func (b *sqliteBackend) insert(ctx context.Context, collection, id string, fields notes.Fields) error {
	data, times, err := encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data, time_fields, inserted_at) VALUES (?, ?, ?, ?, ?)",
		collection, id, data, times, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) load(ctx context.Context, collection, id string) (notes.Fields, error) {
	var data, times string
	err := b.db.QueryRowContext(ctx,
		"SELECT data, time_fields FROM documents WHERE collection = ? AND id = ?",
		collection, id).Scan(&data, &times)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return decodeFields(data, times)
}

func (b *sqliteBackend) update(ctx context.Context, collection, id string, fields notes.Fields) error {
	current, err := b.load(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		current[k] = v
	}
	data, times, err := encodeFields(current)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx,
		"UPDATE documents SET data = ?, time_fields = ? WHERE collection = ? AND id = ?",
		data, times, collection, id)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) remove(ctx context.Context, collection, id string) error {
	if _, err := b.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// buildQuery renders q as SQL. Field names are checked against
// validField before they are spliced into JSON paths, so the expressions
// match the ones the indexes are built on.
func buildQuery(q notes.Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString("SELECT id, data, time_fields FROM documents WHERE collection = ?")

	for _, f := range q.Filters {
		if !validField(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		if f.Value == nil {
			fmt.Fprintf(&sb, " AND json_extract(data, '$.%s') IS NULL", f.Field)
			continue
		}
		fmt.Fprintf(&sb, " AND json_extract(data, '$.%s') = ?", f.Field)
		args = append(args, sqlValue(f.Value))
	}

	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		if !validField(o.Field) {
			return "", nil, fmt.Errorf("invalid order field %q", o.Field)
		}
		fmt.Fprintf(&sb, "json_extract(data, '$.%s')", o.Field)
		if o.Descending {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("id")

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

func validField(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func sqlValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixNano()
	}
	return v
}

func (b *sqliteBackend) query(ctx context.Context, q notes.Query) ([]notes.Document, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []notes.Document
	for rows.Next() {
		var id, data, times string
		if err := rows.Scan(&id, &data, &times); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		fields, err := decodeFields(data, times)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, notes.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
