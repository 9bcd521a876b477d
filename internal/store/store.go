// Package store keeps conversion results in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	title        TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	triples      INTEGER NOT NULL DEFAULT 0,
	catalog      INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_content_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS triples (
	doc_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	subject   TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object    TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);

CREATE TABLE IF NOT EXISTS catalog (
	doc_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq     INTEGER NOT NULL,
	chapter TEXT NOT NULL,
	title   TEXT NOT NULL,
	level   INTEGER NOT NULL,
	path    TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);

CREATE TABLE IF NOT EXISTS ambiguities (
	doc_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	block_index INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	detail      TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);
`

// Document is one stored conversion.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	Triples     int       `json:"triples"`
	Catalog     int       `json:"catalog"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; also keeps a :memory: database on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes doc and the result rows in one transaction, replacing any
// earlier rows for the same document id.
func (s *Store) Save(ctx context.Context, doc Document, res *doctree.Result) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.Triples = len(res.Triples)
	doc.Catalog = len(res.Catalog)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("replace document %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename, title, content_hash, triples, catalog, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Title, doc.ContentHash, doc.Triples, doc.Catalog, doc.CreatedAt.Format(timeLayout),
	); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}

	triple, err := tx.PrepareContext(ctx, `INSERT INTO triples (doc_id, seq, subject, predicate, object) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare triples: %w", err)
	}
	defer triple.Close()
	for i, t := range res.Triples {
		if _, err := triple.ExecContext(ctx, doc.ID, i, t.Subject, t.Predicate, t.Object); err != nil {
			return fmt.Errorf("insert triple %d: %w", i, err)
		}
	}

	entry, err := tx.PrepareContext(ctx, `INSERT INTO catalog (doc_id, seq, chapter, title, level, path) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare catalog: %w", err)
	}
	defer entry.Close()
	for i, e := range res.Catalog {
		path, err := json.Marshal(e.Path)
		if err != nil {
			return fmt.Errorf("encode catalog path: %w", err)
		}
		if _, err := entry.ExecContext(ctx, doc.ID, i, e.Chapter, e.Title, e.Level, string(path)); err != nil {
			return fmt.Errorf("insert catalog entry %d: %w", i, err)
		}
	}

	for i, a := range res.Ambiguities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ambiguities (doc_id, seq, block_index, kind, detail) VALUES (?, ?, ?, ?, ?)`,
			doc.ID, i, a.Index, a.Kind, a.Detail,
		); err != nil {
			return fmt.Errorf("insert ambiguity %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const documentColumns = `id, filename, title, content_hash, triples, catalog, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var d Document
	var created string
	if err := row.Scan(&d.ID, &d.Filename, &d.Title, &d.ContentHash, &d.Triples, &d.Catalog, &created); err != nil {
		return d, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return d, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	d.CreatedAt = t
	return d, nil
}

func (s *Store) one(ctx context.Context, where string, arg any) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE `+where+` ORDER BY created_at LIMIT 1`, arg)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	return s.one(ctx, "id = ?", id)
}

// FindByHash returns the oldest document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Document, error) {
	return s.one(ctx, "content_hash = ?", hash)
}

// List returns up to limit documents, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Triples returns a document's triples in emission order.
func (s *Store) Triples(ctx context.Context, id string) ([]doctree.Triple, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT subject, predicate, object FROM triples WHERE doc_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	out := []doctree.Triple{}
	for rows.Next() {
		var t doctree.Triple
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Catalog returns a document's catalog in emission order.
func (s *Store) Catalog(ctx context.Context, id string) ([]doctree.CatalogEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chapter, title, level, path FROM catalog WHERE doc_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	out := []doctree.CatalogEntry{}
	for rows.Next() {
		var e doctree.CatalogEntry
		var path string
		if err := rows.Scan(&e.Chapter, &e.Title, &e.Level, &path); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(path), &e.Path); err != nil {
			return nil, fmt.Errorf("decode catalog path: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a document and its rows. It reports whether the document
// existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	r, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats summarizes the store contents.
type Stats struct {
	Documents int `json:"documents"`
	Triples   int `json:"triples"`
	Catalog   int `json:"catalog"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(triples), 0), COALESCE(SUM(catalog), 0) FROM documents`,
	).Scan(&st.Documents, &st.Triples, &st.Catalog)
	if err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}
