package starcms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eringen/starcms/content"
	"github.com/eringen/starcms/migrations"
)

// timestamps are stored fixed-width in UTC so they sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// Store wraps a SQLite database holding every document kind in one table.
// The full document is kept as JSON; the columns next to it exist for
// listing, filtering and uniqueness.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent readers, and writers wait instead of failing with
	// SQLITE_BUSY.
	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("starcms: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("starcms: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) decode(kind content.Kind, data []byte, id, created, updated string) (content.Document, error) {
	def, ok := content.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("starcms: unknown kind %q", kind)
	}
	doc, err := def.Decode(data)
	if err != nil {
		return nil, err
	}
	m := doc.Base()
	m.ID = id
	m.CreatedAt, _ = time.Parse(timeLayout, created)
	m.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return doc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(kind content.Kind, row scanner) (content.Document, error) {
	var id, data, created, updated string
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.decode(kind, []byte(data), id, created, updated)
}

// List returns one page of documents of kind matching q.
func (s *Store) List(ctx context.Context, kind content.Kind, q ListQuery) (Page, error) {
	q.normalize()
	where := []string{"kind = ?"}
	args := []any{string(kind)}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Featured {
		where = append(where, "featured = 1")
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = append(where, `(lower(title) LIKE ? ESCAPE '\' OR slug LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	for field, value := range q.Fields {
		if !fieldName.MatchString(field) {
			return Page{}, fmt.Errorf("starcms: invalid filter field %q", field)
		}
		where = append(where, "json_extract(data, '$."+field+"') = ?")
		args = append(args, value)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+cond, args...).Scan(&total); err != nil {
		return Page{}, err
	}

	order := map[string]string{
		"newest":  "created_at DESC",
		"oldest":  "created_at ASC",
		"title":   "title COLLATE NOCASE ASC",
		"updated": "updated_at DESC",
	}[q.Sort]
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE `+cond+` ORDER BY `+order+`, id LIMIT ? OFFSET ?`,
		append(args, q.Limit, (q.Page-1)*q.Limit)...,
	)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	page := Page{
		Items:      []content.Document{},
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}
	for rows.Next() {
		doc, err := s.scan(kind, rows)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, doc)
	}
	return page, rows.Err()
}

// ListAll returns every document of kind, newest first. With publishedOnly
// set, drafts and archived documents are left out.
func (s *Store) ListAll(ctx context.Context, kind content.Kind, publishedOnly bool) ([]content.Document, error) {
	query := `SELECT id, data, created_at, updated_at FROM documents WHERE kind = ?`
	args := []any{string(kind)}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, string(content.StatusPublished))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []content.Document
	for rows.Next() {
		doc, err := s.scan(kind, rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Get returns the document of kind with the given id.
func (s *Store) Get(ctx context.Context, kind content.Kind, id string) (content.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE kind = ? AND id = ?`, string(kind), id)
	return s.scan(kind, row)
}

// GetBySlug returns the document of kind with the given slug.
func (s *Store) GetBySlug(ctx context.Context, kind content.Kind, slug string, publishedOnly bool) (content.Document, error) {
	query := `SELECT id, data, created_at, updated_at FROM documents WHERE kind = ? AND slug = ?`
	args := []any{string(kind), slug}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, string(content.StatusPublished))
	}
	return s.scan(kind, s.db.QueryRowContext(ctx, query, args...))
}

// Save inserts doc when it has no ID yet, assigning one, and updates it
// otherwise. Timestamps are maintained here.
func (s *Store) Save(ctx context.Context, kind content.Kind, doc content.Document) (content.Document, error) {
	m := doc.Base()
	now := s.now().UTC()
	insert := m.ID == ""
	if insert {
		m.ID = uuid.NewString()
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("starcms: encode %s: %w", kind, err)
	}
	featured := 0
	if m.Featured {
		featured = 1
	}

	if insert {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (id, kind, slug, title, status, featured, data, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, string(kind), m.Slug, doc.Heading(), string(m.Status), featured, string(data),
			m.CreatedAt.Format(timeLayout), m.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			m.ID = ""
			return nil, saveError(err)
		}
		return doc, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET slug = ?, title = ?, status = ?, featured = ?, data = ?, updated_at = ?
		 WHERE kind = ? AND id = ?`,
		m.Slug, doc.Heading(), string(m.Status), featured, string(data), m.UpdatedAt.Format(timeLayout),
		string(kind), m.ID,
	)
	if err != nil {
		return nil, saveError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return doc, nil
}

func saveError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrSlugTaken
	}
	return err
}

// Delete removes the document of kind with the given id.
func (s *Store) Delete(ctx context.Context, kind content.Kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts the documents of kind by status.
func (s *Store) Stats(ctx context.Context, kind content.Kind) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'published'), 0),
		       COALESCE(SUM(status = 'draft'), 0),
		       COALESCE(SUM(status = 'archived'), 0),
		       COALESCE(SUM(featured), 0)
		FROM documents WHERE kind = ?`, string(kind),
	).Scan(&st.Total, &st.Published, &st.Draft, &st.Archived, &st.Featured)
	return st, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
