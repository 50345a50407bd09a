package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ZaguanLabs/dyntrans"
)

// SQLStore is a SQL-backed translation store built for SQLite. Upserts use
// ON CONFLICT on the (content_type, content_id, locale) primary key so two
// drivers writing the same key race to last-write-wins instead of failing on
// a duplicate row. A content table drives batch discovery.
type SQLStore struct {
	db *sql.DB
	sq sq.StatementBuilderType

	now func() time.Time
}

// NewSQLStore creates a SQL store over an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:  db,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
}

// Init creates the translations and content tables if they do not exist,
// along with the per-locale index used by batch scans.
func (s *SQLStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS translations (
			content_type    TEXT NOT NULL,
			content_id      TEXT NOT NULL,
			locale          TEXT NOT NULL,
			original_text   TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			source_hash     TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			PRIMARY KEY (content_type, content_id, locale)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_translations_locale ON translations (locale)`,
		`CREATE TABLE IF NOT EXISTS content (
			source       TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content_id   TEXT NOT NULL,
			text         TEXT NOT NULL,
			PRIMARY KEY (content_type, content_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &dyntrans.StoreError{Message: "initializing schema", Cause: err}
		}
	}
	return nil
}

// GetCached returns the records that exist for the given items at exactly
// the given locale.
func (s *SQLStore) GetCached(ctx context.Context, items []Item, locale string) ([]Record, error) {
	if len(items) == 0 {
		return nil, nil
	}

	pairs := make(sq.Or, len(items))
	for i, item := range items {
		pairs[i] = sq.Eq{"content_type": item.ContentType, "content_id": item.ContentID}
	}

	q := s.sq.Select("content_type", "content_id", "locale", "original_text", "translated_text", "source_hash", "created_at", "updated_at").
		From("translations").
		Where(sq.And{sq.Eq{"locale": locale}, pairs})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "building query", Cause: err}
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "reading cached translations", Cause: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var created, updated string
		if err := rows.Scan(&rec.ContentType, &rec.ContentID, &rec.Locale, &rec.OriginalText, &rec.TranslatedText, &rec.SourceHash, &created, &updated); err != nil {
			return nil, &dyntrans.StoreError{Message: "scanning translation row", Cause: err}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &dyntrans.StoreError{Message: "reading cached translations", Cause: err}
	}
	return out, nil
}

// Save upserts records by primary key. The conflict clause leaves created_at
// untouched so replaces advance only updated_at.
func (s *SQLStore) Save(ctx context.Context, records []Record) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		created := now
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		q := s.sq.Insert("translations").
			Columns("content_type", "content_id", "locale", "original_text", "translated_text", "source_hash", "created_at", "updated_at").
			Values(rec.ContentType, rec.ContentID, rec.Locale, rec.OriginalText, rec.TranslatedText, rec.SourceHash, created, now).
			Suffix(`ON CONFLICT(content_type, content_id, locale) DO UPDATE SET
				original_text=excluded.original_text,
				translated_text=excluded.translated_text,
				source_hash=excluded.source_hash,
				updated_at=excluded.updated_at`)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return &dyntrans.StoreError{Message: "building upsert", Cause: err}
		}
		if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return &dyntrans.StoreError{Message: "saving translation record", Cause: err}
		}
	}
	return nil
}

// Discover enumerates the content table. With no sources given, all rows are
// returned.
func (s *SQLStore) Discover(ctx context.Context, sources []string) ([]Discovered, error) {
	q := s.sq.Select("content_type", "content_id", "text").From("content").OrderBy("content_type", "content_id")
	if len(sources) > 0 {
		q = q.Where(sq.Eq{"source": sources})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "building discovery query", Cause: err}
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "enumerating content", Cause: err}
	}
	defer rows.Close()

	var out []Discovered
	for rows.Next() {
		var d Discovered
		if err := rows.Scan(&d.ContentType, &d.ContentID, &d.Text); err != nil {
			return nil, &dyntrans.StoreError{Message: "scanning content row", Cause: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &dyntrans.StoreError{Message: "enumerating content", Cause: err}
	}
	return out, nil
}

// SeedContent upserts source content rows for discovery.
func (s *SQLStore) SeedContent(ctx context.Context, source string, items []Discovered) error {
	for _, item := range items {
		q := s.sq.Insert("content").
			Columns("source", "content_type", "content_id", "text").
			Values(source, item.ContentType, item.ContentID, item.Text).
			Suffix(`ON CONFLICT(content_type, content_id) DO UPDATE SET source=excluded.source, text=excluded.text`)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return &dyntrans.StoreError{Message: "building content upsert", Cause: err}
		}
		if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return &dyntrans.StoreError{Message: "seeding content", Cause: err}
		}
	}
	return nil
}

var (
	_ Store      = (*SQLStore)(nil)
	_ Enumerator = (*SQLStore)(nil)
)
