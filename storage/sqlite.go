package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tenlib/tenlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	file_hash TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES books(id),
	chunk_index INTEGER NOT NULL,
	original TEXT NOT NULL,
	translated TEXT NOT NULL DEFAULT '',
	token_estimated INTEGER NOT NULL DEFAULT 0,
	source_section INTEGER NOT NULL DEFAULT 0,
	model_used TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	flags TEXT NOT NULL DEFAULT '[]',
	UNIQUE(book_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS bible (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES books(id),
	version INTEGER NOT NULL,
	content_json TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_usage (
	model TEXT NOT NULL,
	date TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (model, date)
);
`

// SQLite is the primary Repository implementation: an embedded,
// transactional relational store opened with write-ahead logging and
// foreign-key enforcement, matching the teacher's dependency-free
// build philosophy without cgo.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path with WAL and
// foreign keys enabled, and ensures the schema exists.
func NewSQLite(path string) (SQLite, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return SQLite{}, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is a single-process, single-writer engine

	if _, err := db.Exec(schema); err != nil {
		return SQLite{}, fmt.Errorf("failed to apply schema: %w", err)
	}

	return SQLite{db: db}, nil
}

func (s SQLite) Close() error {
	return s.db.Close()
}

func (s SQLite) CreateBook(ctx context.Context, b tenlib.Book) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, source_lang, target_lang, mode, status, file_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.SourceLang, b.TargetLang, string(b.Mode), string(b.Status), b.FileHash, b.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("creating book: %w", err)
	}
	return res.LastInsertId()
}

func (s SQLite) GetBookByHash(ctx context.Context, hash string) (tenlib.Book, error) {
	return s.scanBook(s.db.QueryRowContext(ctx,
		`SELECT id, title, source_lang, target_lang, mode, status, file_hash, created_at
		 FROM books WHERE file_hash = ?`, hash))
}

func (s SQLite) GetBookByID(ctx context.Context, id int64) (tenlib.Book, error) {
	return s.scanBook(s.db.QueryRowContext(ctx,
		`SELECT id, title, source_lang, target_lang, mode, status, file_hash, created_at
		 FROM books WHERE id = ?`, id))
}

func (s SQLite) scanBook(row *sql.Row) (tenlib.Book, error) {
	var b tenlib.Book
	var mode, status string

	err := row.Scan(&b.ID, &b.Title, &b.SourceLang, &b.TargetLang, &mode, &status, &b.FileHash, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tenlib.Book{}, tenlib.ErrBookNotFound
	}
	if err != nil {
		return tenlib.Book{}, fmt.Errorf("scanning book: %w", err)
	}

	b.Mode = tenlib.BookMode(mode)
	b.Status = tenlib.BookStatus(status)
	return b, nil
}

func (s SQLite) UpdateBookStatus(ctx context.Context, id int64, status tenlib.BookStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE books SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating book status: %w", err)
	}
	return nil
}

// SaveChunks bulk upserts chunks for bookID; rows with a matching
// (book_id, chunk_index) are left untouched, making it safe to call
// repeatedly with the same input.
func (s SQLite) SaveChunks(ctx context.Context, bookID int64, chunks []tenlib.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (book_id, chunk_index, original, token_estimated, source_section, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, chunk_index) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, bookID, c.ChunkIndex, c.Original, c.TokenEstimated, c.SourceSection, string(tenlib.ChunkPending)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

func (s SQLite) GetPendingChunks(ctx context.Context, bookID int64) ([]tenlib.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, book_id, chunk_index, original, translated, token_estimated, source_section, model_used, confidence, status, flags
		 FROM chunks WHERE book_id = ? AND status = ? ORDER BY chunk_index`,
		bookID, string(tenlib.ChunkPending))
}

func (s SQLite) GetAllChunks(ctx context.Context, bookID int64) ([]tenlib.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT id, book_id, chunk_index, original, translated, token_estimated, source_section, model_used, confidence, status, flags
		 FROM chunks WHERE book_id = ? ORDER BY chunk_index`,
		bookID)
}

func (s SQLite) queryChunks(ctx context.Context, query string, args ...any) ([]tenlib.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []tenlib.Chunk
	for rows.Next() {
		var c tenlib.Chunk
		var status, flagsJSON string

		if err := rows.Scan(&c.ID, &c.BookID, &c.ChunkIndex, &c.Original, &c.Translated,
			&c.TokenEstimated, &c.SourceSection, &c.ModelUsed, &c.Confidence, &status, &flagsJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Status = tenlib.ChunkStatus(status)
		c.Flags = decodeFlags(flagsJSON)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func decodeFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil
	}
	return flags
}

// UpdateChunkTranslation atomically sets a chunk's translated text,
// the model that produced it, its confidence, and its resulting
// status in one statement.
func (s SQLite) UpdateChunkTranslation(ctx context.Context, chunkID int64, translated, modelUsed string, confidence float64, status tenlib.ChunkStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET translated = ?, model_used = ?, confidence = ?, status = ? WHERE id = ?`,
		translated, modelUsed, confidence, string(status), chunkID)
	if err != nil {
		return fmt.Errorf("updating chunk translation: %w", err)
	}
	return nil
}

func (s SQLite) FlagChunk(ctx context.Context, chunkID int64, flags []string) error {
	raw, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshaling flags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE chunks SET flags = ?, status = ? WHERE id = ?`, string(raw), string(tenlib.ChunkFlagged), chunkID)
	if err != nil {
		return fmt.Errorf("flagging chunk: %w", err)
	}
	return nil
}

func (s SQLite) AddTokenUsage(ctx context.Context, model string, day time.Time, tokens int) (int, error) {
	dateKey := day.UTC().Format("2006-01-02")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_usage (model, date, tokens_used) VALUES (?, ?, ?)
		ON CONFLICT(model, date) DO UPDATE SET tokens_used = tokens_used + excluded.tokens_used`,
		model, dateKey, tokens)
	if err != nil {
		return 0, fmt.Errorf("upserting token usage: %w", err)
	}

	return s.TokensUsedToday(ctx, model, day)
}

func (s SQLite) TokensUsedToday(ctx context.Context, model string, day time.Time) (int, error) {
	dateKey := day.UTC().Format("2006-01-02")

	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens_used FROM quota_usage WHERE model = ? AND date = ?`, model, dateKey).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading token usage: %w", err)
	}
	return used, nil
}

// SaveBible inserts a new bible row with version = current max + 1,
// so the bible's history is append-only.
func (s SQLite) SaveBible(ctx context.Context, bookID int64, content string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM bible WHERE book_id = ?`, bookID).Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("reading max bible version: %w", err)
	}

	version := 1
	if maxVersion.Valid {
		version = int(maxVersion.Int64) + 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bible (book_id, version, content_json, updated_at) VALUES (?, ?, ?, ?)`,
		bookID, version, content, time.Now()); err != nil {
		return 0, fmt.Errorf("inserting bible version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bible version: %w", err)
	}
	return version, nil
}

func (s SQLite) GetLatestBible(ctx context.Context, bookID int64) (string, int, error) {
	var content string
	var version int

	err := s.db.QueryRowContext(ctx,
		`SELECT content_json, version FROM bible WHERE book_id = ? ORDER BY version DESC LIMIT 1`, bookID).
		Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading latest bible: %w", err)
	}
	return content, version, nil
}
