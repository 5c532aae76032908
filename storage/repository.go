// Package storage implements durable persistence (the Repository,
// backed by an embedded SQLite database) and the bbolt-backed
// QuotaCache the router's adapters consult between durable writes.
package storage

import (
	"context"
	"time"

	"github.com/tenlib/tenlib"
)

// Repository is the durable store for books, chunks, bible versions
// and token quota usage. Every method is context-threaded the way the
// teacher's chunk storage interface is, so callers can cancel a
// long-running query without leaking a goroutine.
type Repository interface {
	CreateBook(ctx context.Context, b tenlib.Book) (int64, error)
	GetBookByHash(ctx context.Context, hash string) (tenlib.Book, error)
	GetBookByID(ctx context.Context, id int64) (tenlib.Book, error)
	UpdateBookStatus(ctx context.Context, id int64, status tenlib.BookStatus) error

	SaveChunks(ctx context.Context, bookID int64, chunks []tenlib.Chunk) error
	GetPendingChunks(ctx context.Context, bookID int64) ([]tenlib.Chunk, error)
	GetAllChunks(ctx context.Context, bookID int64) ([]tenlib.Chunk, error)
	UpdateChunkTranslation(ctx context.Context, chunkID int64, translated, modelUsed string, confidence float64, status tenlib.ChunkStatus) error
	FlagChunk(ctx context.Context, chunkID int64, flags []string) error

	AddTokenUsage(ctx context.Context, model string, day time.Time, tokens int) (int, error)
	TokensUsedToday(ctx context.Context, model string, day time.Time) (int, error)

	SaveBible(ctx context.Context, bookID int64, content string) (version int, err error)
	GetLatestBible(ctx context.Context, bookID int64) (content string, version int, err error)

	Close() error
}
