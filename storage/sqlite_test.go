package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/storage"
)

func newTestRepo(t *testing.T) storage.SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := storage.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLite_CreateAndGetBook(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateBook(ctx, tenlib.Book{
		Title: "El Libro", SourceLang: "en", TargetLang: "es",
		Mode: tenlib.ModeTranslate, Status: tenlib.StatusInProgress,
		FileHash: "abc123", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetBookByHash(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "El Libro", got.Title)
	require.Equal(t, tenlib.StatusInProgress, got.Status)

	_, err = repo.GetBookByHash(ctx, "does-not-exist")
	require.ErrorIs(t, err, tenlib.ErrBookNotFound)
}

func TestSQLite_SaveChunksIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bookID, err := repo.CreateBook(ctx, tenlib.Book{FileHash: "h", CreatedAt: time.Now()})
	require.NoError(t, err)

	chunks := []tenlib.Chunk{
		{ChunkIndex: 0, Original: "uno", TokenEstimated: 10},
		{ChunkIndex: 1, Original: "dos", TokenEstimated: 12},
	}

	require.NoError(t, repo.SaveChunks(ctx, bookID, chunks))
	require.NoError(t, repo.SaveChunks(ctx, bookID, chunks))

	all, err := repo.GetAllChunks(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSQLite_UpdateChunkTranslationAndFlag(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bookID, err := repo.CreateBook(ctx, tenlib.Book{FileHash: "h2", CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, repo.SaveChunks(ctx, bookID, []tenlib.Chunk{{ChunkIndex: 0, Original: "uno"}}))

	pending, err := repo.GetPendingChunks(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	chunkID := pending[0].ID
	require.NoError(t, repo.UpdateChunkTranslation(ctx, chunkID, "one", "test-model", 0.9, tenlib.ChunkDone))

	pendingAfter, err := repo.GetPendingChunks(ctx, bookID)
	require.NoError(t, err)
	require.Empty(t, pendingAfter)

	require.NoError(t, repo.FlagChunk(ctx, chunkID, []string{"ValueError: bad"}))
	all, err := repo.GetAllChunks(ctx, bookID)
	require.NoError(t, err)
	require.Equal(t, tenlib.ChunkFlagged, all[0].Status)
	require.Equal(t, []string{"ValueError: bad"}, all[0].Flags)
}

func TestSQLite_TokenQuotaAccumulates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := time.Now()

	total, err := repo.AddTokenUsage(ctx, "gpt-4o", day, 100)
	require.NoError(t, err)
	require.Equal(t, 100, total)

	total, err = repo.AddTokenUsage(ctx, "gpt-4o", day, 50)
	require.NoError(t, err)
	require.Equal(t, 150, total)

	used, err := repo.TokensUsedToday(ctx, "gpt-4o", day)
	require.NoError(t, err)
	require.Equal(t, 150, used)
}

func TestSQLite_BibleVersionsAreAppendOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bookID, err := repo.CreateBook(ctx, tenlib.Book{FileHash: "h3", CreatedAt: time.Now()})
	require.NoError(t, err)

	v1, err := repo.SaveBible(ctx, bookID, `{"voice":"v1"}`)
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := repo.SaveBible(ctx, bookID, `{"voice":"v2"}`)
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	content, version, err := repo.GetLatestBible(ctx, bookID)
	require.NoError(t, err)
	require.Equal(t, 2, version)
	require.Equal(t, `{"voice":"v2"}`, content)
}
