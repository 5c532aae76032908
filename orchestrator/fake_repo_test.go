package orchestrator_test

import (
	"context"
	"sync"
	"time"

	"github.com/tenlib/tenlib"
)

// fakeRepo is an in-memory storage.Repository double for orchestrator
// tests, avoiding a real SQLite file for control-flow scenarios.
type fakeRepo struct {
	mu sync.Mutex

	books      map[int64]tenlib.Book
	booksByKey map[string]int64
	nextBookID int64

	chunks      map[int64]*tenlib.Chunk
	chunksOrder map[int64][]int64 // bookID -> chunk ids in chunk_index order
	nextChunkID int64

	bibleContent map[int64]string
	bibleVersion map[int64]int

	tokenUsage map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		books:        make(map[int64]tenlib.Book),
		booksByKey:   make(map[string]int64),
		chunks:       make(map[int64]*tenlib.Chunk),
		chunksOrder:  make(map[int64][]int64),
		bibleContent: make(map[int64]string),
		bibleVersion: make(map[int64]int),
		tokenUsage:   make(map[string]int),
	}
}

func (r *fakeRepo) CreateBook(_ context.Context, b tenlib.Book) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextBookID++
	b.ID = r.nextBookID
	r.books[b.ID] = b
	r.booksByKey[b.FileHash] = b.ID
	return b.ID, nil
}

func (r *fakeRepo) GetBookByHash(_ context.Context, hash string) (tenlib.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.booksByKey[hash]
	if !ok {
		return tenlib.Book{}, tenlib.ErrBookNotFound
	}
	return r.books[id], nil
}

func (r *fakeRepo) GetBookByID(_ context.Context, id int64) (tenlib.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return tenlib.Book{}, tenlib.ErrBookNotFound
	}
	return b, nil
}

func (r *fakeRepo) UpdateBookStatus(_ context.Context, id int64, status tenlib.BookStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return tenlib.ErrBookNotFound
	}
	b.Status = status
	r.books[id] = b
	return nil
}

func (r *fakeRepo) SaveChunks(_ context.Context, bookID int64, chunks []tenlib.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.nextChunkID++
		c.ID = r.nextChunkID
		c.BookID = bookID
		if c.Status == "" {
			c.Status = tenlib.ChunkPending
		}
		cc := c
		r.chunks[c.ID] = &cc
		r.chunksOrder[bookID] = append(r.chunksOrder[bookID], c.ID)
	}
	return nil
}

func (r *fakeRepo) GetPendingChunks(_ context.Context, bookID int64) ([]tenlib.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tenlib.Chunk
	for _, id := range r.chunksOrder[bookID] {
		c := r.chunks[id]
		if c.Status == tenlib.ChunkPending {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAllChunks(_ context.Context, bookID int64) ([]tenlib.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tenlib.Chunk
	for _, id := range r.chunksOrder[bookID] {
		out = append(out, *r.chunks[id])
	}
	return out, nil
}

func (r *fakeRepo) UpdateChunkTranslation(_ context.Context, chunkID int64, translated, modelUsed string, confidence float64, status tenlib.ChunkStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chunks[chunkID]
	if !ok {
		return tenlib.ErrChunkNotFound
	}
	c.Translated = translated
	c.ModelUsed = modelUsed
	c.Confidence = confidence
	c.Status = status
	return nil
}

func (r *fakeRepo) FlagChunk(_ context.Context, chunkID int64, flags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chunks[chunkID]
	if !ok {
		return tenlib.ErrChunkNotFound
	}
	c.Flags = flags
	c.Status = tenlib.ChunkFlagged
	return nil
}

func (r *fakeRepo) AddTokenUsage(_ context.Context, model string, _ time.Time, tokens int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenUsage[model] += tokens
	return r.tokenUsage[model], nil
}

func (r *fakeRepo) TokensUsedToday(_ context.Context, model string, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokenUsage[model], nil
}

func (r *fakeRepo) SaveBible(_ context.Context, bookID int64, content string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bibleVersion[bookID]++
	r.bibleContent[bookID] = content
	return r.bibleVersion[bookID], nil
}

func (r *fakeRepo) GetLatestBible(_ context.Context, bookID int64) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bibleContent[bookID], r.bibleVersion[bookID], nil
}

func (r *fakeRepo) Close() error { return nil }
