package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/internal/storage/sqlite"
)

// stubGenerator returns a canned response or error.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubGenerator) GetModel() string { return "stub" }

func newTestExtractor(t *testing.T, gen *stubGenerator) (*Extractor, storage.Store) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewExtractor(gen, nil, store, 5*time.Second), store
}

func TestExtractChapter_ValidResponse(t *testing.T) {
	gen := &stubGenerator{response: `{"summary": "林昭入门", "characters": [{"name": "林昭", "role": "PROTAGONIST"}]}`}
	e, _ := newTestExtractor(t, gen)

	batch, embedding := e.ExtractChapter(context.Background(), "ms-1", 1, "第一章正文")
	assert.Equal(t, 1, batch.Chapter)
	assert.Equal(t, "林昭入门", batch.Summary)
	require.Len(t, batch.Characters, 1)
	assert.Nil(t, embedding)
}

func TestExtractChapter_MalformedResponseYieldsEmptyBatch(t *testing.T) {
	gen := &stubGenerator{response: "对不起，我无法解析这一章。"}
	e, _ := newTestExtractor(t, gen)

	batch, _ := e.ExtractChapter(context.Background(), "ms-1", 2, "正文")
	assert.True(t, batch.IsEmpty(), "malformed output must degrade to an empty batch")
	assert.Equal(t, 2, batch.Chapter)
}

func TestExtractChapter_GeneratorFailureYieldsEmptyBatch(t *testing.T) {
	gen := &stubGenerator{err: errors.New("connection refused")}
	e, _ := newTestExtractor(t, gen)

	batch, _ := e.ExtractChapter(context.Background(), "ms-1", 3, "正文")
	assert.True(t, batch.IsEmpty())
}

func TestExtractChapter_EmptyTextSkipsCall(t *testing.T) {
	gen := &stubGenerator{response: `{}`}
	e, _ := newTestExtractor(t, gen)

	batch, _ := e.ExtractChapter(context.Background(), "ms-1", 4, "")
	assert.True(t, batch.IsEmpty())
	assert.Empty(t, gen.prompts, "no analysis call for empty text")
}

func TestExtractChapter_PromptCarriesStoreSnapshot(t *testing.T) {
	gen := &stubGenerator{response: `{}`}
	e, store := newTestExtractor(t, gen)
	ctx := context.Background()

	require.NoError(t, store.UpsertCharacter(ctx, strongProfile("ms-1", "林昭")))

	e.ExtractChapter(ctx, "ms-1", 5, "正文")
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "林昭", "known names must anchor the prompt")
}

// streamingStub also implements the streaming completion interface.
type streamingStub struct {
	stubGenerator
	streamed bool
}

func (s *streamingStub) CompleteStream(_ context.Context, prompt string, onChunk func(string)) (string, error) {
	s.streamed = true
	s.prompts = append(s.prompts, prompt)
	if onChunk != nil {
		onChunk(s.response)
	}
	return s.response, s.err
}

func TestExtractChapter_StreamingProviderPreferred(t *testing.T) {
	gen := &streamingStub{stubGenerator: stubGenerator{response: `{"summary": "林昭入门"}`}}
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	e := NewExtractor(gen, nil, store, 5*time.Second)

	batch, _ := e.ExtractChapter(context.Background(), "ms-1", 1, "正文")
	assert.True(t, gen.streamed, "streaming-capable provider should stream")
	assert.Equal(t, "林昭入门", batch.Summary)
}
