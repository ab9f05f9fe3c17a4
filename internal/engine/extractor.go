package engine

import (
	"context"
	"log"
	"time"

	"github.com/inklet/chronicle/internal/llm"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
)

// Extractor turns raw chapter text into a structured update batch via a
// single analysis call to the text generator. Extraction is best-effort:
// every failure mode (snapshot read, LLM error, timeout, malformed output)
// degrades to an empty batch, never an error — a lost memory update must not
// block chapter delivery.
type Extractor struct {
	generator llm.TextGenerator
	embedder  llm.EmbeddingGenerator // optional; nil disables summary embeddings
	store     storage.Store
	timeout   time.Duration
}

// NewExtractor creates an extractor. embedder may be nil.
func NewExtractor(generator llm.TextGenerator, embedder llm.EmbeddingGenerator, store storage.Store, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Extractor{
		generator: generator,
		embedder:  embedder,
		store:     store,
		timeout:   timeout,
	}
}

// ExtractChapter analyzes one chapter and returns its update batch plus an
// optional embedding of the chapter summary. Never returns an error.
func (e *Extractor) ExtractChapter(ctx context.Context, manuscriptID string, chapter int, chapterText string) (*types.UpdateBatch, []float32) {
	if chapterText == "" {
		return types.EmptyBatch(chapter), nil
	}

	knownCharacters, knownWorld, openForeshadowing := e.snapshot(ctx, manuscriptID)
	prompt := llm.ChapterAnalysisPrompt(chapter, chapterText, knownCharacters, knownWorld, openForeshadowing)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.completeAnalysis(callCtx, prompt)
	if err != nil {
		log.Printf("extractor: analysis call failed for chapter %d of %s: %v", chapter, manuscriptID, err)
		return types.EmptyBatch(chapter), nil
	}

	batch, err := llm.ParseUpdateBatch(chapter, raw)
	if err != nil {
		log.Printf("extractor: unparseable analysis for chapter %d of %s: %v", chapter, manuscriptID, err)
		return types.EmptyBatch(chapter), nil
	}

	var embedding []float32
	if e.embedder != nil && batch.Summary != "" {
		embedding, err = e.embedder.Embed(callCtx, batch.Summary)
		if err != nil {
			log.Printf("extractor: summary embedding failed for chapter %d: %v", chapter, err)
			embedding = nil
		}
	}

	return batch, embedding
}

// completeAnalysis runs the analysis call, streaming when the provider
// supports it so a long analysis keeps the connection moving under the
// per-call timeout. The accumulated text is identical either way.
func (e *Extractor) completeAnalysis(ctx context.Context, prompt string) (string, error) {
	if sg, ok := e.generator.(llm.StreamingGenerator); ok {
		return sg.CompleteStream(ctx, prompt, nil)
	}
	return e.generator.Complete(ctx, prompt)
}

// snapshot reads the current store state so the analysis prompt can anchor to
// existing names. Read failures degrade to empty lists.
func (e *Extractor) snapshot(ctx context.Context, manuscriptID string) (characters, world, foreshadowing []string) {
	profiles, err := e.store.ListCharacters(ctx, manuscriptID)
	if err != nil {
		log.Printf("extractor: character snapshot failed for %s: %v", manuscriptID, err)
	}
	for _, p := range profiles {
		characters = append(characters, p.Name)
	}

	entities, err := e.store.ListWorldEntities(ctx, manuscriptID, "")
	if err != nil {
		log.Printf("extractor: world snapshot failed for %s: %v", manuscriptID, err)
	}
	for _, w := range entities {
		world = append(world, w.Name)
	}

	for _, status := range []types.ForeshadowStatus{types.ForeshadowActive, types.ForeshadowDeveloping} {
		records, err := e.store.ListForeshadowing(ctx, manuscriptID, status)
		if err != nil {
			log.Printf("extractor: foreshadowing snapshot failed for %s: %v", manuscriptID, err)
			continue
		}
		for _, r := range records {
			foreshadowing = append(foreshadowing, r.Content)
		}
	}

	return characters, world, foreshadowing
}
