// Package engine implements the narrative memory core: extraction of
// structured updates from chapter text, merge/enrichment of the entity store,
// relevance scoring, working-set selection, conflict detection, and context
// assembly for the next generation call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/llm"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
)

// recentHookWindow is how far back (in chapters) an entity's last appearance
// may be for its hook line to seed the keyword set.
const recentHookWindow = 3

// ExtractionJob is one queued chapter analysis.
type ExtractionJob struct {
	ID           string
	ManuscriptID string
	Chapter      int
	Text         string
	EnqueuedAt   time.Time
}

// PlanResult is the output of one chapter-planning call: the assembled
// context package, the selected working set, and advisory conflict warnings.
type PlanResult struct {
	Context   *types.ContextPackage `json:"context"`
	Selection *Selection            `json:"selection"`
	Warnings  []ConflictWarning     `json:"warnings"`
}

// Engine orchestrates the memory subsystem per manuscript. Merges for one
// manuscript are serialized behind a per-manuscript write lock; planning
// (read-only) takes the read lock so it never observes a half-applied merge.
// Extraction runs on an async worker pool so a slow or failed LLM call never
// blocks delivery of an already-generated chapter.
type Engine struct {
	cfg      *config.Config
	store    storage.Store
	embedder llm.EmbeddingGenerator // optional; enables semantic summary recall

	extractor *Extractor
	merger    *Merger
	scorer    *RelevanceScorer
	selector  *Selector
	assembler *Assembler

	locks   map[string]*sync.RWMutex
	locksMu sync.Mutex

	jobs         chan *ExtractionJob
	workerWG     sync.WaitGroup
	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	// Callbacks for observers (status server event feed). All optional.
	onExtractionQueued   func(job *ExtractionJob)
	onExtractionComplete func(job *ExtractionJob, batch *types.UpdateBatch)
}

// New creates an engine. generator drives the extractor's analysis calls;
// embedder may be nil (summary embeddings disabled).
func New(cfg *config.Config, store storage.Store, generator llm.TextGenerator, embedder llm.EmbeddingGenerator) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("engine: text generator is required")
	}

	scorer := NewRelevanceScorer(cfg.Scoring)
	return &Engine{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		extractor: NewExtractor(generator, embedder, store, cfg.Engine.ExtractionTimeout),
		merger:    NewMerger(store, cfg.Cameo),
		scorer:    scorer,
		selector:  NewSelector(cfg.Selection, scorer),
		assembler: NewAssembler(),
		locks:     make(map[string]*sync.RWMutex),
		jobs:      make(chan *ExtractionJob, cfg.Engine.QueueSize),
	}, nil
}

// OnExtractionQueued registers a callback fired when a job is accepted.
func (e *Engine) OnExtractionQueued(fn func(job *ExtractionJob)) {
	e.onExtractionQueued = fn
}

// OnExtractionComplete registers a callback fired after a job's merge.
func (e *Engine) OnExtractionComplete(fn func(job *ExtractionJob, batch *types.UpdateBatch)) {
	e.onExtractionComplete = fn
}

// Start launches the extraction workers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("engine: already started")
	}

	workers := e.cfg.Engine.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		e.workerWG.Add(1)
		go e.extractionWorker(ctx, i)
	}
	e.started = true
	log.Printf("engine: started with %d extraction workers", workers)
	return nil
}

// Shutdown drains the extraction queue and waits for in-flight jobs, up to
// the context deadline.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.shuttingDown {
		e.mu.Unlock()
		return nil
	}
	e.shuttingDown = true
	// Closed under the lock so no queueing goroutine is mid-send.
	close(e.jobs)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("engine: shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: shutdown timed out: %w", ctx.Err())
	}
}

// lockFor returns the manuscript's lock, creating it on first use.
func (e *Engine) lockFor(manuscriptID string) *sync.RWMutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[manuscriptID]
	if !ok {
		l = &sync.RWMutex{}
		e.locks[manuscriptID] = l
	}
	return l
}

// QueueChapterExtraction enqueues an async memory update for a finished
// chapter. Returns false when the engine is not running or the queue is full;
// the chapter itself is unaffected either way.
//
// The read lock is held across the send: Shutdown closes the jobs channel
// under the write lock, so a queueing goroutine can never race the close and
// panic on a closed channel.
func (e *Engine) QueueChapterExtraction(manuscriptID string, chapter int, text string) bool {
	job := &ExtractionJob{
		ID:           uuid.NewString(),
		ManuscriptID: manuscriptID,
		Chapter:      chapter,
		Text:         text,
		EnqueuedAt:   time.Now(),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started || e.shuttingDown {
		return false
	}

	select {
	case e.jobs <- job:
		if e.onExtractionQueued != nil {
			e.onExtractionQueued(job)
		}
		return true
	default:
		log.Printf("engine: extraction queue full, dropping chapter %d of %s", chapter, manuscriptID)
		return false
	}
}

func (e *Engine) extractionWorker(ctx context.Context, workerID int) {
	defer e.workerWG.Done()
	log.Printf("engine: extraction worker %d started", workerID)

	for job := range e.jobs {
		e.processExtractionJob(ctx, workerID, job)
	}

	log.Printf("engine: extraction worker %d stopped", workerID)
}

func (e *Engine) processExtractionJob(ctx context.Context, workerID int, job *ExtractionJob) {
	log.Printf("engine: worker %d analyzing chapter %d of %s", workerID, job.Chapter, job.ManuscriptID)

	// Extraction is slow and read-only; run it outside the lock.
	batch, embedding := e.extractor.ExtractChapter(ctx, job.ManuscriptID, job.Chapter, job.Text)

	lock := e.lockFor(job.ManuscriptID)
	lock.Lock()
	// Merge against a background context: a shutdown mid-merge must not
	// leave a half-applied batch.
	err := e.merger.MergeBatch(context.Background(), job.ManuscriptID, batch, embedding)
	lock.Unlock()

	if err != nil {
		log.Printf("engine: worker %d merge failed for chapter %d of %s: %v", workerID, job.Chapter, job.ManuscriptID, err)
	}
	if e.onExtractionComplete != nil {
		e.onExtractionComplete(job, batch)
	}
}

// IngestChapter extracts and merges synchronously. Used by the CLI ingest
// path where the caller wants completion before exiting.
func (e *Engine) IngestChapter(ctx context.Context, manuscriptID string, chapter int, text string) error {
	batch, embedding := e.extractor.ExtractChapter(ctx, manuscriptID, chapter, text)

	lock := e.lockFor(manuscriptID)
	lock.Lock()
	defer lock.Unlock()
	return e.merger.MergeBatch(ctx, manuscriptID, batch, embedding)
}

// PlanChapter computes the bounded context package for the next chapter:
// score, select, detect conflicts, assemble. Read-only; serializes against
// in-flight merges for the same manuscript.
func (e *Engine) PlanChapter(ctx context.Context, plan *ChapterPlan) (*PlanResult, error) {
	if plan == nil || plan.ManuscriptID == "" || plan.Chapter <= 0 {
		return nil, fmt.Errorf("engine: manuscript ID and positive chapter are required")
	}

	lock := e.lockFor(plan.ManuscriptID)
	lock.RLock()
	defer lock.RUnlock()

	profiles, err := e.store.ListCharacters(ctx, plan.ManuscriptID)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load characters: %w", err)
	}
	entities, err := e.store.ListWorldEntities(ctx, plan.ManuscriptID, "")
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load world entities: %w", err)
	}
	summaries, err := e.store.ListRecentSummaries(ctx, plan.ManuscriptID, e.cfg.Engine.SummaryWindow)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load summaries: %w", err)
	}
	summaries = e.recallSummaries(ctx, plan, summaries)

	var foreshadowing []*types.ForeshadowingRecord
	for _, status := range []types.ForeshadowStatus{types.ForeshadowActive, types.ForeshadowDeveloping} {
		records, err := e.store.ListForeshadowing(ctx, plan.ManuscriptID, status)
		if err != nil {
			return nil, fmt.Errorf("engine: failed to load foreshadowing: %w", err)
		}
		foreshadowing = append(foreshadowing, records...)
	}

	protagonist, err := e.store.GetProtagonistStatus(ctx, plan.ManuscriptID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("engine: failed to load protagonist status: %w", err)
	}

	kw := BuildKeywordSet(plan, keywordExtras(plan.Chapter, profiles, entities, summaries))

	selection := &Selection{
		Characters: e.selector.SelectCharacters(profiles, plan.Chapter, kw),
	}
	selection.Organizations, selection.Locations, selection.Artifacts =
		e.selector.SelectWorldEntities(entities, plan.Chapter, kw)

	warnings := DetectConflicts(profiles)

	pkg := e.assembler.Assemble(AssemblyInput{
		Plan:          plan,
		Selection:     selection,
		Protagonist:   protagonist,
		Summaries:     summaries,
		Foreshadowing: foreshadowing,
	})

	log.Printf("engine: planned chapter %d of %s: %d segments, %d chars, ~%d tokens, %d warnings",
		plan.Chapter, plan.ManuscriptID, pkg.Meta.SegmentCount, pkg.Meta.TotalChars, pkg.Meta.EstimatedTokens, len(warnings))

	return &PlanResult{Context: pkg, Selection: selection, Warnings: warnings}, nil
}

// recallSummaries blends semantically similar past chapters into the recency
// window when the store supports vector search and an embedder is configured.
// The plan's title/goal/location text is the query. Any recall failure
// degrades to the recency-only window.
func (e *Engine) recallSummaries(ctx context.Context, plan *ChapterPlan, summaries []*types.ChapterSummary) []*types.ChapterSummary {
	searcher, ok := e.store.(storage.SummarySearcher)
	if !ok || e.embedder == nil {
		return summaries
	}
	query := strings.TrimSpace(strings.Join([]string{plan.Title, plan.Goal, plan.Location}, " "))
	if query == "" {
		return summaries
	}

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("engine: recall query embedding failed for %s: %v", plan.ManuscriptID, err)
		return summaries
	}
	hits, err := searcher.SearchSummaries(ctx, plan.ManuscriptID, embedding, e.cfg.Engine.SummaryWindow)
	if err != nil {
		log.Printf("engine: semantic summary recall failed for %s: %v", plan.ManuscriptID, err)
		return summaries
	}

	seen := make(map[int]bool, len(summaries))
	for _, s := range summaries {
		seen[s.Chapter] = true
	}
	recalled := 0
	for _, h := range hits {
		if !seen[h.Chapter] {
			seen[h.Chapter] = true
			summaries = append(summaries, h)
			recalled++
		}
	}
	if recalled > 0 {
		log.Printf("engine: recalled %d past chapters for %s beyond the recency window", recalled, plan.ManuscriptID)
		// The assembler expects newest-first.
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Chapter > summaries[j].Chapter })
	}
	return summaries
}

// keywordExtras gathers recently-mentioned entity hooks and recent chapter
// summaries for the keyword set.
func keywordExtras(chapter int, profiles []*types.CharacterProfile, entities []*types.WorldEntity, summaries []*types.ChapterSummary) []string {
	var extras []string
	for _, p := range profiles {
		if chapter-p.LastAppearance <= recentHookWindow && !types.IsEnrichmentPending(p.HookLine) {
			extras = append(extras, p.HookLine)
		}
	}
	for _, w := range entities {
		if chapter-w.LastMention <= recentHookWindow && w.HookLine != "" {
			extras = append(extras, w.HookLine)
		}
	}
	for _, s := range summaries {
		extras = append(extras, s.Summary)
	}
	return extras
}

// DetectManuscriptConflicts runs the conflict pass over a manuscript's store.
func (e *Engine) DetectManuscriptConflicts(ctx context.Context, manuscriptID string) ([]ConflictWarning, error) {
	lock := e.lockFor(manuscriptID)
	lock.RLock()
	defer lock.RUnlock()

	profiles, err := e.store.ListCharacters(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load characters: %w", err)
	}
	return DetectConflicts(profiles), nil
}

// QueueSize reports the number of extraction jobs waiting in the queue.
func (e *Engine) QueueSize() int {
	return len(e.jobs)
}

// Stats reports store counts for a manuscript.
func (e *Engine) Stats(ctx context.Context, manuscriptID string) (*storage.Stats, error) {
	return e.store.Stats(ctx, manuscriptID)
}
