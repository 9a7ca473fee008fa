package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumsearch/internal/config"
	"forumsearch/internal/question"
	"forumsearch/internal/search"
	"forumsearch/internal/search/memsearch"
)

// corpusStore serves a fixed active corpus page by page. gate, when set,
// blocks each page so tests can hold a rebuild mid-flight.
type corpusStore struct {
	mu       sync.Mutex
	corpus   []*question.Question
	gate     chan struct{}
	countErr error
	iterErr  error
}

func newCorpusStore(n int) *corpusStore {
	s := &corpusStore{}
	for i := 0; i < n; i++ {
		s.corpus = append(s.corpus, &question.Question{
			ID:         fmt.Sprintf("q-%03d", i),
			Title:      fmt.Sprintf("question %d", i),
			Body:       "body",
			Visibility: question.VisibilityActive,
			Category:   question.Category{ID: "general"},
			CreatedAt:  time.Now().UTC(),
		})
	}
	return s
}

func (s *corpusStore) GetActiveQuestion(_ context.Context, id string) (*question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.corpus {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, question.ErrNotFound
}

func (s *corpusStore) CountActiveQuestions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.corpus)), nil
}

func (s *corpusStore) StreamActiveQuestions(_ context.Context, pageSize int) (question.PageIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &corpusIterator{store: s, pageSize: pageSize}, nil
}

func (s *corpusStore) Create(context.Context, *question.Question) error {
	return errors.New("not implemented")
}

func (s *corpusStore) Update(context.Context, string, question.Update) (*question.Question, error) {
	return nil, errors.New("not implemented")
}

func (s *corpusStore) SetVisibility(context.Context, string, question.Visibility) (*question.Question, error) {
	return nil, errors.New("not implemented")
}

func (s *corpusStore) RecountAnswers(context.Context, string) (*question.Question, error) {
	return nil, errors.New("not implemented")
}

func (s *corpusStore) Close(context.Context) error { return nil }

type corpusIterator struct {
	store    *corpusStore
	pageSize int
	offset   int
	page     []*question.Question
	err      error
}

func (it *corpusIterator) Next(ctx context.Context) bool {
	it.store.mu.Lock()
	gate := it.store.gate
	iterErr := it.store.iterErr
	corpus := it.store.corpus
	it.store.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			it.err = ctx.Err()
			return false
		}
	}
	if iterErr != nil && it.offset > 0 {
		it.err = iterErr
		return false
	}
	if it.offset >= len(corpus) {
		return false
	}
	end := it.offset + it.pageSize
	if end > len(corpus) {
		end = len(corpus)
	}
	it.page = corpus[it.offset:end]
	it.offset = end
	return true
}

func (it *corpusIterator) Page() []*question.Question { return it.page }
func (it *corpusIterator) Err() error                 { return it.err }
func (it *corpusIterator) Close(context.Context) error {
	return nil
}

func newAliasedEngine(t *testing.T) *memsearch.Engine {
	t.Helper()
	ctx := context.Background()
	engine := memsearch.NewEngine()
	initial := search.GenerationName("questions", time.Unix(0, 1))
	require.NoError(t, engine.CreateIndex(ctx, initial))
	require.NoError(t, engine.SwapAlias(ctx, "questions", nil, initial))
	return engine
}

func newOrchestrator(store question.Store, engine search.Engine) *Orchestrator {
	cfg := config.RebuildConfig{PageSize: 10, Keep: 0}
	return New(cfg, store, engine, "questions", logger())
}

func logger() *slog.Logger { return slog.Default() }

func waitForJob(t *testing.T, o *Orchestrator, jobID string) JobProgress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := o.GetJob(jobID)
		require.NoError(t, err)
		if p.Status.terminal() {
			return *p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("rebuild job did not finish in time")
	return JobProgress{}
}

func TestRebuildHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(35)
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	oldTargets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)
	require.Len(t, oldTargets, 1)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	p := waitForJob(t, o, jobID)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, int64(35), p.DocsTotal)
	assert.Equal(t, int64(35), p.DocsLoaded)
	assert.Zero(t, p.DocsFailed)
	assert.Empty(t, p.Error)

	targets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.NotEqual(t, oldTargets[0], targets[0])
	assert.Equal(t, p.Generation, targets[0])
	assert.Equal(t, 35, engine.DocCount("questions"))

	// The superseded generation was pruned and refresh was restored.
	gens, err := engine.Generations(ctx, "questions")
	require.NoError(t, err)
	assert.Equal(t, []string{p.Generation}, gens)
	assert.Equal(t, "1s", engine.RefreshInterval(p.Generation))
}

func TestRebuildKeepsSpareGenerations(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(5)
	engine := newAliasedEngine(t)
	cfg := config.RebuildConfig{PageSize: 10, Keep: 1}
	o := New(cfg, store, engine, "questions", logger())

	oldTargets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)
	p := waitForJob(t, o, jobID)
	require.Equal(t, StatusCompleted, p.Status)

	gens, err := engine.Generations(ctx, "questions")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p.Generation, oldTargets[0]}, gens)
}

func TestRebuildBulkRejectsAreCountedNotFatal(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(20)
	engine := newAliasedEngine(t)
	engine.FailNextBulkDocs(10)
	o := newOrchestrator(store, engine)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	p := waitForJob(t, o, jobID)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, int64(10), p.DocsFailed)
	assert.Equal(t, int64(10), p.DocsLoaded)

	// The alias moved to the new generation despite the rejects.
	targets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)
	assert.Equal(t, []string{p.Generation}, targets)

	assert.Equal(t, 10, engine.DocCount(p.Generation))
}

func TestRebuildStoreFailureLeavesAliasUntouched(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(20)
	store.iterErr = errors.New("cursor lost")
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	oldTargets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	p := waitForJob(t, o, jobID)
	assert.Equal(t, StatusFailed, p.Status)

	targets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)
	assert.Equal(t, oldTargets, targets)
}

func TestRebuildSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(20)
	store.gate = make(chan struct{})
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	_, err = o.StartRebuild(ctx)
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(store.gate)
	p := waitForJob(t, o, jobID)
	require.Equal(t, StatusCompleted, p.Status)

	// With the first run done, a new rebuild may start.
	second, err := o.StartRebuild(ctx)
	require.NoError(t, err)
	waitForJob(t, o, second)
}

func TestRebuildCancel(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(20)
	store.gate = make(chan struct{})
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	oldTargets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	// The job is pending or running and blocked on the gate.
	require.NoError(t, o.CancelRebuild(jobID))

	p := waitForJob(t, o, jobID)
	assert.Equal(t, StatusCanceled, p.Status)

	targets, err := engine.AliasTarget(ctx, "questions")
	require.NoError(t, err)
	assert.Equal(t, oldTargets, targets)

	// Cancelling an ended job is rejected.
	assert.ErrorIs(t, o.CancelRebuild(jobID), ErrJobNotCancelable)
}

func TestRebuildAliasAlwaysSingleTarget(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(200)
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		waitForJob(t, o, jobID)
	}()

	// Readers polling the alias during the run always see exactly one
	// target index that answers queries.
	for {
		select {
		case <-done:
			return
		default:
		}
		targets, err := engine.AliasTarget(ctx, "questions")
		require.NoError(t, err)
		require.Len(t, targets, 1)
		_, err = engine.Search(ctx, "questions", search.Request{Page: 1, PageSize: 1})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
}

func TestJobRegistry(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(5)
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	_, err := o.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, o.CancelRebuild("missing"), ErrJobNotFound)
	assert.Empty(t, o.ListJobs())

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)
	waitForJob(t, o, jobID)

	jobs := o.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)

	// Too young to be cleaned up, then old enough.
	assert.Zero(t, o.CleanupCompletedJobs(time.Hour))
	assert.Equal(t, 1, o.CleanupCompletedJobs(0))
	assert.Empty(t, o.ListJobs())
}

func TestSweepAbandonedGenerations(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(5)
	engine := newAliasedEngine(t)
	o := newOrchestrator(store, engine)

	// A generation left behind by a crashed process.
	abandoned := search.GenerationName("questions", time.Unix(0, 2))
	require.NoError(t, engine.CreateIndex(ctx, abandoned))

	jobID, err := o.StartRebuild(ctx)
	require.NoError(t, err)
	p := waitForJob(t, o, jobID)
	require.Equal(t, StatusCompleted, p.Status)

	gens, err := engine.Generations(ctx, "questions")
	require.NoError(t, err)
	assert.NotContains(t, gens, abandoned)
}
