// Package memsearch is an in-memory search engine used by tests and by
// single-process setups that run without an Elasticsearch cluster. It keeps
// the same visibility and alias semantics as the real engine: atomic alias
// swaps, missing-document deletes succeeding, and a lexically separate
// generation namespace.
package memsearch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"forumsearch/internal/search"
)

// ErrIndexNotFound is returned for operations that address an index that
// was never created.
var ErrIndexNotFound = errors.New("memsearch: index not found")

// ErrIndexExists is returned when creating an index that already exists.
var ErrIndexExists = errors.New("memsearch: index already exists")

type index struct {
	docs            map[string]*search.Document
	refreshInterval string
}

// Engine is an in-memory search.Engine.
type Engine struct {
	mu      sync.RWMutex
	indexes map[string]*index
	aliases map[string][]string

	// failBulkDocs makes the next BulkUpsert calls report that many
	// documents as failed without storing them. Tests use it to exercise
	// partial-failure handling.
	failBulkDocs int

	// failUpsert makes Upsert return an error, for retry-path tests.
	failUpsert error
}

var _ search.Engine = (*Engine)(nil)

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{
		indexes: make(map[string]*index),
		aliases: make(map[string][]string),
	}
}

// FailNextBulkDocs makes the coming BulkUpsert calls reject n documents.
func (e *Engine) FailNextBulkDocs(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failBulkDocs = n
}

// SetFailUpsert makes Upsert fail with err until cleared with nil.
func (e *Engine) SetFailUpsert(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failUpsert = err
}

// resolve maps an alias to its single target, or passes a physical index
// name through.
func (e *Engine) resolve(name string) (*index, error) {
	if targets, ok := e.aliases[name]; ok {
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: alias %s has no target", ErrIndexNotFound, name)
		}
		name = targets[0]
	}
	idx, ok := e.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return idx, nil
}

func (e *Engine) CreateIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[name]; ok {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	e.indexes[name] = &index{
		docs:            make(map[string]*search.Document),
		refreshInterval: "1s",
	}
	return nil
}

func (e *Engine) DeleteIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.indexes, name)
	return nil
}

func (e *Engine) Upsert(_ context.Context, name string, doc *search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failUpsert != nil {
		return e.failUpsert
	}
	idx, err := e.resolve(name)
	if err != nil {
		return err
	}
	stored := *doc
	idx.docs[doc.ID] = &stored
	return nil
}

func (e *Engine) BulkUpsert(_ context.Context, name string, docs []*search.Document) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.resolve(name)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, doc := range docs {
		if e.failBulkDocs > 0 {
			e.failBulkDocs--
			failed++
			continue
		}
		stored := *doc
		idx.docs[doc.ID] = &stored
	}
	return failed, nil
}

func (e *Engine) Delete(_ context.Context, name string, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.resolve(name)
	if err != nil {
		return err
	}
	delete(idx.docs, id)
	return nil
}

func (e *Engine) SwapAlias(_ context.Context, alias string, old []string, new string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[new]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, new)
	}
	e.aliases[alias] = []string{new}
	return nil
}

func (e *Engine) AliasTarget(_ context.Context, alias string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	targets := e.aliases[alias]
	out := make([]string, len(targets))
	copy(out, targets)
	return out, nil
}

func (e *Engine) Generations(_ context.Context, base string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for name := range e.indexes {
		if _, ok := search.GenerationTime(base, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) Refresh(_ context.Context, name string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.resolve(name)
	return err
}

func (e *Engine) SetRefreshInterval(_ context.Context, name string, interval string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.resolve(name)
	if err != nil {
		return err
	}
	idx.refreshInterval = interval
	return nil
}

// RefreshInterval reports the current interval of an index, for tests.
func (e *Engine) RefreshInterval(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, err := e.resolve(name)
	if err != nil {
		return ""
	}
	return idx.refreshInterval
}

// DocCount reports how many documents an index or alias holds, for tests.
func (e *Engine) DocCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, err := e.resolve(name)
	if err != nil {
		return 0
	}
	return len(idx.docs)
}

// Get returns a copy of a stored document, resolving aliases.
func (e *Engine) Get(name, id string) (*search.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, err := e.resolve(name)
	if err != nil {
		return nil, false
	}
	doc, ok := idx.docs[id]
	if !ok {
		return nil, false
	}
	out := *doc
	return &out, true
}

type scored struct {
	doc   *search.Document
	score float64
}

// Search mimics the relevance behavior of the real engine: term overlap
// with a 70 percent floor, title matches weighted over body matches, and
// newest-first browsing when no text is given.
func (e *Engine) Search(_ context.Context, name string, req search.Request) (*search.Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, err := e.resolve(name)
	if err != nil {
		return nil, err
	}

	terms := tokenize(req.Text)
	var hits []scored
	for _, doc := range idx.docs {
		if req.CategoryID != "" && doc.Category.ID != req.CategoryID {
			continue
		}
		if len(terms) == 0 {
			hits = append(hits, scored{doc: doc})
			continue
		}
		score, matched := score(doc, terms)
		if matched*10 < len(terms)*7 {
			continue
		}
		hits = append(hits, scored{doc: doc, score: score})
	}

	if len(terms) == 0 {
		sort.Slice(hits, func(i, j int) bool {
			if !hits[i].doc.CreatedAt.Equal(hits[j].doc.CreatedAt) {
				return hits[i].doc.CreatedAt.After(hits[j].doc.CreatedAt)
			}
			return hits[i].doc.ID < hits[j].doc.ID
		})
	} else {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].score != hits[j].score {
				return hits[i].score > hits[j].score
			}
			return hits[i].doc.ID < hits[j].doc.ID
		})
	}

	result := &search.Result{
		Documents: []*search.Document{},
		Total:     int64(len(hits)),
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	start := req.Offset()
	if start > len(hits) {
		start = len(hits)
	}
	end := start + req.PageSize
	if end > len(hits) {
		end = len(hits)
	}
	for _, h := range hits[start:end] {
		out := *h.doc
		result.Documents = append(result.Documents, &out)
	}
	return result, nil
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// score counts query terms present in the document. A term found in the
// title contributes three times the weight of one found only in the body.
func score(doc *search.Document, terms []string) (float64, int) {
	title := strings.ToLower(doc.Title)
	body := strings.ToLower(doc.Body)
	total := 0.0
	matched := 0
	for _, term := range terms {
		switch {
		case strings.Contains(title, term):
			total += 3
			matched++
		case strings.Contains(body, term):
			total++
			matched++
		}
	}
	return total, matched
}
