package search

import "context"

// Request is a normalized, validated search request handed to the engine.
// Validation and normalization happen in the query service; engine
// implementations may assume the bounds hold.
type Request struct {
	// Text is the trimmed free-text query. Empty means browse mode:
	// no relevance clause, newest first.
	Text string

	// CategoryID restricts results to one category when non-empty.
	CategoryID string

	Page     int
	PageSize int
}

// Offset returns the zero-based result offset for the request.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Result is one page of ranked search results.
type Result struct {
	Documents []*Document
	Total     int64
	Page      int
	PageSize  int
}

// Engine is the search engine client. Real-time writes and queries address
// the alias; only the rebuild orchestrator touches generation names.
type Engine interface {
	// CreateIndex creates an empty physical index with the question
	// document mapping.
	CreateIndex(ctx context.Context, name string) error

	// DeleteIndex removes a physical index. Missing indexes are not an
	// error.
	DeleteIndex(ctx context.Context, name string) error

	// Upsert creates or replaces one document by ID.
	Upsert(ctx context.Context, index string, doc *Document) error

	// BulkUpsert writes a batch of documents. Per-document failures do
	// not fail the call; their count is returned.
	BulkUpsert(ctx context.Context, index string, docs []*Document) (failed int, err error)

	// Delete removes one document by ID. Removing a document that does
	// not exist is not an error.
	Delete(ctx context.Context, index string, id string) error

	// SwapAlias atomically repoints alias from the old indexes to the
	// new one. At no instant is the alias absent or split.
	SwapAlias(ctx context.Context, alias string, old []string, new string) error

	// AliasTarget returns the indexes the alias currently points at.
	// An unknown alias yields an empty slice.
	AliasTarget(ctx context.Context, alias string) ([]string, error)

	// Generations lists physical index names derived from base, any order.
	Generations(ctx context.Context, base string) ([]string, error)

	// Refresh blocks until writes to the index are visible to search.
	Refresh(ctx context.Context, index string) error

	// SetRefreshInterval tunes the index refresh interval ("-1" disables
	// periodic refresh during bulk loads).
	SetRefreshInterval(ctx context.Context, index string, interval string) error

	// Search runs the request against the given index or alias.
	Search(ctx context.Context, index string, req Request) (*Result, error)
}
