package question

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the requested question does not exist
	// or is not visible to the operation.
	ErrNotFound = errors.New("question not found")

	// ErrExists is returned when creating a question whose ID is taken.
	ErrExists = errors.New("question already exists")
)

// Update carries the mutable fields of a question. Nil fields are left
// untouched.
type Update struct {
	Title    *string
	Body     *string
	Category *Category
}

// PageIterator streams the active corpus in stable-ordered pages. The
// rebuild path uses it to avoid materializing the whole corpus in memory.
type PageIterator interface {
	// Next advances to the next page. Returns false when the corpus is
	// exhausted or an error occurred; check Err afterwards.
	Next(ctx context.Context) bool

	// Page returns the current page of questions.
	Page() []*Question

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the iterator resources.
	Close(ctx context.Context) error
}

// Store is the system-of-record accessor.
type Store interface {
	// GetActiveQuestion fetches a question by ID only if it is active.
	// Returns ErrNotFound for missing and non-active questions alike.
	GetActiveQuestion(ctx context.Context, id string) (*Question, error)

	// CountActiveQuestions returns the size of the indexable corpus.
	CountActiveQuestions(ctx context.Context) (int64, error)

	// StreamActiveQuestions iterates the active corpus in pages of at
	// most pageSize, ordered by ID.
	StreamActiveQuestions(ctx context.Context, pageSize int) (PageIterator, error)

	// Create inserts a new question.
	Create(ctx context.Context, q *Question) error

	// Update applies the non-nil fields and returns the post-write state.
	Update(ctx context.Context, id string, upd Update) (*Question, error)

	// SetVisibility transitions the lifecycle state and returns the
	// post-write state.
	SetVisibility(ctx context.Context, id string, v Visibility) (*Question, error)

	// RecountAnswers recomputes the denormalized answer count from the
	// answers collection and returns the post-write state. Idempotent.
	RecountAnswers(ctx context.Context, id string) (*Question, error)

	// Close releases the store resources.
	Close(ctx context.Context) error
}
