// Package query validates and normalizes incoming search requests before
// they reach the engine, and shields the engine from abusive parameters.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"forumsearch/internal/search"
)

const (
	// MinQueryLen is the shortest useful free-text query.
	MinQueryLen = 3

	// MaxQueryLen caps free-text query length after trimming.
	MaxQueryLen = 150

	// MaxPage caps how deep paging may go.
	MaxPage = 300

	// MaxPageSize caps the page size.
	MaxPageSize = 100

	// MaxResultWindow caps page*pageSize, matching the engine's deep
	// paging limit.
	MaxResultWindow = 10000

	// DefaultPageSize applies when the caller does not pick one.
	DefaultPageSize = 20
)

var (
	// ErrQueryTooShort means the trimmed query text is under MinQueryLen.
	ErrQueryTooShort = errors.New("query text too short")

	// ErrQueryTooLong means the trimmed query text is over MaxQueryLen.
	ErrQueryTooLong = errors.New("query text too long")

	// ErrPageOutOfRange means page is outside [1, MaxPage].
	ErrPageOutOfRange = fmt.Errorf("page must be between 1 and %d", MaxPage)

	// ErrPageSizeOutOfRange means pageSize is outside [1, MaxPageSize].
	ErrPageSizeOutOfRange = fmt.Errorf("pageSize must be between 1 and %d", MaxPageSize)

	// ErrResultWindowExceeded means page*pageSize would reach past
	// MaxResultWindow.
	ErrResultWindowExceeded = fmt.Errorf("page*pageSize must not exceed %d", MaxResultWindow)
)

// Params carry the raw, caller-supplied search parameters.
type Params struct {
	Text       string
	CategoryID string
	Page       int
	PageSize   int
}

// Service validates requests and runs them against the index alias.
type Service struct {
	engine search.Engine
	alias  string
	logger *slog.Logger
}

// NewService builds a query service querying the given alias.
func NewService(engine search.Engine, alias string, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		alias:  alias,
		logger: logger.With("component", "query"),
	}
}

// Normalize validates raw parameters and produces an engine request.
// Empty text selects browse mode and skips the length checks.
func Normalize(p Params) (search.Request, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 || p.Page > MaxPage {
		return search.Request{}, ErrPageOutOfRange
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return search.Request{}, ErrPageSizeOutOfRange
	}
	if p.Page*p.PageSize > MaxResultWindow {
		return search.Request{}, ErrResultWindowExceeded
	}

	text := cleanText(p.Text)
	if text != "" {
		if n := len([]rune(text)); n < MinQueryLen {
			return search.Request{}, ErrQueryTooShort
		} else if n > MaxQueryLen {
			return search.Request{}, ErrQueryTooLong
		}
	}

	return search.Request{
		Text:       text,
		CategoryID: strings.TrimSpace(p.CategoryID),
		Page:       p.Page,
		PageSize:   p.PageSize,
	}, nil
}

// Search validates the parameters and runs the query against the alias.
func (s *Service) Search(ctx context.Context, p Params) (*search.Result, error) {
	req, err := Normalize(p)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Search(ctx, s.alias, req)
	if err != nil {
		s.logger.Error("search failed", "text_len", len(req.Text), "page", req.Page, "error", err)
		return nil, fmt.Errorf("run search: %w", err)
	}
	return res, nil
}

// cleanText strips control characters and collapses surrounding whitespace.
func cleanText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
