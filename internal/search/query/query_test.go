package query

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumsearch/internal/search"
	"forumsearch/internal/search/memsearch"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		want    search.Request
		wantErr error
	}{
		{
			name:   "defaults",
			params: Params{Text: "reverse proxy"},
			want:   search.Request{Text: "reverse proxy", Page: 1, PageSize: DefaultPageSize},
		},
		{
			name:   "browse mode skips length checks",
			params: Params{Page: 2, PageSize: 50},
			want:   search.Request{Page: 2, PageSize: 50},
		},
		{
			name:   "trims and strips control characters",
			params: Params{Text: "  rev\x00erse\tproxy  ", Page: 1, PageSize: 10},
			want:   search.Request{Text: "reverse\tproxy", Page: 1, PageSize: 10},
		},
		{
			name:    "too short",
			params:  Params{Text: "a", Page: 1, PageSize: 10},
			wantErr: ErrQueryTooShort,
		},
		{
			name:    "whitespace padding does not rescue a short query",
			params:  Params{Text: "   a   ", Page: 1, PageSize: 10},
			wantErr: ErrQueryTooShort,
		},
		{
			name:    "too long",
			params:  Params{Text: longText(152), Page: 1, PageSize: 10},
			wantErr: ErrQueryTooLong,
		},
		{
			name:   "exactly max length",
			params: Params{Text: longText(150), Page: 1, PageSize: 10},
			want:   search.Request{Text: longText(150), Page: 1, PageSize: 10},
		},
		{
			name:    "page zero after explicit negative",
			params:  Params{Page: -1, PageSize: 10},
			wantErr: ErrPageOutOfRange,
		},
		{
			name:    "page too deep",
			params:  Params{Page: 301, PageSize: 10},
			wantErr: ErrPageOutOfRange,
		},
		{
			name:    "page size too large",
			params:  Params{Page: 1, PageSize: 101},
			wantErr: ErrPageSizeOutOfRange,
		},
		{
			name:    "result window exceeded",
			params:  Params{Page: 300, PageSize: 40},
			wantErr: ErrResultWindowExceeded,
		},
		{
			name:   "deep but inside the window",
			params: Params{Page: 250, PageSize: 40},
			want:   search.Request{Page: 250, PageSize: 40},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func longText(n int) string {
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = 'q'
	}
	return string(runes)
}

func TestServiceSearch(t *testing.T) {
	ctx := context.Background()
	engine := memsearch.NewEngine()
	require.NoError(t, engine.CreateIndex(ctx, "questions-1"))
	require.NoError(t, engine.SwapAlias(ctx, "questions", nil, "questions-1"))
	require.NoError(t, engine.Upsert(ctx, "questions", &search.Document{
		ID:        "q-1",
		Title:     "How to configure a reverse proxy",
		Body:      "nginx in front of two backends",
		CreatedAt: time.Now(),
	}))

	svc := NewService(engine, "questions", slog.Default())

	res, err := svc.Search(ctx, Params{Text: "reverse proxy"})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "q-1", res.Documents[0].ID)

	_, err = svc.Search(ctx, Params{Text: "ab"})
	assert.ErrorIs(t, err, ErrQueryTooShort)
}
