package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumsearch/internal/question"
)

func sampleQuestion() *question.Question {
	return &question.Question{
		ID:         "q-100",
		Title:      "How to configure a reverse proxy",
		Body:       "I want nginx in front of two backends.",
		Href:       "/questions/q-100",
		Visibility: question.VisibilityActive,
		Author: &question.Author{
			ID:          "u-7",
			DisplayName: "Pat",
		},
		Category: question.Category{
			ID:    "networking",
			Title: "Networking",
			Href:  "/categories/networking",
		},
		AnswerCount: 2,
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestTransform(t *testing.T) {
	q := sampleQuestion()
	doc := Transform(q)

	assert.Equal(t, q.ID, doc.ID)
	assert.Equal(t, q.Title, doc.Title)
	assert.Equal(t, q.Body, doc.Body)
	assert.Equal(t, q.Href, doc.Href)
	assert.Equal(t, q.AnswerCount, doc.AnswerCount)
	assert.Equal(t, q.CreatedAt, doc.CreatedAt)
	assert.Equal(t, q.Category.ID, doc.Category.ID)
	assert.Equal(t, q.Category.Title, doc.Category.Title)
	assert.Equal(t, q.Category.Href, doc.Category.Href)
	require.NotNil(t, doc.Author)
	assert.Equal(t, q.Author.ID, doc.Author.ID)
	assert.Equal(t, q.Author.DisplayName, doc.Author.DisplayName)
}

func TestTransformAnonymous(t *testing.T) {
	q := sampleQuestion()
	q.Author = nil

	doc := Transform(q)
	assert.Nil(t, doc.Author)
}

func TestTransformDeterministic(t *testing.T) {
	q := sampleQuestion()

	first := Transform(q)
	second := Transform(q)
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	q := sampleQuestion()
	before := *q
	author := *q.Author

	_ = Transform(q)
	assert.Equal(t, before, *q)
	assert.Equal(t, author, *q.Author)
}
