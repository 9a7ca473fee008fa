// Package search defines the denormalized search document, the transform
// from the relational entity, the search engine client contract, and the
// generation naming scheme.
package search

import (
	"time"

	"forumsearch/internal/question"
)

// AuthorRef is the author snapshot embedded in a document.
type AuthorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// CategoryRef is the category snapshot embedded in a document.
type CategoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Href  string `json:"href"`
}

// Document is the denormalized form of a question stored in the search
// index, keyed by the source question ID. JSON field names are the wire
// format the engine stores.
type Document struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Href        string      `json:"href"`
	Author      *AuthorRef  `json:"author,omitempty"`
	Category    CategoryRef `json:"category"`
	AnswerCount int         `json:"answerCount"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Transform maps a question to its search document. Pure: no I/O, no
// mutation of the input. Both the real-time and the bulk path go through
// this function, so the two produce identical documents for identical
// source state.
func Transform(q *question.Question) *Document {
	doc := &Document{
		ID:    q.ID,
		Title: q.Title,
		Body:  q.Body,
		Href:  q.Href,
		Category: CategoryRef{
			ID:    q.Category.ID,
			Title: q.Category.Title,
			Href:  q.Category.Href,
		},
		AnswerCount: q.AnswerCount,
		CreatedAt:   q.CreatedAt,
	}
	if q.Author != nil {
		doc.Author = &AuthorRef{
			ID:          q.Author.ID,
			DisplayName: q.Author.DisplayName,
		}
	}
	return doc
}
