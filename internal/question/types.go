// Package question holds the forum question domain model, the system-of-record
// store contract, and the write service that publishes change events.
package question

import "time"

// Visibility is the lifecycle state of a question. Only active questions
// appear in search results.
type Visibility string

const (
	// VisibilityActive means the question is live and indexable.
	VisibilityActive Visibility = "active"

	// VisibilityDeleted means the question was soft-deleted. The row is
	// retained so it can be restored.
	VisibilityDeleted Visibility = "deleted"

	// VisibilityHidden means the question was withdrawn by moderation.
	VisibilityHidden Visibility = "hidden"
)

// IsValid checks if the visibility is a known state.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityActive, VisibilityDeleted, VisibilityHidden:
		return true
	default:
		return false
	}
}

// Author identifies who asked the question. Nil on a Question means it was
// asked anonymously.
type Author struct {
	ID          string `bson:"id" json:"id"`
	DisplayName string `bson:"display_name" json:"displayName"`
}

// Category is the mandatory topic a question is filed under.
type Category struct {
	ID    string `bson:"id" json:"id"`
	Title string `bson:"title" json:"title"`
	Href  string `bson:"href" json:"href"`
}

// Question is the system-of-record entity.
type Question struct {
	ID          string     `bson:"_id" json:"id"`
	Title       string     `bson:"title" json:"title"`
	Body        string     `bson:"body" json:"body"`
	Href        string     `bson:"href" json:"href"`
	Visibility  Visibility `bson:"visibility" json:"visibility"`
	Author      *Author    `bson:"author,omitempty" json:"author,omitempty"`
	Category    Category   `bson:"category" json:"category"`
	AnswerCount int        `bson:"answer_count" json:"answerCount"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Active reports whether the question may appear in search results.
func (q *Question) Active() bool {
	return q.Visibility == VisibilityActive
}
