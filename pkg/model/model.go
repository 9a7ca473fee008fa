// Package model holds the public request and response types of the HTTP API.
package model

import "time"

// SearchParams are the query parameters of a search request, decoded from
// the URL query string.
type SearchParams struct {
	Query      string `schema:"q" validate:"omitempty,max=200"`
	CategoryID string `schema:"category" validate:"omitempty,max=100"`
	Page       int    `schema:"page" validate:"omitempty,min=1"`
	PageSize   int    `schema:"pageSize" validate:"omitempty,min=1"`
}

// AuthorRef is the author snapshot in a search hit.
type AuthorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// CategoryRef is the category snapshot in a search hit.
type CategoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Href  string `json:"href"`
}

// SearchHit is one question in a search result page.
type SearchHit struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Href        string      `json:"href"`
	Author      *AuthorRef  `json:"author,omitempty"`
	Category    CategoryRef `json:"category"`
	AnswerCount int         `json:"answerCount"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Items    []SearchHit `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// ReindexAccepted is returned when a rebuild job was started.
type ReindexAccepted struct {
	JobID string `json:"jobId"`
}

// ReindexJob is the reported state of a rebuild job.
type ReindexJob struct {
	ID         string    `json:"id"`
	Alias      string    `json:"alias"`
	Generation string    `json:"generation,omitempty"`
	Status     string    `json:"status"`
	DocsTotal  int64     `json:"docsTotal"`
	DocsLoaded int64     `json:"docsLoaded"`
	DocsFailed int64     `json:"docsFailed"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ReindexJobList is the collection form of ReindexJob.
type ReindexJobList struct {
	Jobs []ReindexJob `json:"jobs"`
}
