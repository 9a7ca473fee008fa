package rest

import (
	"errors"
	"net/http"

	"forumsearch/internal/search"
	"forumsearch/internal/search/query"
	"forumsearch/pkg/model"
)

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params model.SearchParams
	if err := h.decoder.Decode(&params, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "malformed query parameters")
		return
	}
	if err := h.validate.Struct(&params); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid query parameters")
		return
	}

	result, err := h.query.Search(r.Context(), query.Params{
		Text:       params.Query,
		CategoryID: params.CategoryID,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

// writeSearchError maps validation errors to 400 with the reason; anything
// else is an engine problem.
func (h *Handler) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrQueryTooShort),
		errors.Is(err, query.ErrQueryTooLong),
		errors.Is(err, query.ErrPageOutOfRange),
		errors.Is(err, query.ErrPageSizeOutOfRange),
		errors.Is(err, query.ErrResultWindowExceeded):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		h.logger.Error("search request failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "search unavailable")
	}
}

func toSearchResponse(result *search.Result) model.SearchResponse {
	resp := model.SearchResponse{
		Items:    make([]model.SearchHit, 0, len(result.Documents)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, doc := range result.Documents {
		hit := model.SearchHit{
			ID:    doc.ID,
			Title: doc.Title,
			Body:  doc.Body,
			Href:  doc.Href,
			Category: model.CategoryRef{
				ID:    doc.Category.ID,
				Title: doc.Category.Title,
				Href:  doc.Category.Href,
			},
			AnswerCount: doc.AnswerCount,
			CreatedAt:   doc.CreatedAt,
		}
		if doc.Author != nil {
			hit.Author = &model.AuthorRef{
				ID:          doc.Author.ID,
				DisplayName: doc.Author.DisplayName,
			}
		}
		resp.Items = append(resp.Items, hit)
	}
	return resp
}
