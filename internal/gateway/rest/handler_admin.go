package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"forumsearch/internal/indexer/rebuild"
	"forumsearch/pkg/model"
)

// adminOnly verifies the HS256 bearer token on operator endpoints. With no
// secret configured the endpoints are dark.
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(h.jwtSecret) == 0 {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
			return
		}

		auth := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}

func (h *Handler) handleStartReindex(w http.ResponseWriter, _ *http.Request) {
	// The job must outlive the request, so it does not run on the
	// request context.
	jobID, err := h.orchestrator.StartRebuild(context.Background())
	if err != nil {
		if errors.Is(err, rebuild.ErrRebuildInProgress) {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		h.logger.Error("failed to start rebuild", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to start rebuild")
		return
	}

	h.logger.Info("rebuild started by operator", "job_id", jobID)
	writeJSON(w, http.StatusAccepted, model.ReindexAccepted{JobID: jobID})
}

func (h *Handler) handleListReindex(w http.ResponseWriter, _ *http.Request) {
	jobs := h.orchestrator.ListJobs()
	resp := model.ReindexJobList{Jobs: make([]model.ReindexJob, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toReindexJob(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetReindex(w http.ResponseWriter, r *http.Request) {
	job, err := h.orchestrator.GetJob(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toReindexJob(*job))
}

func (h *Handler) handleCancelReindex(w http.ResponseWriter, r *http.Request) {
	err := h.orchestrator.CancelRebuild(r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, rebuild.ErrJobNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "job not found")
	case errors.Is(err, rebuild.ErrJobNotCancelable):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		h.logger.Error("failed to cancel rebuild", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to cancel rebuild")
	}
}

func toReindexJob(p rebuild.JobProgress) model.ReindexJob {
	return model.ReindexJob{
		ID:         p.ID,
		Alias:      p.Alias,
		Generation: p.Generation,
		Status:     string(p.Status),
		DocsTotal:  p.DocsTotal,
		DocsLoaded: p.DocsLoaded,
		DocsFailed: p.DocsFailed,
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
		Error:      p.Error,
	}
}
