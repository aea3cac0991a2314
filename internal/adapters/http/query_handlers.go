package httpadapter

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

const (
	maxQueryChars = 1000
	maxTopK       = 20
)

type askRequest struct {
	Query           string                       `json:"query"`
	Locale          domain.Locale                `json:"locale,omitempty"`
	UseHybridSearch bool                         `json:"use_hybrid_search,omitempty"`
	Config          *domain.QueryConfigOverrides `json:"config,omitempty"`
}

func (req askRequest) validate() error {
	query := strings.TrimSpace(req.Query)
	switch {
	case query == "":
		return fmt.Errorf("query is required")
	case utf8.RuneCountInString(req.Query) > maxQueryChars:
		return fmt.Errorf("query must be at most %d characters", maxQueryChars)
	case req.Locale != "" && !req.Locale.Valid():
		return fmt.Errorf("locale must be %q or %q", domain.LocaleEnglish, domain.LocaleChinese)
	}
	if cfg := req.Config; cfg != nil {
		if cfg.TopK != nil && (*cfg.TopK < 1 || *cfg.TopK > maxTopK) {
			return fmt.Errorf("top_k must be between 1 and %d", maxTopK)
		}
		if cfg.SimilarityThreshold != nil && (*cfg.SimilarityThreshold < 0 || *cfg.SimilarityThreshold > 1) {
			return fmt.Errorf("similarity_threshold must be between 0 and 1")
		}
	}
	return nil
}

type askResponse struct {
	*domain.QueryResponse
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	method := domain.SearchMethodFor(req.UseHybridSearch)
	if err := req.validate(); err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "ask", err)
		rt.recordQueryError(method, err)
		writeError(w, r, err)
		return
	}

	resp, err := rt.deps.Query.Query(r.Context(), domain.QueryInput{
		Query:           req.Query,
		Locale:          req.Locale,
		UseHybridSearch: req.UseHybridSearch,
		Config:          req.Config,
	})
	if err != nil {
		rt.recordQueryError(method, err)
		writeError(w, r, err)
		return
	}

	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordQuery(resp, time.Since(started))
	}
	writeJSON(w, http.StatusOK, askResponse{
		QueryResponse: resp,
		RequestID:     w.Header().Get(requestIDHeader),
	})
}

func (rt *Router) recordQueryError(method domain.SearchMethod, err error) {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordQueryError(method, errorCode(err))
	}
}

type feedbackRequest struct {
	Query  string `json:"query"`
	Rating int    `json:"rating"`
}

func (rt *Router) feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	matched, err := rt.deps.Feedback.Feedback(r.Context(), req.Query, req.Rating)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": matched})
}
