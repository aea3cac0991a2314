package httpadapter

import (
	"net/http"
	"strings"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/usecase"
)

func (rt *Router) cacheMetrics(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	m, err := rt.deps.Cache.Metrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (rt *Router) resetCacheMetrics(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	if err := rt.deps.Cache.ResetMetrics(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) cacheInfo(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	info, err := rt.deps.Cache.Info(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) invalidateCachePattern(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	pattern := strings.TrimSpace(r.PathValue("pattern"))
	if pattern == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "invalidate cache", errEmptyPattern))
		return
	}
	n, err := rt.deps.Cache.InvalidatePattern(r.Context(), pattern)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pattern": pattern, "deleted": n})
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	n, err := rt.deps.Cache.Clear(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (rt *Router) runCacheMaintenance(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Cache == nil {
		writeUnavailable(w, "cache")
		return
	}
	report, err := rt.deps.Cache.RunMaintenance(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) thresholdStats(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Thresholds == nil {
		writeUnavailable(w, "threshold optimizer")
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Thresholds.Stats())
}

func (rt *Router) thresholdConfig(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Thresholds == nil {
		writeUnavailable(w, "threshold optimizer")
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Thresholds.Config())
}

// updateThresholdConfig applies a partial update: omitted fields keep their current value.
func (rt *Router) updateThresholdConfig(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Thresholds == nil {
		writeUnavailable(w, "threshold optimizer")
		return
	}
	cfg := rt.deps.Thresholds.Config()
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.deps.Thresholds.UpdateConfig(cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Thresholds.Config())
}

func (rt *Router) clearThresholdHistory(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Thresholds == nil {
		writeUnavailable(w, "threshold optimizer")
		return
	}
	rt.deps.Thresholds.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportThresholdHistory(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Thresholds == nil {
		writeUnavailable(w, "threshold optimizer")
		return
	}
	history := rt.deps.Thresholds.ExportHistory()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(history), "history": history})
}

func (rt *Router) enhancementConfig(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Enhancement == nil {
		writeUnavailable(w, "query enhancement")
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Enhancement.Config())
}

func (rt *Router) updateEnhancementConfig(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Enhancement == nil {
		writeUnavailable(w, "query enhancement")
		return
	}
	cfg := rt.deps.Enhancement.Config()
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.deps.Enhancement.UpdateConfig(cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Enhancement.Config())
}

// testEnhancement is a dry run: it enhances the query without retrieving or answering.
func (rt *Router) testEnhancement(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Enhancement == nil {
		writeUnavailable(w, "query enhancement")
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "test enhancement", errEmptyQuery))
		return
	}

	should := rt.deps.Enhancement.ShouldEnhance(query)
	out := map[string]any{"query": query, "should_enhance": should}
	if should {
		enh := rt.deps.Enhancement.Enhance(r.Context(), query)
		out["enhancement"] = enh
		out["search_variations"] = usecase.GenerateSearchVariations(enh)
	}
	writeJSON(w, http.StatusOK, out)
}
