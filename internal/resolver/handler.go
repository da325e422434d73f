package resolver

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/httpx"
)

// Handler exposes lookups over HTTP. Each (entity, field) pair gets its own
// Search so responses for one input never overwrite another.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver

	mu       sync.Mutex
	searches map[string]*Search
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, searches: make(map[string]*Search)}
}

// MountRoutes registers lookup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/lookup/{entity}", func(r chi.Router) {
		r.Get("/", h.handleSearch)
		r.Get("/recent", h.handleRecent)
		r.Post("/resolve", h.handleResolve)
	})
}

type searchResponse struct {
	Results []Option `json:"results"`
	Stale   bool     `json:"stale"`
}

type resolveRequest struct {
	Label    string `json:"label"`
	ParentID string `json:"parent_id"`
}

type resolveResponse struct {
	ID string `json:"id"`
}

func entityParam(r *http.Request) (backend.EntityType, error) {
	entity := backend.EntityType(chi.URLParam(r, "entity"))
	if !entity.Valid() {
		return "", fmt.Errorf("%w: unknown entity %q", httpx.ErrBadRequest, entity)
	}
	return entity, nil
}

func (h *Handler) search(entity backend.EntityType, field string) *Search {
	key := string(entity) + "|" + field
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.searches[key]
	if !ok {
		s = h.resolver.NewSearch(entity)
		h.searches[key] = s
	}
	return s
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	s := h.search(entity, q.Get("field"))
	s.SetParent(q.Get("parent"))

	results, applied, err := s.Query(r.Context(), q.Get("q"))
	if err != nil {
		h.logger.Error("lookup search failed", slog.String("entity", string(entity)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !applied {
		results = s.Results()
	}
	httpx.JSON(w, http.StatusOK, searchResponse{Results: results, Stale: !applied})
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.resolver.Recent(r.Context(), entity)
	if err != nil {
		h.logger.Error("recent list failed", slog.String("entity", string(entity)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.resolver.Resolve(r.Context(), Reference{Entity: entity, Label: req.Label, ParentID: req.ParentID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{ID: id})
}
