package aggregate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/optimistic"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/httpx"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// IdempotencyHeader carries the client's key for a retriable create.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves one aggregate collection as JSON.
type Handler[A optimistic.Entity[A], D any] struct {
	logger      *slog.Logger
	service     *Service[A, D]
	idempotency *shared.IdempotencyStore
}

// NewHandler builds a Handler.
func NewHandler[A optimistic.Entity[A], D any](logger *slog.Logger, service *Service[A, D]) *Handler[A, D] {
	return &Handler[A, D]{logger: logger, service: service}
}

// WithIdempotency makes creates honour the Idempotency-Key header.
func (h *Handler[A, D]) WithIdempotency(store *shared.IdempotencyStore) *Handler[A, D] {
	h.idempotency = store
	return h
}

// MountRoutes registers the collection routes on r.
func (h *Handler[A, D]) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/items", h.addItem)
	r.Delete("/{id}/items/{itemID}", h.removeItem)
	r.Post("/{id}/payments", h.addPayment)
	r.Delete("/{id}/payments/{paymentID}", h.removePayment)
}

func (h *Handler[A, D]) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	var coded httpx.Coded
	if errors.As(err, &coded) {
		status = httpx.StatusFor(coded.ErrorCode())
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("aggregate request failed",
			slog.String("collection", h.service.kind.Name),
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler[A, D]) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	if p, ok := shared.PaginationFromQuery(r.URL.Query(), len(list)); ok {
		start, end := p.Bounds()
		list = list[start:end]
		w.Header().Set("X-Total-Count", strconv.Itoa(p.Total))
		w.Header().Set("X-Total-Pages", strconv.Itoa(p.TotalPages))
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler[A, D]) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler[A, D]) create(w http.ResponseWriter, r *http.Request) {
	var draft D
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx := r.Context()
	module := h.service.kind.Name
	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		prior, err := h.idempotency.Reserve(ctx, module, key)
		switch {
		case errors.Is(err, shared.ErrIdempotencyConflict):
			httpx.RespondError(w, backend.Duplicate("a request with this idempotency key is in progress"))
			return
		case err != nil:
			// Redis trouble must not block creates.
			h.logger.Warn("idempotency reserve failed", slog.Any("error", err))
			key = ""
		case prior != "":
			a, err := h.service.Get(ctx, prior)
			if err != nil {
				h.fail(w, r, "create", err)
				return
			}
			httpx.JSON(w, http.StatusOK, a)
			return
		}
	}
	a, err := h.service.Create(ctx, draft)
	if err != nil {
		if derr := h.idempotency.Delete(ctx, module, key); derr != nil {
			h.logger.Warn("idempotency release failed", slog.Any("error", derr))
		}
		h.fail(w, r, "create", err)
		return
	}
	if err := h.idempotency.Complete(ctx, module, key, a.EntityID()); err != nil {
		h.logger.Warn("idempotency complete failed", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler[A, D]) update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler[A, D]) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler[A, D]) addItem(w http.ResponseWriter, r *http.Request) {
	var draft ItemDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.AddItem(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		h.fail(w, r, "add_item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler[A, D]) removeItem(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, "remove_item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler[A, D]) addPayment(w http.ResponseWriter, r *http.Request) {
	var draft PaymentDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.AddPayment(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		h.fail(w, r, "add_payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler[A, D]) removePayment(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.RemovePayment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "paymentID"))
	if err != nil {
		h.fail(w, r, "remove_payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}
