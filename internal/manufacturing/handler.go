package manufacturing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// Handler serves production order read endpoints. Orders are created
// exclusively through the wizard submission flow.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers manufacturing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.show)
	r.Get("/orders/{id}/challans", h.challans)
	r.Get("/stages/{id}/operations", h.operations)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filters := ListFilters{
		Status:   OrderStatus(r.URL.Query().Get("status")),
		Priority: r.URL.Query().Get("priority"),
		Search:   r.URL.Query().Get("search"),
		Limit:    limit,
		Offset:   offset,
	}
	orders, total, err := h.service.ListOrders(r.Context(), filters)
	if err != nil {
		h.logger.Error("list production orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      orders,
		"total":      total,
		"pagination": listPagination(limit, offset, total),
	})
}

// listPagination derives page metadata from the limit/offset the client
// sent, mirroring the service's default page size.
func listPagination(limit, offset, total int) shared.Pagination {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return shared.NewPagination(offset/limit+1, limit, total)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapDomainError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) challans(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	challans, err := h.service.ListChallans(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapDomainError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": challans})
}

func (h *Handler) operations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "stage id must be numeric")
		return
	}
	ops, err := h.service.ListOperations(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapDomainError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": ops})
}

// mapDomainError translates package sentinels into the platform ones the
// response writer understands.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.ErrNotFound
	case errors.Is(err, ErrValidation):
		return httpx.ErrValidation
	case errors.Is(err, ErrDuplicate):
		return httpx.ErrDuplicate
	default:
		return err
	}
}
