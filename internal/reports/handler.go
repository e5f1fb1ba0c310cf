package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kasirpos/kasirpos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for reporting.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.daily)
	r.Get("/monthly", h.monthly)
	r.Get("/top-products", h.topProducts)
	r.Get("/low-stock", h.lowStock)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Daily(r.Context())
	if err != nil {
		h.logger.Error("daily report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Monthly(r.Context())
	if err != nil {
		h.logger.Error("monthly report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	products, err := h.service.TopProducts(r.Context(), limit)
	if err != nil {
		h.logger.Error("top products report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := DefaultLowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			threshold = n
		}
	}
	products, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		h.logger.Error("low stock report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}
