package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasirpos/kasirpos/internal/platform/httpx"
	"github.com/kasirpos/kasirpos/internal/shared"
)

// Handler wires HTTP endpoints for inventory log management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.adjust)
	r.Put("/{id}", h.revise)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/correct", h.correct)
	r.Get("/reconcile/{productID}", h.reconcile)
}

type adjustmentRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	ChangeType     string `json:"change_type" validate:"required"`
	QuantityChange int    `json:"quantity_change" validate:"required"`
	Remarks        string `json:"remarks"`
}

type reviseRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	ChangeType     string `json:"change_type" validate:"required"`
	QuantityChange int    `json:"quantity_change" validate:"required"`
	Remarks        string `json:"remarks"`
}

type correctRequest struct {
	QuantityChange int    `json:"quantity_change" validate:"required"`
	Remarks        string `json:"remarks"`
}

type entryResponse struct {
	ID             int64  `json:"log_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	ChangeType     string `json:"change_type"`
	QuantityChange int    `json:"quantity_change"`
	Remarks        string `json:"remarks"`
	CreatedAt      string `json:"date_time"`
	CurrentStock   int    `json:"current_stock"`
}

func toEntryResponse(e Entry, productName string) entryResponse {
	return entryResponse{
		ID:             e.ID,
		ProductID:      e.ProductID,
		ProductName:    productName,
		ChangeType:     string(e.ChangeType),
		QuantityChange: e.QuantityChange,
		Remarks:        e.Remarks,
		CreatedAt:      e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		CurrentStock:   e.CurrentStock,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if v := r.URL.Query().Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id must be an integer")
			return
		}
		filter.ProductID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list inventory logs", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e.Entry, e.ProductName)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.ApplyAdjustment(r.Context(), AdjustmentInput{
		ProductID:      req.ProductID,
		ChangeType:     ChangeType(req.ChangeType),
		QuantityChange: req.QuantityChange,
		Remarks:        req.Remarks,
		ActorID:        actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry, ""))
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid log id")
		return
	}
	var req reviseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.ReviseEntry(r.Context(), ReviseInput{
		EntryID:        entryID,
		ProductID:      req.ProductID,
		ChangeType:     ChangeType(req.ChangeType),
		QuantityChange: req.QuantityChange,
		Remarks:        req.Remarks,
		ActorID:        actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry, ""))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid log id")
		return
	}
	if err := h.service.DeleteEntry(r.Context(), entryID, actorID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) correct(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid log id")
		return
	}
	var req correctRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reversal, replacement, err := h.service.CorrectEntry(r.Context(), entryID, req.QuantityChange, req.Remarks, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"reversal":    toEntryResponse(reversal, ""),
		"replacement": toEntryResponse(replacement, ""),
	})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	result, err := h.service.Reconcile(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id": result.ProductID,
		"stored":     result.Stored,
		"replayed":   result.Replayed,
		"drift":      result.Drift,
		"consistent": result.Consistent(),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
