package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/inventory/application"
	"atlas/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

// InventoryHandler 封装了库存服务的 HTTP 处理器。
// 子系统本身是同步调用契约，这里只是把它挂到进程的 RPC 面上。
type InventoryHandler struct {
	service *application.ReservationService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例。
func NewInventoryHandler(service *application.ReservationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /reserve", h.withTrace("inventory.http.Reserve", h.reserveHandler))
	mux.HandleFunc("POST /confirm", h.withTrace("inventory.http.Confirm", h.confirmHandler))
	mux.HandleFunc("POST /release", h.withTrace("inventory.http.Release", h.releaseHandler))
	mux.HandleFunc("POST /restock", h.withTrace("inventory.http.Restock", h.restockHandler))
	mux.HandleFunc("POST /stock", h.withTrace("inventory.http.CreateStock", h.createStockHandler))
	mux.HandleFunc("GET /stock", h.withTrace("inventory.http.GetStock", h.getStockHandler))
	mux.HandleFunc("GET /available", h.withTrace("inventory.http.GetAvailable", h.getAvailableHandler))
}

// withTrace 提取上游的 trace 上下文并为每个请求开一个 span。
func (h *InventoryHandler) withTrace(spanName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer(serviceName)
		ctx, span := tracer.Start(ctx, spanName)
		defer span.End()
		next(w, r.WithContext(ctx))
	}
}

func (h *InventoryHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	var req application.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrInvalidRequest, err.Error()))
		return
	}

	resp, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type reservationIDRequest struct {
	ReservationID string `json:"reservationId"`
}

func (h *InventoryHandler) confirmHandler(w http.ResponseWriter, r *http.Request) {
	var req reservationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		writeError(w, r, domain.ErrInvalidRequest)
		return
	}
	if err := h.service.Confirm(r.Context(), req.ReservationID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateConfirmed)})
}

func (h *InventoryHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	var req reservationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		writeError(w, r, domain.ErrInvalidRequest)
		return
	}
	if err := h.service.Release(r.Context(), req.ReservationID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateReleased)})
}

type restockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *InventoryHandler) restockHandler(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest)
		return
	}
	if err := h.service.Restock(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) createStockHandler(w http.ResponseWriter, r *http.Request) {
	var req application.CreateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest)
		return
	}
	if err := h.service.CreateStock(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *InventoryHandler) getStockHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetStock(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) getAvailableHandler(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.GetAvailable(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"available": available})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError 把领域错误翻译成 HTTP 状态码，并在响应里带上错误种类，
// 让订单工作流能区分 “可以重试” 和 “告诉顾客已售罄”。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrOutOfStock):
		status, kind = http.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrLockTimeout):
		status, kind = http.StatusServiceUnavailable, "lock_timeout"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		status, kind = http.StatusServiceUnavailable, "concurrency_conflict"
	case errors.Is(err, domain.ErrReservationNotFound), errors.Is(err, domain.ErrStockNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		status, kind = http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, domain.ErrStockAlreadyExists):
		status, kind = http.StatusConflict, "already_exists"
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	writeJSON(w, status, map[string]string{"error": kind, "message": err.Error()})
}
