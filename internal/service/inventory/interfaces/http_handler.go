// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/application"
	"marketbot/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

// ReserveRequest 是单品预占请求
type ReserveRequest struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// ReserveCartRequest 是购物车预占请求
type ReserveCartRequest struct {
	OrderID string        `json:"order_id"`
	Items   []domain.Item `json:"items"`
}

// OrderRequest 用于 confirm / release，release 时 reason 必填
type OrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// AvailabilityResponse 是 GET /inventory/available 的响应
type AvailabilityResponse struct {
	SKU       string `json:"sku"`
	Found     bool   `json:"found"`
	Available int    `json:"available"`
	Qty       int    `json:"qty"`
	Enough    bool   `json:"enough"`
}

// InventoryHandler 把库存引擎暴露为 HTTP JSON API
type InventoryHandler struct {
	service *application.Service
	tracer  trace.Tracer
}

func NewInventoryHandler(service *application.Service) *InventoryHandler {
	return &InventoryHandler{service: service, tracer: otel.Tracer(serviceName)}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /inventory/reserve", h.reserve)
	mux.HandleFunc("POST /inventory/reserve_cart", h.reserveCart)
	mux.HandleFunc("POST /inventory/confirm", h.orderOp("confirm", false, h.confirmOrder))
	mux.HandleFunc("POST /inventory/release", h.orderOp("release", true, h.service.ReleaseOrder))
	mux.HandleFunc("POST /inventory/confirm_single", h.orderOp("confirm_single", false, h.confirmSingle))
	mux.HandleFunc("POST /inventory/release_single", h.orderOp("release_single", true, h.service.ReleaseOnFailureOrRefund))
	mux.HandleFunc("POST /inventory/confirm_cart", h.orderOp("confirm_cart", false, h.confirmCart))
	mux.HandleFunc("POST /inventory/release_cart", h.orderOp("release_cart", true, h.service.ReleaseCartOnFailureOrRefund))
	mux.HandleFunc("GET /inventory/available", h.available)
}

func (h *InventoryHandler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return h.tracer.Start(ctx, "http."+name, trace.WithSpanKind(trace.SpanKindServer))
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "reserve")
	defer span.End()

	var req ReserveRequest
	if !decode(ctx, w, r, &req) {
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID), attribute.String("inventory.sku", req.SKU))
	res, err := h.service.ReserveForPayment(ctx, req.OrderID, req.SKU, req.Qty)
	writeResult(ctx, w, res, err)
}

func (h *InventoryHandler) reserveCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "reserve_cart")
	defer span.End()

	var req ReserveCartRequest
	if !decode(ctx, w, r, &req) {
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID), attribute.Int("cart.items", len(req.Items)))
	res, err := h.service.ReserveCartForPayment(ctx, req.OrderID, req.Items)
	writeResult(ctx, w, res, err)
}

type releaseFunc func(ctx context.Context, orderID, reason string) (domain.Result, error)

func (h *InventoryHandler) confirmOrder(ctx context.Context, orderID, _ string) (domain.Result, error) {
	return h.service.ConfirmOrder(ctx, orderID)
}

func (h *InventoryHandler) confirmSingle(ctx context.Context, orderID, _ string) (domain.Result, error) {
	return h.service.ConfirmPayment(ctx, orderID)
}

func (h *InventoryHandler) confirmCart(ctx context.Context, orderID, _ string) (domain.Result, error) {
	return h.service.ConfirmCartPayment(ctx, orderID)
}

// orderOp 生成只需要 order_id (和 reason) 的处理函数
func (h *InventoryHandler) orderOp(name string, needReason bool, fn releaseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.startSpan(r, name)
		defer span.End()

		var req OrderRequest
		if !decode(ctx, w, r, &req) {
			return
		}
		span.SetAttributes(attribute.String("order.id", req.OrderID))
		if needReason && req.Reason == "" {
			writeJSON(ctx, w, http.StatusBadRequest, domain.Reject(domain.KindInvalidRequest, "reason is required"))
			return
		}
		res, err := fn(ctx, req.OrderID, req.Reason)
		writeResult(ctx, w, res, err)
	}
}

func (h *InventoryHandler) available(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "available")
	defer span.End()

	sku := r.URL.Query().Get("sku")
	qty, _ := strconv.Atoi(r.URL.Query().Get("qty"))
	qty = domain.NormalizeQty(qty)

	available, found, err := h.service.GetAvailableStock(ctx, sku)
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("sku", sku).Msg("availability query failed")
		writeJSON(ctx, w, http.StatusInternalServerError, domain.Result{Reason: "internal error"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, AvailabilityResponse{
		SKU:       sku,
		Found:     found,
		Available: available,
		Qty:       qty,
		Enough:    found && available >= qty,
	})
}

func decode(ctx context.Context, w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, domain.Reject(domain.KindInvalidRequest, "malformed json body: "+err.Error()))
		return false
	}
	return true
}

func writeResult(ctx context.Context, w http.ResponseWriter, res domain.Result, err error) {
	if err != nil {
		// 基础设施错误的细节只记录在日志里
		writeJSON(ctx, w, http.StatusInternalServerError, domain.Result{Reason: "internal error"})
		return
	}
	if res.Kind == domain.KindLockTimeout {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(ctx, w, StatusFor(res), res)
}

// StatusFor 把业务结果映射为 HTTP 状态码
func StatusFor(res domain.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Kind {
	case domain.KindInvalidSKU:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindOrderMissing:
		return http.StatusNotFound
	case domain.KindLockTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusConflict
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to write response")
	}
}
