package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grocerystock/internal/auth"
	"grocerystock/internal/domain"
	"grocerystock/internal/excel"
	"grocerystock/internal/logger"
	"grocerystock/internal/service"
	"grocerystock/internal/stock"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockService is the slice of *service.Service the HTTP surface calls.
type StockService interface {
	CreateProduct(ctx context.Context, actor domain.Actor, p domain.Product) (service.ProductView, error)
	UpdateProduct(ctx context.Context, actor domain.Actor, id int64, patch service.ProductPatch) (service.ProductView, error)
	DeleteProduct(ctx context.Context, actor domain.Actor, id int64) error
	GetProduct(ctx context.Context, actor domain.Actor, id int64) (service.ProductView, error)
	ImportCatalog(ctx context.Context, tenantID int64, products []domain.Product) (int, int, error)
	Restock(ctx context.Context, actor domain.Actor, id int64, quantity int, costPrice *decimal.Decimal) (service.ProductView, error)
	Reorder(ctx context.Context, actor domain.Actor, id int64) (service.ReorderResult, error)
	BulkReorder(ctx context.Context, actor domain.Actor, ids []int64) (service.BulkReorderResult, error)

	Analytics(ctx context.Context, actor domain.Actor) (domain.StockAnalytics, error)
	ReorderCandidates(ctx context.Context, actor domain.Actor) ([]service.ReorderCandidate, error)

	CreateOrder(ctx context.Context, actor domain.Actor, in service.OrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, id int64) (domain.Order, error)
	UpdateOrder(ctx context.Context, actor domain.Actor, id int64, in service.OrderUpdate) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor domain.Actor, id int64, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, actor domain.Actor, id int64) (domain.Order, error)
	RecordPayment(ctx context.Context, actor domain.Actor, id int64, status domain.PaymentStatus) (domain.Order, error)

	LowStockSweep(ctx context.Context) (service.SweepReport, error)
	AutoReorderSweep(ctx context.Context) (service.SweepReport, error)
	SupplierRenewalSweep(ctx context.Context) (service.SweepReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc StockService
	db  Pinger
	log *zap.Logger
}

func NewHandler(svc StockService, db Pinger, log *zap.Logger) *Handler {
	return &Handler{svc: svc, db: db, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger(r).Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	product, err := h.svc.GetProduct(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req domain.Product
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product created successfully", "product": created})
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req service.ProductPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.UpdateProduct(r.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product updated successfully", "product": updated})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product deleted successfully"})
}

func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	rows, err := excel.ParseCatalogRows(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, updated, err := h.svc.ImportCatalog(r.Context(), actor.TenantID, rows)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":  header.Filename,
		"total_rows": len(rows),
		"created":    created,
		"updated":    updated,
	})
}

type restockRequest struct {
	Quantity  int              `json:"quantity"`
	CostPrice *decimal.Decimal `json:"cost_price"`
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.svc.Restock(r.Context(), actor, id, req.Quantity, req.CostPrice)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product restocked successfully", "product": product})
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Reorder(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product reordered and restocked successfully",
		"product": result.Product,
		"order":   result.Order,
	})
}

type bulkReorderRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

func (h *Handler) BulkReorder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req bulkReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.BulkReorder(r.Context(), actor, req.ProductIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d products reordered successfully", len(result.Results)),
		"results": result.Results,
		"errors":  result.Errors,
	})
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	analytics, err := h.svc.Analytics(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) ReorderCandidates(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ReorderCandidates(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.OrderInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":           "Order created successfully",
		"order":             order,
		"requiresPayment":   true,
		"redirectToPayment": true,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req service.OrderUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.svc.UpdateOrder(r.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order updated successfully", "order": order})
}

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.svc.UpdateOrderStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order status updated successfully", "order": order})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.CancelOrder(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order cancelled successfully"})
}

type paymentRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.svc.RecordPayment(r.Context(), actor, id, req.PaymentStatus)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Payment status updated successfully", "order": order})
}

func (h *Handler) RunLowStockCheck(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, "Low stock check completed", h.svc.LowStockSweep)
}

func (h *Handler) RunAutoRenew(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, "Auto-renewal completed", h.svc.SupplierRenewalSweep)
}

func (h *Handler) RunAutoReorder(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, "Auto-reorder check completed", h.svc.AutoReorderSweep)
}

func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request, message string, run func(context.Context) (service.SweepReport, error)) {
	report, err := run(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "report": report})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
	}
	return actor, ok
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Actor, int64, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return domain.Actor{}, 0, false
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return logger.FromContext(r.Context(), h.log)
}

// writeServiceError maps domain failures onto status codes. Capacity and
// order-size rejections carry their structured details.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		capErr  *stock.CapacityError
		sizeErr *domain.OrderSizeError
		dupErr  *domain.DuplicateError
	)
	switch {
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusBadRequest, capErr.Payload())
	case errors.As(err, &sizeErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":           sizeErr.Error(),
			"productName":       sizeErr.ProductName,
			"requestedQuantity": sizeErr.RequestedQuantity,
			"maxOrderQuantity":  sizeErr.MaxOrderQuantity,
			"error":             domain.ErrOrderSizeLimit.Error(),
		})
	case errors.As(err, &dupErr):
		writeError(w, http.StatusConflict, dupErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrOrderLocked),
		errors.Is(err, domain.ErrPaymentLocked),
		errors.Is(err, domain.ErrInactiveProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger(r).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
