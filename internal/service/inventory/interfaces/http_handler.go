// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/inventory/application"
	"demoshop/internal/service/inventory/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 数量 RPC 的应答信封。业务失败表达为 success=false，
// 传输失败走 HTTP 状态码，两个通道不混用。
type quantityResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

type mutateQuantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type mutateQuantityResponse struct {
	ProductID   string `json:"productId"`
	NewQuantity int    `json:"newQuantity"`
	Success     bool   `json:"success"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message"`
}

type quantitiesRequest struct {
	ProductIDs []string `json:"productIds"`
}

type productQuantity struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantitiesResponse struct {
	Items   []productQuantity `json:"items"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
}

type recordDTO struct {
	ID                string `json:"id"`
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	ReservedQuantity  int    `json:"reservedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
}

type createRecordRequest struct {
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
	ReservedQuantity int    `json:"reservedQuantity"`
}

type updateRecordRequest struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
	ReservedQuantity int    `json:"reservedQuantity"`
}

// InventoryHTTPHandler 是台账的 HTTP 入口：数量 RPC 加普通 CRUD。
type InventoryHTTPHandler struct {
	svc    *application.Service
	tracer trace.Tracer
}

func NewInventoryHTTPHandler(svc *application.Service, tracer trace.Tracer) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{svc: svc, tracer: tracer}
}

// Register 挂载全部路由。
func (h *InventoryHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/inventory/quantity", h.getQuantity)
	mux.HandleFunc("/inventory/quantity/update", h.mutateEndpoint("inventory.UpdateQuantity", h.svc.SetQuantity))
	mux.HandleFunc("/inventory/quantity/consume", h.mutateEndpoint("inventory.Consume", h.svc.Consume))
	mux.HandleFunc("/inventory/quantity/reserve", h.mutateEndpoint("inventory.Reserve", h.svc.Reserve))
	mux.HandleFunc("/inventory/quantity/release", h.mutateEndpoint("inventory.Release", h.svc.Release))
	mux.HandleFunc("/inventory/quantities", h.getQuantities)

	mux.HandleFunc("/inventory", h.collection)
	mux.HandleFunc("/inventory/get", h.getByID)
	mux.HandleFunc("/inventory/by-product", h.getByProductID)
}

func (h *InventoryHTTPHandler) startSpan(r *http.Request, name string) (*http.Request, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
	return r.WithContext(ctx), span
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// getQuantity 返回可售量，和台账的对外口径保持一致。
func (h *InventoryHTTPHandler) getQuantity(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.GetQuantity")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		writeJSON(w, http.StatusOK, quantityResponse{Success: false, Code: apperr.InvalidArgument.String(), Message: "productId is required"})
		return
	}

	qty, err := h.svc.GetQuantity(r.Context(), productID)
	if err != nil {
		writeJSON(w, http.StatusOK, quantityResponse{
			ProductID: productID,
			Success:   false,
			Code:      apperr.KindOf(err).String(),
			Message:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, quantityResponse{
		ProductID: productID,
		Quantity:  qty.Available,
		Success:   true,
		Message:   "Success",
	})
}

// mutateEndpoint 生成一个数量修改端点，update/consume/reserve/release 共用骨架。
func (h *InventoryHTTPHandler) mutateEndpoint(spanName string, op func(ctx context.Context, productID string, amount int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r, span := h.startSpan(r, spanName)
		defer span.End()

		var req mutateQuantityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := op(r.Context(), req.ProductID, req.Quantity); err != nil {
			logger.Ctx(r.Context()).Warn().
				Str("product_id", req.ProductID).
				Int("quantity", req.Quantity).
				Str("op", spanName).
				Err(err).
				Msg("inventory mutation rejected")
			writeJSON(w, http.StatusOK, mutateQuantityResponse{
				ProductID: req.ProductID,
				Success:   false,
				Code:      apperr.KindOf(err).String(),
				Message:   err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, mutateQuantityResponse{
			ProductID:   req.ProductID,
			NewQuantity: req.Quantity,
			Success:     true,
			Message:     "Success",
		})
	}
}

// getQuantities 批量查询。不存在的 id 不出现在 items 里，
// 由调用方按零可售处理。
func (h *InventoryHTTPHandler) getQuantities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r, span := h.startSpan(r, "inventory.GetQuantities")
	defer span.End()

	var req quantitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.ProductIDs) == 0 {
		writeJSON(w, http.StatusOK, quantitiesResponse{Success: false, Message: "no product IDs provided"})
		return
	}

	quantities, err := h.svc.GetQuantities(r.Context(), req.ProductIDs)
	if err != nil {
		writeJSON(w, http.StatusOK, quantitiesResponse{Success: false, Message: err.Error()})
		return
	}

	resp := quantitiesResponse{Success: true, Message: "Success", Items: make([]productQuantity, 0, len(quantities))}
	// 保持请求顺序，方便调用方对账
	for _, id := range req.ProductIDs {
		if available, ok := quantities[id]; ok {
			resp.Items = append(resp.Items, productQuantity{ProductID: id, Quantity: available})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- CRUD ----

func (h *InventoryHTTPHandler) collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *InventoryHTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.List")
	defer span.End()

	records, err := h.svc.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *InventoryHTTPHandler) getByID(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.GetByID")
	defer span.End()

	record, err := h.svc.GetByID(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeCRUDError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

func (h *InventoryHTTPHandler) getByProductID(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.GetByProductID")
	defer span.End()

	record, err := h.svc.GetByProductID(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		h.writeCRUDError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

func (h *InventoryHTTPHandler) create(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.Create")
	defer span.End()

	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}

	record, err := h.svc.Create(r.Context(), req.ProductID, req.Quantity, req.ReservedQuantity)
	if err != nil {
		h.writeCRUDError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(record))
}

func (h *InventoryHTTPHandler) update(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.Update")
	defer span.End()

	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record := &domain.Record{
		ID:               req.ID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		ReservedQuantity: req.ReservedQuantity,
	}
	if err := h.svc.Update(r.Context(), record); err != nil {
		h.writeCRUDError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

func (h *InventoryHTTPHandler) delete(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "inventory.Delete")
	defer span.End()

	if err := h.svc.Delete(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.writeCRUDError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHTTPHandler) writeCRUDError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.InvalidArgument, apperr.InvalidState:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperr.Conflict:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toRecordDTO(r *domain.Record) recordDTO {
	return recordDTO{
		ID:                r.ID,
		ProductID:         r.ProductID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		AvailableQuantity: r.Available(),
	}
}
