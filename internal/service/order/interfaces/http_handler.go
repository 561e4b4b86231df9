// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/service/order/application"
	"demoshop/internal/service/order/domain"
	"demoshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type orderDTO struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	PaymentMethod string         `json:"paymentMethod"`
	State         string         `json:"state"`
	TotalPrice    string         `json:"totalPrice"`
	CreatedAt     time.Time      `json:"createdAt"`
	Lines         []orderLineDTO `json:"lines,omitempty"`
}

type orderLineDTO struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type availabilityItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderHTTPHandler 暴露订单的读接口和运维清理接口。
// 下单本身只走消息通道，这里没有创建入口。
// 可售量展示走带缓存的只读口，和下单用的库存端口是两条路。
type OrderHTTPHandler struct {
	svc       *application.OrderApplicationService
	inventory port.InventoryReader
	tracer    trace.Tracer
}

func NewOrderHTTPHandler(svc *application.OrderApplicationService, inventory port.InventoryReader, tracer trace.Tracer) *OrderHTTPHandler {
	return &OrderHTTPHandler{svc: svc, inventory: inventory, tracer: tracer}
}

func (h *OrderHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/orders", h.collection)
	mux.HandleFunc("/orders/get", h.getByID)
	mux.HandleFunc("/orders/details", h.getDetails)
	mux.HandleFunc("/orders/availability", h.availability)
}

func (h *OrderHTTPHandler) startSpan(r *http.Request, name string) (*http.Request, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
	return r.WithContext(ctx), span
}

func (h *OrderHTTPHandler) collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *OrderHTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "order.List")
	defer span.End()

	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *OrderHTTPHandler) getByID(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "order.Get")
	defer span.End()

	order, err := h.svc.GetOrder(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *OrderHTTPHandler) getDetails(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "order.GetDetails")
	defer span.End()

	lines, err := h.svc.GetOrderLines(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]orderLineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, toOrderLineDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// delete 带 id 参数时删单个订单，否则整表清空（运维入口）。
func (h *OrderHTTPHandler) delete(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "order.Delete")
	defer span.End()

	if id := r.URL.Query().Get("id"); id != "" {
		if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.svc.DeleteAllOrders(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// availability 展示商品的可售量快照，供下单页渲染。
// 读的是窗口缓存，fresh=true 强制丢弃缓存回源。
func (h *OrderHTTPHandler) availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r, span := h.startSpan(r, "order.Availability")
	defer span.End()

	productIDs := r.URL.Query()["productId"]
	if len(productIDs) == 0 {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("fresh") == "true" {
		h.inventory.Invalidate()
	}

	quantities := h.inventory.GetQuantities(r.Context(), productIDs)
	items := make([]availabilityItem, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, availabilityItem{ProductID: id, Quantity: quantities[id]})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *OrderHTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.InvalidArgument:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func toOrderDTO(o *domain.Order) orderDTO {
	dto := orderDTO{
		ID:            o.ID,
		UserID:        o.UserID,
		PaymentMethod: o.PaymentMethod,
		State:         string(o.State),
		TotalPrice:    o.TotalPrice.StringFixed(2),
		CreatedAt:     o.CreatedAt,
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, toOrderLineDTO(l))
	}
	return dto
}

func toOrderLineDTO(l *domain.Line) orderLineDTO {
	return orderLineDTO{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice.StringFixed(2),
		Subtotal:  l.Subtotal().StringFixed(2),
	}
}
