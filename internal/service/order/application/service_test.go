package application

import (
	"context"
	"testing"
	"time"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const testUserID = "6f9e2c1a-8d4b-4f3e-9a7c-1b2d3e4f5a6b"

// ---- fakes ----

type fakeOrderRepo struct {
	headers map[string]*domain.Order // orderID -> header
	lines   map[string]*domain.Line  // lineID -> line

	failCreateHeader error
	failAddLineFor   string // 写到这个 productID 时失败
	failAddLineWith  error
	failUpdateTotals error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{headers: make(map[string]*domain.Order), lines: make(map[string]*domain.Line)}
}

func (f *fakeOrderRepo) CreateHeader(_ context.Context, order *domain.Order) error {
	if f.failCreateHeader != nil {
		return f.failCreateHeader
	}
	copied := *order
	copied.Lines = nil
	f.headers[order.ID] = &copied
	return nil
}

func (f *fakeOrderRepo) AddLine(_ context.Context, line *domain.Line) error {
	if f.failAddLineFor != "" && line.ProductID == f.failAddLineFor {
		return f.failAddLineWith
	}
	copied := *line
	f.lines[line.ID] = &copied
	return nil
}

func (f *fakeOrderRepo) UpdateTotals(_ context.Context, order *domain.Order) error {
	if f.failUpdateTotals != nil {
		return f.failUpdateTotals
	}
	stored, ok := f.headers[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.State = order.State
	stored.TotalPrice = order.TotalPrice
	return nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	if o, ok := f.headers[id]; ok {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) FindByEventKey(_ context.Context, eventKey string) (*domain.Order, error) {
	for _, o := range f.headers {
		if o.EventKey == eventKey {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) FindLinesByOrderID(_ context.Context, orderID string) ([]*domain.Line, error) {
	var out []*domain.Line
	for _, l := range f.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) List(context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.headers {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrderRepo) DeleteLine(_ context.Context, lineID string) error {
	delete(f.lines, lineID)
	return nil
}

func (f *fakeOrderRepo) DeleteHeader(_ context.Context, orderID string) error {
	delete(f.headers, orderID)
	return nil
}

func (f *fakeOrderRepo) DeleteAll(context.Context) error {
	f.headers = make(map[string]*domain.Order)
	f.lines = make(map[string]*domain.Line)
	return nil
}

// fakeInventory 把"报告的可售量"和"真实扣减"分开，
// 用来模拟校验通过之后库存被并发抢走的场景。
type fakeInventory struct {
	reported map[string]int
	stock    map[string]int

	consumeErrFor  string
	consumeErrWith error
	updateCalls    int
}

func newFakeInventory(stock map[string]int) *fakeInventory {
	reported := make(map[string]int, len(stock))
	for k, v := range stock {
		reported[k] = v
	}
	return &fakeInventory{reported: reported, stock: stock}
}

func (f *fakeInventory) GetQuantity(_ context.Context, productID string) int {
	return f.reported[productID]
}

func (f *fakeInventory) GetQuantities(_ context.Context, productIDs []string) map[string]int {
	out := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = f.reported[id]
	}
	return out
}

func (f *fakeInventory) UpdateQuantity(_ context.Context, productID string, quantity int) bool {
	f.updateCalls++
	f.stock[productID] = quantity
	return true
}

func (f *fakeInventory) Consume(_ context.Context, productID string, amount int) error {
	if f.consumeErrFor == productID && f.consumeErrWith != nil {
		return f.consumeErrWith
	}
	if f.stock[productID] < amount {
		return apperr.Newf(apperr.InsufficientStock, "product %s sold out", productID)
	}
	f.stock[productID] -= amount
	return nil
}

type fakeGuard struct {
	held       map[string]bool
	denyAll    bool
	acquireErr error
}

func newFakeGuard() *fakeGuard { return &fakeGuard{held: make(map[string]bool)} }

func (g *fakeGuard) Acquire(_ context.Context, key string) (bool, error) {
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	if g.denyAll || g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.held, key)
	return nil
}

func newTestService(repo *fakeOrderRepo, inventory *fakeInventory, guard *fakeGuard) *OrderApplicationService {
	return NewOrderApplicationService(
		repo, inventory, guard,
		5*time.Second, "CashOnDelivery",
		noop.NewTracerProvider().Tracer("test"),
	)
}

func checkoutEvent() *domain.CheckoutEvent {
	return &domain.CheckoutEvent{
		EventID: "evt-1",
		UserID:  testUserID,
		Items: []domain.CheckoutEventItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromFloat(19.99)},
			{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromFloat(5.50)},
		},
	}
}

// ---- scenarios ----

func TestHandleCheckoutEvent_Success(t *testing.T) {
	repo := newFakeOrderRepo()
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	svc := newTestService(repo, inventory, newFakeGuard())

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.NoError(t, err)

	require.Len(t, repo.headers, 1)
	var order *domain.Order
	for _, o := range repo.headers {
		order = o
	}
	assert.Equal(t, domain.StateCompleted, order.State)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(45.48)))
	assert.Len(t, repo.lines, 2)
	assert.Equal(t, 8, inventory.stock["p1"])
	assert.Equal(t, 4, inventory.stock["p2"])
}

func TestHandleCheckoutEvent_InsufficientStockUpfront(t *testing.T) {
	repo := newFakeOrderRepo()
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 0})
	svc := newTestService(repo, inventory, newFakeGuard())

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")

	// 业务性失败：消息可提交，库里不留任何痕迹
	require.NoError(t, err)
	assert.Empty(t, repo.headers)
	assert.Empty(t, repo.lines)
	assert.Equal(t, 10, inventory.stock["p1"], "validation failure must not consume stock")
}

func TestHandleCheckoutEvent_SucceedsAfterInventoryRecovers(t *testing.T) {
	repo := newFakeOrderRepo()
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	svc := newTestService(repo, inventory, newFakeGuard())

	// 库存服务故障期间读口降级为全 0，这单被业务性拒绝
	inventory.reported = map[string]int{"p1": 0, "p2": 0}
	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.NoError(t, err)
	assert.Empty(t, repo.headers)

	// 故障恢复后下一单必须看到真实库存，不能被故障期的零值拖累
	inventory.reported = map[string]int{"p1": 10, "p2": 5}
	second := checkoutEvent()
	second.EventID = "evt-2"
	err = svc.HandleCheckoutEvent(context.Background(), second, "evt-2")
	require.NoError(t, err)
	require.Len(t, repo.headers, 1)
	assert.Equal(t, 8, inventory.stock["p1"])
}

func TestHandleCheckoutEvent_MidwayFailureCompensates(t *testing.T) {
	repo := newFakeOrderRepo()
	// 校验时两个商品都报告有货，但 p2 在扣减时被并发抢走
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	inventory.consumeErrFor = "p2"
	inventory.consumeErrWith = apperr.New(apperr.InsufficientStock, "p2 sold out concurrently")
	guard := newFakeGuard()
	svc := newTestService(repo, inventory, guard)

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.NoError(t, err, "business failure after compensation should ack")

	// 补偿删掉了订单头和已写入的明细
	assert.Empty(t, repo.headers)
	assert.Empty(t, repo.lines)

	// p1 已扣掉的 2 个不会被回补，这是已知的对账缺口
	assert.Equal(t, 8, inventory.stock["p1"])
	assert.Equal(t, 0, inventory.updateCalls, "compensation must not restock via UpdateQuantity")

	// 幂等键已释放，后续人工重放不会被挡掉
	assert.Empty(t, guard.held)
}

func TestHandleCheckoutEvent_DuplicateEventKey(t *testing.T) {
	repo := newFakeOrderRepo()
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	svc := newTestService(repo, inventory, newFakeGuard())

	require.NoError(t, svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1"))
	require.NoError(t, svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1"))

	assert.Len(t, repo.headers, 1, "duplicate event must not create a second order")
	assert.Len(t, repo.lines, 2)
	assert.Equal(t, 8, inventory.stock["p1"], "duplicate event must not consume stock twice")
}

func TestHandleCheckoutEvent_GuardHeldByPeer(t *testing.T) {
	repo := newFakeOrderRepo()
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	guard := newFakeGuard()
	guard.denyAll = true
	svc := newTestService(repo, inventory, guard)

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.NoError(t, err)
	assert.Empty(t, repo.headers)
}

func TestHandleCheckoutEvent_PoisonEvent(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newTestService(repo, newFakeInventory(map[string]int{}), newFakeGuard())

	event := checkoutEvent()
	event.UserID = "not-a-uuid"

	err := svc.HandleCheckoutEvent(context.Background(), event, "evt-1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))
	assert.False(t, apperr.IsTransient(err))
	assert.Empty(t, repo.headers)
}

func TestHandleCheckoutEvent_TransientFailureReturnsError(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.failCreateHeader = apperr.New(apperr.Unavailable, "db connection lost")
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	guard := newFakeGuard()
	svc := newTestService(repo, inventory, guard)

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err), "db failures must surface as retryable")
	assert.Empty(t, guard.held, "guard must be released so the retry can proceed")
}

func TestHandleCheckoutEvent_LineInsertFailureCompensates(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.failAddLineFor = "p2"
	repo.failAddLineWith = apperr.New(apperr.Unavailable, "insert timed out")
	inventory := newFakeInventory(map[string]int{"p1": 10, "p2": 5})
	svc := newTestService(repo, inventory, newFakeGuard())

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent(), "evt-1")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Empty(t, repo.headers)
	assert.Empty(t, repo.lines)
}

func TestGetOrder_Validation(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(), newFakeInventory(map[string]int{}), newFakeGuard())

	_, err := svc.GetOrder(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
