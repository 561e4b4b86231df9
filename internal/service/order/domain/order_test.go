package domain

import (
	"testing"

	"demoshop/internal/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "6f9e2c1a-8d4b-4f3e-9a7c-1b2d3e4f5a6b"

func validEvent() *CheckoutEvent {
	return &CheckoutEvent{
		EventID: "evt-1",
		UserID:  testUserID,
		Items: []CheckoutEventItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromFloat(19.99)},
			{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromFloat(5.50)},
		},
	}
}

func TestNewOrder(t *testing.T) {
	order, err := NewOrder(validEvent(), "evt-1", "CashOnDelivery")
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, testUserID, order.UserID)
	assert.Equal(t, "evt-1", order.EventKey)
	assert.Equal(t, StateCreated, order.State)
	assert.Equal(t, "CashOnDelivery", order.PaymentMethod)
	assert.True(t, order.TotalPrice.IsZero())
	require.Len(t, order.Lines, 2)
	assert.Equal(t, order.ID, order.Lines[0].OrderID)
}

func TestNewOrder_KeepsExplicitPaymentMethod(t *testing.T) {
	event := validEvent()
	event.PaymentMethod = "CreditCard"

	order, err := NewOrder(event, "evt-1", "CashOnDelivery")
	require.NoError(t, err)
	assert.Equal(t, "CreditCard", order.PaymentMethod)
}

func TestNewOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutEvent)
		key    string
	}{
		{"empty user", func(e *CheckoutEvent) { e.UserID = "" }, "evt-1"},
		{"malformed user uuid", func(e *CheckoutEvent) { e.UserID = "not-a-uuid" }, "evt-1"},
		{"no items", func(e *CheckoutEvent) { e.Items = nil }, "evt-1"},
		{"empty product id", func(e *CheckoutEvent) { e.Items[0].ProductID = "" }, "evt-1"},
		{"zero quantity", func(e *CheckoutEvent) { e.Items[1].Quantity = 0 }, "evt-1"},
		{"negative quantity", func(e *CheckoutEvent) { e.Items[0].Quantity = -2 }, "evt-1"},
		{"empty event key", func(e *CheckoutEvent) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)

			order, err := NewOrder(event, tt.key, "CashOnDelivery")
			assert.Nil(t, order)
			assert.True(t, apperr.Is(err, apperr.InvalidArgument), "got %v", err)
		})
	}
}

func TestLineSubtotal(t *testing.T) {
	line := &Line{Quantity: 3, UnitPrice: decimal.NewFromFloat(19.99)}
	assert.True(t, line.Subtotal().Equal(decimal.NewFromFloat(59.97)))
}

func TestLinesTotal(t *testing.T) {
	order, err := NewOrder(validEvent(), "evt-1", "CashOnDelivery")
	require.NoError(t, err)

	// 2*19.99 + 1*5.50 = 45.48
	assert.True(t, order.LinesTotal().Equal(decimal.NewFromFloat(45.48)))
}

func TestMarkAsCompleted(t *testing.T) {
	order, err := NewOrder(validEvent(), "evt-1", "CashOnDelivery")
	require.NoError(t, err)

	require.NoError(t, order.MarkAsCompleted())
	assert.Equal(t, StateCompleted, order.State)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(45.48)))

	// 已完结的订单不能再次完结
	assert.True(t, apperr.Is(order.MarkAsCompleted(), apperr.InvalidState))
}

func TestMarkAsFailed(t *testing.T) {
	order, err := NewOrder(validEvent(), "evt-1", "CashOnDelivery")
	require.NoError(t, err)

	order.MarkAsFailed()
	assert.Equal(t, StateFailed, order.State)
}
