package order

import (
	"testing"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T) schema.OrderRequest {
	t.Helper()
	req, err := schema.NewOrderRequest(schema.OrderParams{Symbol: "X", Side: schema.SideBuy, Quantity: 5})
	require.NoError(t, err)
	return req
}

func TestBookLifecycle(t *testing.T) {
	b := NewBook()
	req := newRequest(t)

	require.NoError(t, b.ApplyRequest(req))
	assert.ErrorIs(t, b.ApplyRequest(req), exception.ErrDuplicateOrder)

	e, ok := b.Entry(req.ID)
	require.True(t, ok)
	assert.Equal(t, schema.OrderStatusPending, e.Status)

	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusSubmitted}))
	price := dec("10.5")
	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusFilled, FilledQuantity: 5, FilledPrice: &price}))

	e, _ = b.Entry(req.ID)
	assert.Equal(t, schema.OrderStatusFilled, e.Status)
	assert.Equal(t, int64(5), e.FilledQuantity)
	require.NotNil(t, e.FilledPrice)
	assert.True(t, e.FilledPrice.Equal(price))

	err := b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusCancelled})
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)
}

func TestBookRejectsUnknownAndBackwardTransitions(t *testing.T) {
	b := NewBook()

	err := b.ApplyUpdate(schema.OrderUpdate{OrderID: uuid.New(), Status: schema.OrderStatusFilled})
	assert.ErrorIs(t, err, exception.ErrUnknownOrder)

	err = b.ApplyRequest(schema.OrderRequest{})
	assert.ErrorIs(t, err, exception.ErrInvalidOrder)

	req := newRequest(t)
	require.NoError(t, b.ApplyRequest(req))
	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusSubmitted}))

	err = b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusPending})
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)

	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusPartiallyFilled, FilledQuantity: 2}))
	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusPartiallyFilled, FilledQuantity: 4}))
	err = b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusRejected})
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)
	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusCancelled, Reason: "user"}))

	e, _ := b.Entry(req.ID)
	assert.Equal(t, schema.OrderStatusCancelled, e.Status)
	assert.Equal(t, int64(4), e.FilledQuantity)
	assert.Equal(t, "user", e.Reason)
	assert.Equal(t, 1, b.Len())
}

func TestBookPendingRejected(t *testing.T) {
	b := NewBook()
	req := newRequest(t)
	require.NoError(t, b.ApplyRequest(req))
	require.NoError(t, b.ApplyUpdate(schema.OrderUpdate{OrderID: req.ID, Status: schema.OrderStatusRejected, Reason: "limit"}))

	e, _ := b.Entry(req.ID)
	assert.True(t, e.Status.IsTerminal())
	assert.Equal(t, "limit", e.Reason)
}
