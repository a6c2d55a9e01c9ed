package order

import (
	"sort"
	"sync"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Entry is the book's view of one order.
type Entry struct {
	Request        schema.OrderRequest
	Status         schema.OrderStatus
	FilledQuantity int64
	FilledPrice    *decimal.Decimal
	Reason         string

	seq uint64
}

// Book tracks the status of every order created in-process.
type Book struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Entry
	next   uint64
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{orders: make(map[uuid.UUID]*Entry)}
}

// ApplyRequest records a new order in its creation status.
func (b *Book) ApplyRequest(req schema.OrderRequest) error {
	if req.ID == uuid.Nil {
		return errors.Wrap(exception.ErrInvalidOrder, "nil order id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[req.ID]; ok {
		return errors.Wrapf(exception.ErrDuplicateOrder, "id: %s", req.ID)
	}
	status := req.Status
	if !status.IsAvailable() {
		status = schema.OrderStatusPending
	}
	b.next++
	b.orders[req.ID] = &Entry{Request: req, Status: status, seq: b.next}
	return nil
}

// ApplyUpdate moves an order to the update's status.
func (b *Book) ApplyUpdate(update schema.OrderUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.orders[update.OrderID]
	if !ok {
		return errors.Wrapf(exception.ErrUnknownOrder, "id: %s", update.OrderID)
	}
	if !canTransition(e.Status, update.Status) {
		return errors.Wrapf(exception.ErrInvalidTransition, "id: %s, from: %s, to: %s", update.OrderID, e.Status, update.Status)
	}

	e.Status = update.Status
	if update.FilledQuantity > 0 {
		e.FilledQuantity = update.FilledQuantity
	}
	if update.FilledPrice != nil {
		p := *update.FilledPrice
		e.FilledPrice = &p
	}
	if update.Reason != "" {
		e.Reason = update.Reason
	}
	return nil
}

// Entry returns a copy of the order's entry.
func (b *Book) Entry(id uuid.UUID) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.orders[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Requests returns every order request in creation order.
func (b *Book) Requests() []schema.OrderRequest {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := make([]*Entry, 0, len(b.orders))
	for _, e := range b.orders {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	out := make([]schema.OrderRequest, len(entries))
	for i, e := range entries {
		out[i] = e.Request
	}
	return out
}

// Len returns the number of orders in the book.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

func canTransition(from, to schema.OrderStatus) bool {
	if from.IsTerminal() || !to.IsAvailable() {
		return false
	}
	switch from {
	case schema.OrderStatusPending:
		return to != schema.OrderStatusPending
	case schema.OrderStatusSubmitted:
		return to != schema.OrderStatusPending && to != schema.OrderStatusSubmitted
	case schema.OrderStatusPartiallyFilled:
		return to == schema.OrderStatusPartiallyFilled || to == schema.OrderStatusFilled || to == schema.OrderStatusCancelled
	default:
		return false
	}
}
