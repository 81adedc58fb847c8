package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// PaperGateway simulates the venue for paper trading. Every order is accepted
// and fills instantly and completely at its limit price, so paper runs
// exercise the full execution path with deterministic outcomes.
type PaperGateway struct {
	mu     sync.Mutex
	orders map[string]paperOrder
}

type paperOrder struct {
	req       domain.OrderRequest
	cancelled bool
}

// NewPaperGateway creates an empty simulated venue.
func NewPaperGateway() *PaperGateway {
	return &PaperGateway{orders: make(map[string]paperOrder)}
}

// PlaceOrder accepts the order and records it as immediately filled.
func (g *PaperGateway) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	id := uuid.NewString()

	g.mu.Lock()
	g.orders[id] = paperOrder{req: req}
	g.mu.Unlock()

	return domain.OrderResult{Success: true, OrderID: id}, nil
}

// OrderStatus reports the order fully filled at its limit price, or cancelled
// if CancelOrder got there first.
func (g *PaperGateway) OrderStatus(_ context.Context, orderID string) (domain.OrderFill, error) {
	g.mu.Lock()
	order, ok := g.orders[orderID]
	g.mu.Unlock()

	if !ok {
		return domain.OrderFill{}, domain.ErrNotFound
	}
	if order.cancelled {
		return domain.OrderFill{State: domain.OrderStateCancelled}, nil
	}
	return domain.OrderFill{
		State:      domain.OrderStateFilled,
		FilledSize: order.req.Size,
		AvgPrice:   order.req.Price,
	}, nil
}

// CancelOrder marks the order cancelled. Fills in paper mode are instant, so
// cancellation only matters for status reads that race the placement.
func (g *PaperGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	order.cancelled = true
	g.orders[orderID] = order
	return nil
}

var _ domain.OrderGateway = (*PaperGateway)(nil)
