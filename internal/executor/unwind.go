package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Alerter delivers manual-intervention alerts. *notify.Notifier satisfies it.
type Alerter interface {
	Escalation(ctx context.Context, executionID string, r domain.UnwindResult) error
}

// UnwindConfig holds the compensating-sell parameters.
type UnwindConfig struct {
	// PriceDiscount is subtracted from the fill price when pricing the sell,
	// trading a small loss for a fast exit.
	PriceDiscount float64
	// PriceFloor is the lowest sell limit ever submitted.
	PriceFloor float64
	// PollInterval is the sell order polling cadence.
	PollInterval time.Duration
	// Deadline bounds how long an unwind sell may stay unresolved before it
	// is escalated to an operator.
	Deadline time.Duration
}

// DefaultUnwindConfig returns the standard unwind parameters.
func DefaultUnwindConfig() UnwindConfig {
	return UnwindConfig{
		PriceDiscount: 0.02,
		PriceFloor:    0.01,
		PollInterval:  time.Second,
		Deadline:      30 * time.Second,
	}
}

// Unwinder sells back the filled legs of a basket that did not complete.
// Sells rest on the book slightly under the fill price; anything still
// unresolved at the deadline is escalated for manual intervention rather
// than cancelled, since the resting order may yet fill.
type Unwinder struct {
	gateway domain.OrderGateway
	alerter Alerter
	cfg     UnwindConfig
	logger  *slog.Logger
}

// NewUnwinder creates an Unwinder. alerter may be nil; escalations are then
// only logged.
func NewUnwinder(gateway domain.OrderGateway, alerter Alerter, cfg UnwindConfig, logger *slog.Logger) *Unwinder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Unwinder{
		gateway: gateway,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "unwinder")),
	}
}

// Unwind sells back every leg with a fill and reports one result per sell.
// All sells are submitted before any is polled, so no filled leg sits
// unhedged while an earlier sell is being watched; the submitted set is then
// polled together under one unwind deadline. Unresolved positions are
// escalated before returning.
func (u *Unwinder) Unwind(ctx context.Context, executionID string, legs []domain.LegFill) []domain.UnwindResult {
	var results []domain.UnwindResult
	var open []int
	for _, leg := range legs {
		if leg.FilledSize <= 0 {
			continue
		}
		r := u.submitSell(ctx, leg)
		if r.Status == "" {
			open = append(open, len(results))
		}
		results = append(results, r)
	}

	u.pollSells(ctx, results, open)

	for _, r := range results {
		if r.Status != domain.UnwindUnresolved {
			continue
		}
		u.escalate(ctx, executionID, r)
	}
	return results
}

// submitSell places the compensating GTC sell for one filled leg. A zero
// Status on the returned result means the sell is resting and must be polled;
// submission failures come back unresolved immediately.
func (u *Unwinder) submitSell(ctx context.Context, leg domain.LegFill) domain.UnwindResult {
	price := round2(leg.FillPrice - u.cfg.PriceDiscount)
	if price < u.cfg.PriceFloor {
		price = u.cfg.PriceFloor
	}

	result := domain.UnwindResult{
		Leg:       leg.Leg,
		SellPrice: price,
		Size:      leg.FilledSize,
	}

	res, err := u.gateway.PlaceOrder(ctx, domain.OrderRequest{
		TokenID: leg.Leg.TokenID,
		Side:    domain.OrderSideSell,
		Type:    domain.OrderTypeGTC,
		Price:   price,
		Size:    leg.FilledSize,
	})
	if err != nil {
		result.Status = domain.UnwindUnresolved
		result.Error = err.Error()
		return result
	}
	if !res.Success {
		result.Status = domain.UnwindUnresolved
		result.Error = res.Reason
		return result
	}
	result.OrderID = res.OrderID
	return result
}

// pollSells drives every open sell to a terminal state under one shared
// deadline, visiting each in rounds.
func (u *Unwinder) pollSells(ctx context.Context, results []domain.UnwindResult, open []int) {
	if len(open) == 0 {
		return
	}

	deadline := time.Now().Add(u.cfg.Deadline)
	for {
		var still []int
		for _, i := range open {
			fill, err := u.gateway.OrderStatus(ctx, results[i].OrderID)
			if err != nil {
				still = append(still, i)
				continue
			}
			switch fill.State {
			case domain.OrderStateFilled:
				results[i].Status = domain.UnwindFilled
			case domain.OrderStateCancelled:
				if fill.FilledSize > 0 {
					results[i].Status = domain.UnwindPartial
				} else {
					results[i].Status = domain.UnwindCanceled
				}
			default:
				still = append(still, i)
			}
		}
		open = still
		if len(open) == 0 {
			return
		}
		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			for _, i := range open {
				results[i].Status = domain.UnwindUnresolved
				results[i].Error = ctx.Err().Error()
			}
			return
		case <-time.After(u.cfg.PollInterval):
		}
	}

	// The sells stay on the book; they may still fill after we stop watching.
	for _, i := range open {
		results[i].Status = domain.UnwindUnresolved
		results[i].Error = "sell still open at unwind deadline"
	}
}

func (u *Unwinder) escalate(ctx context.Context, executionID string, r domain.UnwindResult) {
	u.logger.Error("unwind unresolved, manual intervention required",
		slog.String("execution_id", executionID),
		slog.String("token_id", r.Leg.TokenID),
		slog.String("outcome", r.Leg.Name),
		slog.Float64("size", r.Size),
		slog.String("order_id", r.OrderID),
		slog.String("error", r.Error),
	)

	if u.alerter == nil {
		return
	}
	if err := u.alerter.Escalation(ctx, executionID, r); err != nil {
		u.logger.Error("escalation alert failed", slog.String("error", err.Error()))
	}
}
