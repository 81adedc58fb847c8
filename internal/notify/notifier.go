// Package notify pushes session events to operator channels. Each event is
// rendered once from its domain value and fanned out to every configured
// sender; the configured event list filters routine traffic, escalations
// always go through.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Event names accepted in the notify.events config list.
const (
	EventOpportunity = "opportunity"
	EventExecution   = "execution"
	EventEscalation  = "escalation"
	EventError       = "error"
)

// Notification is one rendered message ready for delivery. Urgent marks
// messages an operator must act on; senders render those more prominently.
type Notification struct {
	Event  string
	Title  string
	Body   string
	Urgent bool
}

// Sender delivers notifications over one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	// Name identifies the channel in logs and error messages.
	Name() string
}

// Notifier renders domain events and dispatches them to all senders.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event names; empty allows all
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// named in the events list pass the filter; an empty list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Opportunity announces a tradable basket.
func (n *Notifier) Opportunity(ctx context.Context, opp domain.Opportunity) error {
	return n.notify(ctx, Notification{
		Event: EventOpportunity,
		Title: "Arbitrage opportunity",
		Body: fmt.Sprintf("%s\ncost %.4f, profit %.2f%%, size %.1f across %d legs",
			opp.Basket.Title, opp.TotalCost, opp.ProfitPct,
			opp.ExecutableSize, len(opp.Quotes)),
	})
}

// Execution reports how an attempt ended. Partial fills are urgent: capital
// is committed to an incomplete basket.
func (n *Notifier) Execution(ctx context.Context, result domain.ExecutionResult) error {
	return n.notify(ctx, Notification{
		Event: EventExecution,
		Title: "Execution " + executionOutcome(result),
		Body: fmt.Sprintf("%s\nfilled %d/%d legs, size %.1f, cost %.4f, expected profit %.4f",
			result.Title, result.FilledLegs, len(result.Legs),
			result.TotalFilledSize, result.TotalCostActual, result.ExpectedProfit()),
		Urgent: !result.AllFilled && !result.Aborted,
	})
}

// Escalation demands manual intervention for an open position left by a
// failed unwind. It bypasses the event filter.
func (n *Notifier) Escalation(ctx context.Context, executionID string, r domain.UnwindResult) error {
	return n.dispatch(ctx, Notification{
		Event: EventEscalation,
		Title: "Manual intervention required",
		Body: fmt.Sprintf("Execution %s left an open position on %s (%s): %.0f shares, sell order %q: %s",
			executionID, r.Leg.Name, r.Leg.TokenID, r.Size, r.OrderID, r.Error),
		Urgent: true,
	})
}

// NotifyAll sends an urgent free-form message to every sender, bypassing the
// event filter. Used for session-level halts and operational errors.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, Notification{
		Event:  EventError,
		Title:  title,
		Body:   message,
		Urgent: true,
	})
}

func (n *Notifier) notify(ctx context.Context, msg Notification) error {
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", msg.Event))
		return nil
	}
	return n.dispatch(ctx, msg)
}

// dispatch delivers to every sender; one sender failing never blocks the
// rest. Failures come back as a single combined error.
func (n *Notifier) dispatch(ctx context.Context, msg Notification) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func executionOutcome(result domain.ExecutionResult) string {
	switch {
	case result.Aborted:
		return "aborted"
	case result.AllFilled:
		return "complete"
	default:
		return "partial"
	}
}
