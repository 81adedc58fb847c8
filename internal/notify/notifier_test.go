package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	name string
	sent []Notification
	err  error
}

func (s *fakeSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *fakeSender) Name() string { return s.name }

func (s *fakeSender) notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Basket:         domain.Basket{EventID: "evt1", Title: "Test Event"},
		TotalCost:      0.95,
		ProfitPct:      5.26,
		ExecutableSize: 40,
		Quotes:         make([]domain.Quote, 3),
	}
}

func TestEventFilterAllowsConfiguredEvents(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventOpportunity}, testLogger())

	require.NoError(t, n.Opportunity(context.Background(), sampleOpportunity()))
	require.NoError(t, n.Execution(context.Background(), domain.ExecutionResult{AllFilled: true}))

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, EventOpportunity, sent[0].Event)
	assert.Contains(t, sent[0].Body, "Test Event")
	assert.False(t, sent[0].Urgent)
}

func TestEmptyEventListAllowsEverything(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Opportunity(context.Background(), sampleOpportunity()))
	require.NoError(t, n.Execution(context.Background(), domain.ExecutionResult{AllFilled: true}))

	assert.Len(t, sender.notifications(), 2)
}

func TestExecutionUrgencyFollowsOutcome(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Execution(context.Background(), domain.ExecutionResult{AllFilled: true}))
	require.NoError(t, n.Execution(context.Background(), domain.ExecutionResult{Aborted: true}))
	require.NoError(t, n.Execution(context.Background(), domain.ExecutionResult{
		FilledLegs: 1, FailedLegs: 1,
	}))

	sent := sender.notifications()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Title, "complete")
	assert.False(t, sent[0].Urgent)
	assert.Contains(t, sent[1].Title, "aborted")
	assert.False(t, sent[1].Urgent)
	// A partial fill leaves capital in an incomplete basket.
	assert.Contains(t, sent[2].Title, "partial")
	assert.True(t, sent[2].Urgent)
}

func TestEscalationBypassesFilter(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventOpportunity}, testLogger())

	err := n.Escalation(context.Background(), "exec-1", domain.UnwindResult{
		Leg:     domain.OutcomeLeg{TokenID: "tok-1", Name: "Yes"},
		Size:    10,
		OrderID: "ord-1",
		Error:   "sell still open at unwind deadline",
	})
	require.NoError(t, err)

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, EventEscalation, sent[0].Event)
	assert.True(t, sent[0].Urgent)
	assert.Contains(t, sent[0].Body, "exec-1")
	assert.Contains(t, sent[0].Body, "tok-1")
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventOpportunity}, testLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "Session halted", "drawdown reached"))

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Urgent)
	assert.Equal(t, "Session halted", sent[0].Title)
}

func TestDispatchCollectsSenderFailures(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("http 500")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// The failing sender never blocks the healthy one.
	assert.Len(t, good.notifications(), 1)
}

func TestNoSendersIsNoOp(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	assert.NoError(t, n.NotifyAll(context.Background(), "title", "body"))
}
