package domain

import "time"

// LegStatus tracks the lifecycle of one leg within an execution attempt.
// Everything after submitted is terminal for that attempt.
type LegStatus string

const (
	LegStatusPlanned   LegStatus = "planned"
	LegStatusSubmitted LegStatus = "submitted"
	LegStatusFilled    LegStatus = "filled"
	LegStatusPartial   LegStatus = "partial"
	LegStatusCanceled  LegStatus = "canceled"
	LegStatusRejected  LegStatus = "rejected"
	LegStatusError     LegStatus = "error"
	LegStatusTimeout   LegStatus = "timeout"
)

// LegFill is the outcome of attempting to execute one leg. Created once per
// leg per attempt and never mutated after the terminal status is recorded.
type LegFill struct {
	Leg          OutcomeLeg
	PlannedPrice float64 // best ask at detection/refresh time
	LimitPrice   float64 // submitted limit (planned + buffer, capped)
	PlannedSize  float64
	Status       LegStatus
	OrderID      string
	FilledSize   float64
	FillPrice    float64
	Error        string // captured failure detail, empty on success
}

// UnwindStatus is the terminal state of one compensating sell.
type UnwindStatus string

const (
	UnwindFilled   UnwindStatus = "filled"
	UnwindPartial  UnwindStatus = "partial"
	UnwindCanceled UnwindStatus = "canceled"
	// UnwindUnresolved means the sell was still open at the unwind deadline
	// or could not be submitted; the position requires manual intervention.
	UnwindUnresolved UnwindStatus = "unresolved"
)

// UnwindResult records one compensating sell for a filled leg of a partially
// executed basket.
type UnwindResult struct {
	Leg       OutcomeLeg
	OrderID   string
	SellPrice float64
	Size      float64
	Status    UnwindStatus
	Error     string
}

// ExecutionResult aggregates all leg fills for one opportunity attempt.
// Created once, appended to the session ledger, never mutated afterward.
type ExecutionResult struct {
	ID         string // uuid for ledger/store correlation
	EventID    string
	Title      string
	Paper      bool
	ExecSize   float64
	Legs       []LegFill
	AllFilled  bool
	// TotalCostActual substitutes the planned price for legs that never
	// filled so the reported cost stays meaningful for partial diagnostics.
	TotalCostActual float64
	// TotalFilledSize is the minimum filled size across legs with status
	// filled, the quantity held on every such leg. Zero when no leg filled.
	TotalFilledSize float64
	FilledLegs      int
	FailedLegs      int
	Unwinds         []UnwindResult
	Aborted         bool
	AbortReason     string
	StartedAt       time.Time
	CompletedAt     time.Time
}

// ExpectedProfit is the locked-in payout of the completed basket portion.
func (r ExecutionResult) ExpectedProfit() float64 {
	if !r.AllFilled || r.TotalFilledSize <= 0 {
		return 0
	}
	return (1.0 - r.TotalCostActual) * r.TotalFilledSize
}

// Latency is the wall time the execution attempt took.
func (r ExecutionResult) Latency() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
