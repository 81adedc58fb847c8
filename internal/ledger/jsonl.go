// Package ledger writes an append-only JSONL record of everything a trading
// session does: scans, detected opportunities, executions, skips and
// escalations. One file per session, one JSON object per line.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Event types written to the ledger.
const (
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
	EventPositionRestore = "position_restore"
	EventScanSummary     = "scan_summary"
	EventOpportunity     = "opportunity"
	EventExecution       = "execution"
	EventSkip            = "skip"
	EventEscalation      = "escalation"
)

type entry struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Writer appends session events to a JSONL file. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *slog.Logger
}

// NewWriter opens (or creates) the session's ledger file under dir.
func NewWriter(dir, sessionID string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%s.jsonl", sessionID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	return &Writer{
		file:   file,
		path:   path,
		logger: logger.With(slog.String("component", "ledger")),
	}, nil
}

// Path returns the ledger file's location, for archival after session end.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) write(eventType string, data any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return
	}

	line, err := json.Marshal(entry{Type: eventType, At: time.Now().UTC(), Data: data})
	if err != nil {
		w.logger.Error("marshal ledger entry failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		w.logger.Error("write ledger entry failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// SessionStart records the session's mode and configuration fingerprint.
func (w *Writer) SessionStart(sessionID, mode string, baskets int) {
	w.write(EventSessionStart, map[string]any{
		"session_id": sessionID,
		"mode":       mode,
		"baskets":    baskets,
	})
}

// SessionEnd records why the session stopped and its final counters.
func (w *Writer) SessionEnd(reason string, stats any) {
	w.write(EventSessionEnd, map[string]any{
		"reason": reason,
		"stats":  stats,
	})
}

// PositionRestore records the spend state carried over from prior sessions.
func (w *Writer) PositionRestore(state domain.SpendState) {
	w.write(EventPositionRestore, state)
}

// ScanStats carries the quote-path counters sampled after a scan round:
// streaming-cache traffic and how often reads fell back to direct fetches.
type ScanStats struct {
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
	BooksReady  int    `json:"books_ready"`
	Fallbacks   uint64 `json:"direct_fetches"`
}

// ScanSummary records one scan round's outcome.
func (w *Writer) ScanSummary(scanIndex, baskets, opportunities int, elapsed time.Duration, stats ScanStats) {
	w.write(EventScanSummary, map[string]any{
		"scan_index":    scanIndex,
		"baskets":       baskets,
		"opportunities": opportunities,
		"elapsed_ms":    elapsed.Milliseconds(),
		"quotes":        stats,
	})
}

// Opportunity records a detected tradable basket.
func (w *Writer) Opportunity(opp domain.Opportunity) {
	legs := make([]map[string]any, len(opp.Quotes))
	for i, q := range opp.Quotes {
		legs[i] = map[string]any{
			"token_id": q.Leg.TokenID,
			"outcome":  q.Leg.Name,
			"best_ask": q.BestAsk,
			"ask_size": q.AskSize,
		}
	}
	w.write(EventOpportunity, map[string]any{
		"event_id":        opp.Basket.EventID,
		"title":           opp.Basket.Title,
		"total_cost":      opp.TotalCost,
		"profit_pct":      opp.ProfitPct,
		"executable_size": opp.ExecutableSize,
		"legs":            legs,
	})
}

// Execution records a full execution result, legs and unwinds included.
func (w *Writer) Execution(result domain.ExecutionResult) {
	w.write(EventExecution, result)
}

// Skip records an opportunity that was detected but not traded.
func (w *Writer) Skip(eventID, reason string) {
	w.write(EventSkip, map[string]any{
		"event_id": eventID,
		"reason":   reason,
	})
}

// Escalation records an open position needing manual intervention.
func (w *Writer) Escalation(executionID string, unwind domain.UnwindResult) {
	w.write(EventEscalation, map[string]any{
		"execution_id": executionID,
		"token_id":     unwind.Leg.TokenID,
		"outcome":      unwind.Leg.Name,
		"size":         unwind.Size,
		"order_id":     unwind.OrderID,
		"error":        unwind.Error,
	})
}
