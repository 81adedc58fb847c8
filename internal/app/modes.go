package app

import (
	"context"
)

// LiveMode runs the session loop with real order placement against the CLOB.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")
	return a.runSession(ctx, deps, true)
}

// PaperMode runs the session loop with simulated fills. Detection uses real
// market data; no orders reach the venue.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")
	return a.runSession(ctx, deps, true)
}

// ScanMode runs detection only. Opportunities are logged and ledgered but
// never executed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")
	return a.runSession(ctx, deps, false)
}
