package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a caller context with an optional GORM transaction.
// Repos fall back to their own handle when Tx is nil, so a single call can
// run untransacted while composed operations share one Tx.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background is a convenience for batch entrypoints (cron sweeps, CLIs).
func Background() Context {
	return Context{Ctx: context.Background()}
}
