package provenance

import (
	"context"

	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
)

func dbctxFor(ctx context.Context, tx *gorm.DB) dbctx.Context {
	return dbctx.Context{Ctx: ctx, Tx: tx}
}
