// Package loader implements the one-shot startup reconciliation
// (spec §4.I): before the server accepts any traffic, it loads every
// artifact currently in the store. A store that cannot be listed at
// all is a fatal startup error; an individual artifact that fails to
// load is logged and skipped so one bad model doesn't block the rest.
package loader

import (
	"context"
	"fmt"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/logging"
	"github.com/aiserve/modelserver/internal/poller"
)

// Run performs exactly one Reconcile cycle and wraps a total failure
// (the store itself is unreachable) in apperr.ErrFatal so main can
// abort startup per spec §7.
func Run(ctx context.Context, p *poller.Poller) error {
	logging.Info("startup: loading models from store", nil)
	if err := p.Reconcile(ctx); err != nil {
		return fmt.Errorf("%w: initial store reconciliation: %v", apperr.ErrFatal, err)
	}
	logging.Info("startup: initial load complete", nil)
	return nil
}
