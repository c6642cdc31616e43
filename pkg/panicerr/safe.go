package panicerr

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/buildingdesk/pkg/clog"
)

// SafeContext wraps fn so a panic is returned as an error.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(ctx)
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// Go starts a background worker on wg. A panic is logged instead of
// taking the process down.
func Go(ctx context.Context, wg *conc.WaitGroup, name string, fn func(context.Context)) {
	ctx = clog.ContextWithSlog(ctx)
	clog.AddWorker(ctx, name)
	wg.Go(func() {
		err := SafeContext(func(ctx context.Context) error {
			fn(ctx)
			return nil
		})(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "background worker panicked", "error", err)
		}
	})
}
