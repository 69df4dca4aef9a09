package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type contextKey struct{}

// NewRelicContextKey is the context key holding the *newrelic.Application
// used by the Record* helpers.
var NewRelicContextKey = contextKey{}

// NewContext returns a context carrying the New Relic application. A nil
// application leaves metrics disabled.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey, app)
}

// StartTransaction starts a New Relic transaction named name when an
// application is present in ctx. The returned end function must always be
// called and is safe to use when metrics are disabled.
func StartTransaction(ctx context.Context, name string) (context.Context, func()) {
	app, ok := ctx.Value(NewRelicContextKey).(*newrelic.Application)
	if !ok || app == nil {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn.End
}
