// Package requestctx carries the correlation id shared by logs, audit
// entries and API responses.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ensure returns ctx unchanged when it already has an id. Otherwise it
// attaches "<source>-<uuid>", so work started outside an HTTP request (a
// scheduled job) is still traceable in audit_logs.
func Ensure(ctx context.Context, source string) context.Context {
	if GetRequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, source+"-"+uuid.NewString())
}
