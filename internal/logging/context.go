package logging

import (
	"context"

	"github.com/google/uuid"
)

// correlationKey is unexported so other packages cannot collide with
// the stored value; go through the helpers below.
type correlationKey struct{}

// WithCorrelationID returns a context carrying the request correlation
// ID. The API middleware sets it from X-Correlation-ID, minting one
// when the caller did not supply a header.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the correlation ID on the context, or ""
// when the work is not tied to an HTTP request.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// GenerateCorrelationID mints a fresh request identifier.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// MustGetCorrelationID returns the stored correlation ID, minting one
// when the context has none.
func MustGetCorrelationID(ctx context.Context) string {
	if id := GetCorrelationID(ctx); id != "" {
		return id
	}
	return GenerateCorrelationID()
}
