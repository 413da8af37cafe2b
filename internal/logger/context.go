package logger

import "context"

type correlationKey struct{}

// WithCorrelationID stores the request correlation id so that work started by
// the request, such as queued notifications, can carry it along.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
