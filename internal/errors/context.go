package errors

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

// GenerateRequestID mints a fresh request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// WithRequestID puts a request ID on the context. The same ID appears in the
// error envelope, the response header, and every log line the request
// produces, so a client-reported failure can be traced through the logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the context's request ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// RequestIDOrGenerate returns the context's request ID, minting one for
// callers outside the HTTP path (the worker pool, startup code).
func RequestIDOrGenerate(ctx context.Context) string {
	if requestID := GetRequestID(ctx); requestID != "" {
		return requestID
	}
	return GenerateRequestID()
}
