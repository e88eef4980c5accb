package errors

import (
	"net/http"
)

const (
	// RequestIDHeader echoes the request ID back to the client.
	RequestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware tags every request with an ID, honoring one the client
// already sent so IDs survive proxies and retried uploads.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}

		ctx := WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler is an http.HandlerFunc that reports failures as error returns
// instead of writing them inline. The lecture and job endpoints are all
// written in this form.
type Handler func(w http.ResponseWriter, r *http.Request) error

// HandleFunc adapts a Handler to http.HandlerFunc, rendering any returned
// error as the standard JSON envelope with the request ID attached.
func HandleFunc(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			requestID := GetRequestID(r.Context())
			WriteError(w, requestID, err)
		}
	}
}
