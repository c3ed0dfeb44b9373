// Package httpx provides HTTP middleware and JSON response helpers for
// portside APIs.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/requestctx"
)

const requestIDHeader = "X-Request-ID"

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

var requestIDCounter atomic.Uint64

// Chain applies middleware in declaration order.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		if middleware[idx] == nil {
			continue
		}
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

// RequestID injects and echoes a request id for correlation and stores it in
// the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if requestID == "" {
				requestID = fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), requestIDCounter.Add(1))
				r.Header.Set(requestIDHeader, requestID)
			}
			w.Header().Set(requestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), requestID)))
		})
	}
}

// RecoverPanic converts panics into HTTP 500 responses.
func RecoverPanic() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					log.Printf(
						"panic recovered method=%s path=%s request_id=%s panic=%v stack=%s",
						r.Method,
						r.URL.Path,
						requestctx.RequestIDFromContext(r.Context()),
						recovered,
						strings.TrimSpace(string(debug.Stack())),
					)
					_ = WriteJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
						Code:    string(apperrors.CodeUnknown),
						Kind:    string(apperrors.KindUnknown),
						Message: "internal error",
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// WriteHeader records the status before delegating.
func (r *StatusRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

// Write defaults the status to 200 when the handler never set one.
func (r *StatusRecorder) Write(p []byte) (int, error) {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

// AccessLog writes one line per request with method, path, status and duration.
func AccessLog() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &StatusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			status := recorder.Status
			if status == 0 {
				status = http.StatusOK
			}
			log.Printf(
				"http method=%s path=%s status=%d duration=%s request_id=%s",
				r.Method,
				r.URL.Path,
				status,
				time.Since(start).Round(time.Microsecond),
				requestctx.RequestIDFromContext(r.Context()),
			)
		})
	}
}

// RequestContext returns r.Context() with a nil-safe fallback to context.Background().
func RequestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return fmt.Errorf("response writer is required")
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Kind     string            `json:"kind"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WriteError writes a typed JSON error. Failures that are not caller errors
// are logged with their cause and rendered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := apperrors.HTTPStatus(err)
	body := errorBody{
		Code:    string(apperrors.CodeOf(err)),
		Kind:    string(apperrors.KindOf(err)),
		Message: apperrors.PublicMessage(err),
	}
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) && appErr.Code.Kind() != apperrors.KindStorageFailure {
		body.Metadata = appErr.Metadata
	}
	if status >= http.StatusInternalServerError {
		method, path := "-", "-"
		if r != nil {
			method, path = r.Method, r.URL.Path
		}
		ctx := RequestContext(r)
		log.Printf(
			"request failed method=%s path=%s request_id=%s user_id=%s role=%s err=%v",
			method,
			path,
			requestctx.RequestIDFromContext(ctx),
			requestctx.UserIDFromContext(ctx),
			requestctx.RoleFromContext(ctx),
			err,
		)
	}
	_ = WriteJSON(w, status, errorEnvelope{Error: body})
}

// DecodeJSON reads a bounded JSON body into target. Numbers are kept as
// json.Number so monetary values never pass through float64. Unknown fields
// are ignored.
func DecodeJSON(r *http.Request, target any) error {
	if r == nil || r.Body == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		if stderrors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidArgument, "request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.Field(apperrors.CodeInvalidArgument, typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "request body is not valid JSON", err)
	}
	return nil
}
