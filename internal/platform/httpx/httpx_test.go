package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/requestctx"
)

func TestChainAppliesInDeclarationOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), nil, mark("second"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.Join(order, ","); got != "first,second,handler" {
		t.Fatalf("order = %q, want %q", got, "first,second,handler")
	}
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestctx.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "-" || seen == "" {
		t.Fatalf("expected generated request id, got %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("response header = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "given-1" {
		t.Fatalf("request id = %q, want %q", seen, "given-1")
	}
}

func TestRecoverPanicWritesInternalError(t *testing.T) {
	t.Parallel()

	handler := RecoverPanic()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestWriteErrorRendersDomainError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := apperrors.Field(apperrors.CodeQuoteItemCountMismatch, "unit_prices", "expected 2 unit prices, got 1")
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var payload errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != string(apperrors.CodeQuoteItemCountMismatch) {
		t.Fatalf("code = %q, want %q", payload.Error.Code, apperrors.CodeQuoteItemCountMismatch)
	}
	if payload.Error.Kind != string(apperrors.KindValidation) {
		t.Fatalf("kind = %q, want %q", payload.Error.Kind, apperrors.KindValidation)
	}
	if payload.Error.Metadata["Field"] != "unit_prices" {
		t.Fatalf("field = %q, want %q", payload.Error.Metadata["Field"], "unit_prices")
	}
}

func TestWriteErrorHidesStorageDetail(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), apperrors.Storage(errors.New("disk I/O error")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "disk") {
		t.Fatalf("expected storage cause to be hidden, got %s", rec.Body.String())
	}
}

func TestWriteErrorLogsCallerForServerErrors(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/rfqs", nil)
	ctx := requestctx.WithUserID(req.Context(), "buyer-1")
	ctx = requestctx.WithRole(ctx, "shipping_company")
	WriteError(httptest.NewRecorder(), req.WithContext(ctx), apperrors.Storage(errors.New("disk I/O error")))

	line := buf.String()
	for _, want := range []string{"path=/api/rfqs", "user_id=buyer-1", "role=shipping_company", "err=storage failure"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestDecodeJSONKeepsNumbersExact(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"price": 12.345}`))
	var payload struct {
		Price json.Number `json:"price"`
	}
	if err := DecodeJSON(req, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Price.String() != "12.345" {
		t.Fatalf("price = %q, want %q", payload.Price.String(), "12.345")
	}
}

func TestDecodeJSONIgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"price": 5, "vendor_company_name": "Harbor Supply"}`))
	var payload struct {
		Price json.Number `json:"price"`
	}
	if err := DecodeJSON(req, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Price.String() != "5" {
		t.Fatalf("price = %q, want 5", payload.Price.String())
	}
}

func TestDecodeJSONRejectsEmptyAndMalformed(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	for _, body := range []string{"", "{"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(req, &payload)
		if apperrors.KindOf(err) != apperrors.KindValidation {
			t.Fatalf("body %q: kind = %q, want %q", body, apperrors.KindOf(err), apperrors.KindValidation)
		}
	}
}

func TestAccessLogRecordsStatus(t *testing.T) {
	t.Parallel()

	var recorded *StatusRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		recorded, _ = w.(*StatusRecorder)
		w.WriteHeader(http.StatusCreated)
	})
	AccessLog()(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if recorded == nil || recorded.Status != http.StatusCreated {
		t.Fatalf("expected recorder with status 201, got %+v", recorded)
	}
}
