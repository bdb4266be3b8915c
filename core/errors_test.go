package core

import (
	stderrors "errors"
	"net/http"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorKinds_AssignStableCodesAndCategories(t *testing.T) {
	retry := 30 * time.Second
	cases := []struct {
		name     string
		err      error
		kind     ErrorKind
		category goerrors.Category
		code     int
	}{
		{"validation", NewValidationError("bad"), ErrorKindValidation, goerrors.CategoryBadInput, http.StatusBadRequest},
		{"authentication", NewAuthenticationError("denied", 401), ErrorKindAuthentication, goerrors.CategoryAuth, 401},
		{"request validation", NewRequestValidationError("shape", 400), ErrorKindRequestValidation, goerrors.CategoryValidation, 400},
		{"rate limit", NewRateLimitError("slow down", &retry), ErrorKindRateLimit, goerrors.CategoryRateLimit, 429},
		{"server", NewServerError("boom", 503), ErrorKindServer, goerrors.CategoryExternal, 503},
		{"api", NewAPIError("teapot", 418), ErrorKindAPI, goerrors.CategoryExternal, 418},
		{"connection", NewConnectionError(stderrors.New("refused"), "dial failed"), ErrorKindConnection, goerrors.CategoryExternal, http.StatusBadGateway},
		{"signature", NewSignatureError("signature mismatch"), ErrorKindSignature, goerrors.CategoryAuth, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors type, got %T", tc.err)
			}
			if rich.TextCode != string(tc.kind) {
				t.Fatalf("expected text code %q, got %q", tc.kind, rich.TextCode)
			}
			if rich.Category != tc.category {
				t.Fatalf("expected category %q, got %q", tc.category, rich.Category)
			}
			if rich.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, rich.Code)
			}
			if KindOf(tc.err) != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, KindOf(tc.err))
			}
		})
	}
}

func TestRetryAfter_OnlyOnRateLimitErrors(t *testing.T) {
	retry := 30 * time.Second
	got, ok := RetryAfter(NewRateLimitError("slow down", &retry))
	if !ok {
		t.Fatalf("expected retry-after to be present")
	}
	if got.Milliseconds() != 30000 {
		t.Fatalf("expected 30000ms, got %d", got.Milliseconds())
	}

	if _, ok := RetryAfter(NewRateLimitError("slow down", nil)); ok {
		t.Fatalf("expected retry-after to be absent")
	}
	if _, ok := RetryAfter(NewServerError("boom", 500)); ok {
		t.Fatalf("expected no retry-after on server errors")
	}
}

func TestNewTimeoutError_ReferencesTimeout(t *testing.T) {
	err := NewTimeoutError(stderrors.New("context deadline exceeded"), 1500*time.Millisecond)
	if !IsKind(err, ErrorKindConnection) {
		t.Fatalf("expected connection kind, got %q", KindOf(err))
	}
	if !strings.Contains(err.Error(), "1500ms") {
		t.Fatalf("expected timeout in message, got %q", err.Error())
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors type")
	}
	if rich.Metadata[MetaTimeoutMS] != int64(1500) {
		t.Fatalf("expected timeout metadata, got %#v", rich.Metadata)
	}
}

func TestKindOf_UnknownForForeignErrors(t *testing.T) {
	if KindOf(nil) != ErrorKindUnknown {
		t.Fatalf("expected unknown kind for nil")
	}
	if KindOf(stderrors.New("plain")) != ErrorKindUnknown {
		t.Fatalf("expected unknown kind for plain error")
	}
	foreign := goerrors.New("other", goerrors.CategoryInternal).WithTextCode("SOMETHING_ELSE")
	if KindOf(foreign) != ErrorKindUnknown {
		t.Fatalf("expected unknown kind for foreign text code")
	}
}

func TestStatusCode_ReadsResponseStatus(t *testing.T) {
	if got := StatusCode(NewServerError("boom", 502)); got != 502 {
		t.Fatalf("expected 502, got %d", got)
	}
	if got := StatusCode(NewValidationError("bad")); got != 0 {
		t.Fatalf("expected no status for local validation, got %d", got)
	}
}
