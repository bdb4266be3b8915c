package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tripline/core"
)

func TestRESTAdapter_SendsHeadersAndBody(t *testing.T) {
	var gotMethod, gotAuth, gotCustom, gotBody, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Default")
		gotQuery = r.URL.Query().Get("mode")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.DefaultHeaders["X-Default"] = "yes"
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "post",
		URL:     server.URL + "/v1/evaluate",
		Headers: map[string]string{"Authorization": "Bearer sk"},
		Query:   map[string]string{"mode": "fast"},
		Body:    []byte(`{"text":"hi"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}
	if gotMethod != http.MethodPost || gotAuth != "Bearer sk" || gotCustom != "yes" || gotQuery != "fast" {
		t.Fatalf("unexpected request: method=%q auth=%q custom=%q query=%q", gotMethod, gotAuth, gotCustom, gotQuery)
	}
	if gotBody != `{"text":"hi"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if Header(res.Headers, "retry-after") != "7" {
		t.Fatalf("expected case-insensitive header lookup, got %#v", res.Headers)
	}
}

func TestRESTAdapter_ResponseLimitReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != string(core.ErrorKindAPI) {
		t.Fatalf("expected %q text code, got %q", core.ErrorKindAPI, rich.TextCode)
	}
}

func TestRESTAdapter_TimeoutReturnsConnectionError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})
	if !core.IsKind(err, core.ErrorKindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !strings.Contains(err.Error(), "50ms") {
		t.Fatalf("expected timeout in message, got %q", err.Error())
	}
}

func TestRESTAdapter_CallerDeadlineIsNotReportedAsConfiguredTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL,
		Timeout: 30 * time.Second,
	})
	if !core.IsKind(err, core.ErrorKindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if strings.Contains(err.Error(), "30000ms") {
		t.Fatalf("caller deadline reported as configured timeout: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "caller context deadline exceeded") {
		t.Fatalf("expected caller deadline in message, got %q", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

type failingDoer struct {
	err error
}

func (d failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, d.err
}

func TestRESTAdapter_TransportFailureReturnsConnectionError(t *testing.T) {
	adapter := NewRESTAdapter(failingDoer{err: errors.New("connection refused")})
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "http://127.0.0.1:1"})
	if !core.IsKind(err, core.ErrorKindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if !core.IsKind(err, core.ErrorKindConnection) {
		t.Fatalf("expected connection error for nil adapter, got %v", err)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if !core.IsKind(err, core.ErrorKindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
