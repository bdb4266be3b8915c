package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-tripline/core"
)

const DefaultMaxBodyBytes int64 = 1 << 20

type InboundProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type HTTPHandler struct {
	Processor    InboundProcessor
	Logger       core.Logger
	MaxBodyBytes int64
}

// NewHTTPHandler exposes processor as a POST endpoint. Signature failures
// answer 401 without detail, handler failures 500, everything else 200.
func NewHTTPHandler(processor InboundProcessor, logger core.Logger) *HTTPHandler {
	return &HTTPHandler{
		Processor:    processor,
		Logger:       logger,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if h == nil || h.Processor == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "webhook processor not configured"})
		return
	}

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unable to read body"})
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ",")
	}

	result, err := h.Processor.Process(r.Context(), core.InboundRequest{
		Surface: "webhook",
		Headers: headers,
		Body:    body,
		Metadata: map[string]any{
			"remote_addr": r.RemoteAddr,
			"path":        r.URL.Path,
		},
	})
	switch {
	case core.IsKind(err, core.ErrorKindSignature):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
	case err != nil:
		core.LogWithFields(r.Context(), h.Logger, core.LevelError, "webhook processing failed", map[string]any{
			"error": err.Error(),
		})
		status := result.StatusCode
		if status < http.StatusInternalServerError {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": "processing failed"})
	default:
		status := result.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		response := map[string]any{"accepted": result.Accepted}
		if deduped, _ := result.Metadata["deduped"].(bool); deduped {
			response["deduped"] = true
		}
		writeJSON(w, status, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var _ InboundProcessor = (*Processor)(nil)
