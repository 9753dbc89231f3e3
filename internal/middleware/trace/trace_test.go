package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	applog "expenses/internal/log"
)

func newTestMiddleware(t *testing.T) (*Middleware, *bytes.Buffer, *tracetest.SpanRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Output: &buf, Format: "json"})
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return NewMiddleware(logger, tp.Tracer("test"), func(*http.Request) string { return "192.0.2.1" }), &buf, rec
}

func TestHandlerAssignsRequestID(t *testing.T) {
	m, buf, spans := newTestMiddleware(t)

	mux := http.NewServeMux()
	var seenID string
	mux.HandleFunc("GET /expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	m.Handler(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses/3", nil))

	require.NotEmpty(t, seenID)
	assert.True(t, strings.HasPrefix(seenID, "req_"))
	assert.Equal(t, seenID, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"inside handler"`)
	assert.Contains(t, logs, `"request_id":"`+seenID+`"`)
	assert.Contains(t, logs, `"level":"WARN","msg":"HTTP request completed"`)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /expenses/{id}", ended[0].Name())
}

func TestHandlerKeepsUpstreamRequestID(t *testing.T) {
	m, _, _ := newTestMiddleware(t)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "edge-1234")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "edge-1234", rec.Header().Get(HeaderRequestID))

	req.Header.Set(HeaderRequestID, "has space")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "has space", rec.Header().Get(HeaderRequestID))
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
