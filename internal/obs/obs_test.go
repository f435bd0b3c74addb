package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestMiddleware_AccessLogCarriesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()
	SetLevel(slog.LevelDebug)
	defer SetLevel(slog.LevelInfo)

	handler := RequestContextMiddleware(AccessLogMiddleware("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get("X-Request-Id"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, "http_access", entry["msg"])
	require.Equal(t, "/brew", entry["path"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
	require.EqualValues(t, len("short and stout"), entry["resp_bytes"])
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	require.Equal(t, "test", entry["pkg"])
}

func TestRequestContextMiddleware_GeneratesRequestID(t *testing.T) {
	var seen Correlation
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:41234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, strings.HasPrefix(seen.RequestID, "req-"), "request id %q", seen.RequestID)
	require.Empty(t, seen.TraceID)
	require.Equal(t, "203.0.113.9", seen.ClientAddr)
}

func TestClientAddr_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	require.Equal(t, "198.51.100.7", ClientAddr(req))
}

func TestExtractTraceID_RejectsMalformed(t *testing.T) {
	for _, tp := range []string{
		"",
		"00-short-00f067aa0ba902b7-01",
		"00-00000000000000000000000000000000-00f067aa0ba902b7-01",
		"00-4bf92f3577b34da6a3ce929d0e0e473z-00f067aa0ba902b7-01",
	} {
		require.Empty(t, extractTraceID(tp), "traceparent %q", tp)
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
