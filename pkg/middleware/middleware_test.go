package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowdeck/pkg/observability"
)

func TestPrincipalMiddleware(t *testing.T) {
	var seen int64
	var attached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, attached = GetPrincipal(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := NewPrincipalMiddleware(false).Handler(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid id", "42", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"non-numeric", "abc", http.StatusUnauthorized},
		{"zero", "0", http.StatusUnauthorized},
		{"negative", "-3", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attached = false
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set(PrincipalHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.True(t, attached)
				assert.Equal(t, int64(42), seen)
			} else {
				assert.False(t, attached)
			}
		})
	}
}

func TestPrincipalMiddleware_Optional(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, attached := GetPrincipal(r)
		assert.False(t, attached)
		w.WriteHeader(http.StatusOK)
	})
	handler := NewPrincipalMiddleware(true).Handler(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := RequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/v1/projects", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request handled", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/projects", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}

func TestRequestLogging_ServerErrorLogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := RequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
}
