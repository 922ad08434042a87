package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPreservesStatusAndBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "limit=5&offset=10", r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"title":"updated"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Custom", "kept")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9}`))
	}))
	defer upstream.Close()

	forwarder := NewForwarder(5*time.Second, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/todos/9?limit=5&offset=10", strings.NewReader(`{"title":"updated"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	forwarder.Forward(w, req, upstream.URL, "/api/todos/9")

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `{"id":9}`, w.Body.String())
	assert.Equal(t, "kept", w.Header().Get("X-Custom"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestForwardUpstreamErrorStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusUnprocessableEntity)
	}))
	defer upstream.Close()

	forwarder := NewForwarder(5*time.Second, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	forwarder.Forward(w, req, upstream.URL, "/api/todos")

	// Upstream errors flow back untranslated.
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "boom\n", w.Body.String())
}

func TestForwardConnectionRefusedIs503(t *testing.T) {
	forwarder := NewForwarder(time.Second, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	forwarder.Forward(w, req, "http://127.0.0.1:0", "/api/todos")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "service unavailable")
}

func TestForwardCopiesRequestHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	forwarder := NewForwarder(5*time.Second, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	forwarder.Forward(w, req, upstream.URL, "/api/todos")

	assert.Equal(t, http.StatusOK, w.Code)
}
