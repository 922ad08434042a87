package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/internal/platform/httpx"
)

func TestClientVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/validate", r.URL.Path)
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"user":{"id":42,"email":"alice@example.com","first_name":"Alice","last_name":"Smith"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	identity, err := client.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice Smith", identity.DisplayName)
	assert.Equal(t, SourceDirect, identity.Source)
}

func TestClientVerifyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	_, err := client.Verify(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClientVerifyUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	// A failing token service is an outage, not a rejected credential.
	client := NewClient(server.URL, 2*time.Second)
	_, err := client.Verify(context.Background(), "any-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrUnavailable))
	assert.False(t, errors.Is(err, ErrInvalidToken))
}

func TestClientVerifyUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Verify(context.Background(), "any-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrUnavailable))
}
