package identity

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	issuer := NewTokenIssuer("test-secret", 30*time.Minute)
	svc := NewService(repo, issuer, 7*24*time.Hour)
	handler := NewHandler(discardLogger(), svc)

	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, repo
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func getWithBearer(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response, target any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(target))
}

func registerAndLogin(t *testing.T, server *httptest.Server) TokenPair {
	t.Helper()
	res := postJSON(t, server.URL+"/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "supersecret1",
		"first_name": "Alice", "last_name": "Smith",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = postJSON(t, server.URL+"/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "supersecret1",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var pair TokenPair
	decodeBody(t, res, &pair)
	return pair
}

func TestRegisterEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res := postJSON(t, server.URL+"/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "supersecret1",
		"first_name": "Alice", "last_name": "Smith",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]any
	decodeBody(t, res, &body)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "password_hash")
}

func TestRegisterValidation(t *testing.T) {
	server, _ := newTestServer(t)

	// Password below minimum length.
	res := postJSON(t, server.URL+"/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "short",
		"first_name": "Alice", "last_name": "Smith",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()

	res = postJSON(t, server.URL+"/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "supersecret1",
		"first_name": "Alice", "last_name": "Smith",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
}

func TestRegisterDuplicateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body := map[string]string{
		"email": "alice@example.com", "password": "supersecret1",
		"first_name": "Alice", "last_name": "Smith",
	}
	res := postJSON(t, server.URL+"/api/auth/register", body, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = postJSON(t, server.URL+"/api/auth/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
}

func TestLoginEndpointUniform401(t *testing.T) {
	server, _ := newTestServer(t)
	registerAndLogin(t, server)

	wrongPass := postJSON(t, server.URL+"/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrongpass99",
	}, nil)
	unknown := postJSON(t, server.URL+"/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "whatever123",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, wrongPass.StatusCode)
	require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)

	var a, b map[string]any
	decodeBody(t, wrongPass, &a)
	decodeBody(t, unknown, &b)
	// Identical bodies: callers cannot probe which part was wrong.
	assert.Equal(t, a["detail"], b["detail"])
	assert.Equal(t, "could not validate credentials", a["detail"])
}

func TestMeEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	pair := registerAndLogin(t, server)

	res := getWithBearer(t, server.URL+"/api/auth/me", pair.AccessToken)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]any
	decodeBody(t, res, &body)
	assert.Equal(t, "alice@example.com", body["email"])

	res = getWithBearer(t, server.URL+"/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()

	res = getWithBearer(t, server.URL+"/api/auth/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()
}

func TestValidateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	pair := registerAndLogin(t, server)

	res := getWithBearer(t, server.URL+"/api/auth/validate", pair.AccessToken)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body struct {
		Valid bool `json:"valid"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	decodeBody(t, res, &body)
	assert.True(t, body.Valid)
	assert.Equal(t, "alice@example.com", body.User.Email)
}

func TestRefreshEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	pair := registerAndLogin(t, server)

	res := postJSON(t, server.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var rotated TokenPair
	decodeBody(t, res, &rotated)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replay of the consumed token fails with the uniform 401.
	res = postJSON(t, server.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()
}

func TestLogoutEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	pair := registerAndLogin(t, server)

	res := postJSON(t, server.URL+"/api/auth/logout", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, map[string]string{"Authorization": "Bearer " + pair.AccessToken})
	require.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	// Logout requires a valid access token.
	res = postJSON(t, server.URL+"/api/auth/logout", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()

	// The revoked refresh token is dead.
	res = postJSON(t, server.URL+"/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()
}

func TestListUsersEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	pair := registerAndLogin(t, server)

	res := getWithBearer(t, server.URL+"/api/auth/users", pair.AccessToken)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var users []map[string]any
	decodeBody(t, res, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "alice@example.com", users[0]["email"])

	res = getWithBearer(t, server.URL+"/api/auth/users", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res.Body.Close()
}
