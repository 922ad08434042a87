package httpx

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/taskgate/taskgate/testing"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{ErrNotFound, 404, "Not Found"},
		{ErrDuplicate, 400, "Duplicate"},
		{ErrValidation, 400, "Validation Failed"},
		{ErrForbidden, 403, "Forbidden"},
		{ErrUnauthorized, 401, "Unauthorized"},
		{ErrUnavailable, 503, "Upstream Unavailable"},
		{fmt.Errorf("surprise"), 500, "Internal Error"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		RespondError(w, tc.err)
		assert.Equal(t, tc.status, w.Code)

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, tc.title, problem.Title)
		assert.Equal(t, tc.status, problem.Status)
	}
}

func TestRespondErrorWrappedSentinel(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, fmt.Errorf("fetch upstream: %w", ErrUnavailable))
	assert.Equal(t, 503, w.Code)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, fmt.Errorf("pq: connection reset"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Empty(t, problem.Detail)
}

func TestJSONSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, 201, map[string]string{"ok": "yes"})

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
}
