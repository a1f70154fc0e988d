package lockctl_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tainadesingsil-coder/Interaopen/internal/lockctl"
)

func TestUnlock_PostsLockID(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := lockctl.NewClient(srv.URL)
	require.NoError(t, c.Unlock(context.Background(), "door-1"))

	assert.Equal(t, "door-1", got["lock_id"])
	assert.NotEmpty(t, got["requested_at"])
}

func TestUnlock_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := lockctl.NewClient(srv.URL)
	err := c.Unlock(context.Background(), "door-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestUnlock_UnreachableController(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := lockctl.NewClient(url)
	require.Error(t, c.Unlock(context.Background(), "door-1"))
}
