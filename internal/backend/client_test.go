package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/domain"
)

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/execute", r.URL.Path)

		var req struct {
			Type   string         `json:"type"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "computer.screenshot", req.Type)
		assert.Equal(t, "/tmp/shot.png", req.Params["output"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"path": "/tmp/shot.png"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	result, err := c.Execute(context.Background(), domain.Action{
		Type:   "computer.screenshot",
		Params: map[string]any{"output": "/tmp/shot.png"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "/tmp/shot.png", result.Data["path"])
}

func TestExecute_BackendReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "helper not found",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	result, err := c.Execute(context.Background(), domain.Action{Type: "computer.click"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "helper not found", result.Error)
}

func TestExecute_Non2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Execute(context.Background(), domain.Action{Type: "shell.exec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "boom")
}

func TestExecute_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Execute(ctx, domain.Action{Type: "shell.exec"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, time.Second)
	_, err := c.Execute(context.Background(), domain.Action{Type: "file.read"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.Health(context.Background()))

	healthy = false
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
