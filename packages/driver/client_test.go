package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	crashed     atomic.Bool
	ready       atomic.Bool
	statusCalls atomic.Int32
	lastScript  map[string]any
	result      string
	deleted     atomic.Bool
}

func newFakeDriver(t *testing.T) (*fakeDriver, *httptest.Server) {
	t.Helper()
	fd := &fakeDriver{result: `{"value":{"passed":2,"failed":0,"failures":[]}}`}
	fd.ready.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		fd.statusCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": map[string]any{"ready": fd.ready.Load(), "crashed": fd.crashed.Load(), "message": "ok"},
		})
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":{"sessionId":"abc-123","capabilities":{}}}`))
	})
	mux.HandleFunc("POST /session/{id}/execute/sync", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fd.lastScript = body
		if r.PathValue("id") != "abc-123" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"value":{"error":"invalid session id","message":"unknown session"}}`))
			return
		}
		w.Write([]byte(fd.result))
	})
	mux.HandleFunc("DELETE /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		fd.deleted.Store(true)
		w.Write([]byte(`{"value":null}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fd, server
}

func TestClient_StartSession(t *testing.T) {
	_, server := newFakeDriver(t)

	client := NewClient(server.URL + "/")
	id, err := client.StartSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "abc-123", client.SessionID())
	assert.Equal(t, server.URL, client.Address())
}

func TestClient_ExecuteScript(t *testing.T) {
	fd, server := newFakeDriver(t)

	client := NewClient(server.URL)
	_, err := client.StartSession(context.Background())
	require.NoError(t, err)

	result, err := client.ExecuteScript(context.Background(), &ScriptRequest{
		Name:    "test_a.js",
		Script:  "return {passed: 2};",
		Args:    []any{map[string]any{"wifi": "x"}},
		Context: "chrome",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passed)
	assert.True(t, result.OK())
	assert.Equal(t, "return {passed: 2};", fd.lastScript["script"])
	assert.Equal(t, "chrome", fd.lastScript["context"])
	assert.Equal(t, float64(2000), fd.lastScript["timeout"])
}

func TestClient_ExecuteScriptFailures(t *testing.T) {
	fd, server := newFakeDriver(t)
	fd.result = `{"value":{"passed":1,"failed":1,"failures":[{"name":"check title","message":"expected foo"},"bare"]}}`

	client := NewClient(server.URL, WithSession("abc-123"))
	result, err := client.ExecuteScript(context.Background(), &ScriptRequest{Name: "test_b.js"})
	require.NoError(t, err)

	assert.False(t, result.OK())
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "check title", result.Failures[0].Name)
	assert.Equal(t, "bare", result.Failures[1].Message)
	assert.Equal(t, "check title: expected foo\nbare", result.DescribeFailures())
}

func TestClient_ExecuteScriptRemoteError(t *testing.T) {
	_, server := newFakeDriver(t)

	client := NewClient(server.URL, WithSession("other"))
	_, err := client.ExecuteScript(context.Background(), &ScriptRequest{Name: "test_c.js"})
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "invalid session id", remote.Code)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
}

func TestClient_ExecuteScriptWithoutSession(t *testing.T) {
	_, server := newFakeDriver(t)

	client := NewClient(server.URL)
	_, err := client.ExecuteScript(context.Background(), &ScriptRequest{Name: "test_d.js"})
	assert.Error(t, err)
}

func TestClient_CheckForCrash(t *testing.T) {
	fd, server := newFakeDriver(t)

	client := NewClient(server.URL, WithSession("abc-123"))
	assert.False(t, client.CheckForCrash())

	fd.crashed.Store(true)
	assert.True(t, client.CheckForCrash())
	calls := fd.statusCalls.Load()

	fd.crashed.Store(false)
	assert.True(t, client.CheckForCrash(), "crash stays reported")
	assert.Equal(t, calls, fd.statusCalls.Load())

	_, err := client.ExecuteScript(context.Background(), &ScriptRequest{Name: "test_e.js"})
	assert.True(t, failure.Is(err, failure.Crashed))
}

func TestClient_CheckForCrashAfterProcessGone(t *testing.T) {
	_, server := newFakeDriver(t)
	client := NewClient(server.URL, WithStatusTimeout(time.Second))
	server.Close()

	assert.NotPanics(t, func() {
		assert.True(t, client.CheckForCrash())
		assert.True(t, client.CheckForCrash())
	})
}

func TestClient_CheckForCrashIgnoresRateLimit(t *testing.T) {
	fd, server := newFakeDriver(t)
	client := NewClient(server.URL, WithRateLimit(0.1, 1), WithStatusTimeout(time.Second))

	_, err := client.Status(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.False(t, client.CheckForCrash(), "check %d", i)
	}
	assert.Equal(t, int32(4), fd.statusCalls.Load())
}

func TestClient_Close(t *testing.T) {
	fd, server := newFakeDriver(t)

	client := NewClient(server.URL)
	_, err := client.StartSession(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.True(t, fd.deleted.Load())
	assert.Empty(t, client.SessionID())

	// closing twice is a no-op
	require.NoError(t, client.Close(context.Background()))
}

func TestClient_RateLimit(t *testing.T) {
	_, server := newFakeDriver(t)

	client := NewClient(server.URL, WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Status(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_WaitForReady(t *testing.T) {
	fd, server := newFakeDriver(t)
	fd.ready.Store(false)

	go func() {
		time.Sleep(50 * time.Millisecond)
		fd.ready.Store(true)
	}()

	client := NewClient(server.URL)
	err := client.WaitForReady(context.Background(), 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, err)
}

func TestClient_WaitForReadyTimeout(t *testing.T) {
	fd, server := newFakeDriver(t)
	fd.ready.Store(false)

	client := NewClient(server.URL)
	err := client.WaitForReady(context.Background(), 50*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		address string
		wantErr bool
	}{
		{"http://localhost:4444", false},
		{"https://grid.example.com/wd/hub", false},
		{"", true},
		{"localhost:4444", true},
		{"ftp://host", true},
		{"http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
