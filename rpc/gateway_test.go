package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	mintgate "github.com/mintgate/mintgate"
)

// upstream is a counting JSON-RPC test double.
type upstream struct {
	*httptest.Server
	calls atomic.Int32
}

func newUpstream(status int, body string, header http.Header) *upstream {
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		for key, values := range header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return u
}

// deadEndpoint returns a URL that refuses connections.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	return url
}

func TestGateway_RequiresPrimary(t *testing.T) {
	_, err := New(Endpoints{})
	require.Error(t, err)
}

func TestGateway_PrimaryServes(t *testing.T) {
	primary := newUpstream(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"ok"}`, nil)
	defer primary.Close()
	backup := newUpstream(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"backup"}`, nil)
	defer backup.Close()

	gw, err := New(Endpoints{Primary: primary.URL, Backup: backup.URL})
	require.NoError(t, err)

	resp, err := gw.Forward(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"getSlot"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", gjson.GetBytes(resp.Body, "result").String())
	assert.Equal(t, primary.URL, resp.Endpoint)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(0), backup.calls.Load(), "healthy primary must not touch the backup")
}

func TestGateway_RetryableStatusFailsOver(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			primary := newUpstream(status, `shed`, nil)
			defer primary.Close()
			backup := newUpstream(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"backup"}`, nil)
			defer backup.Close()

			gw, err := New(Endpoints{Primary: primary.URL, Backup: backup.URL})
			require.NoError(t, err)

			resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "backup", gjson.GetBytes(resp.Body, "result").String())
			assert.Equal(t, backup.URL, resp.Endpoint)
			assert.Equal(t, int32(1), primary.calls.Load())
			assert.Equal(t, int32(1), backup.calls.Load())
		})
	}
}

func TestGateway_NonRetryableStatusReturnsVerbatim(t *testing.T) {
	primary := newUpstream(http.StatusNotFound, `not here`, nil)
	defer primary.Close()
	backup := newUpstream(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"backup"}`, nil)
	defer backup.Close()

	gw, err := New(Endpoints{Primary: primary.URL, Backup: backup.URL})
	require.NoError(t, err)

	resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not here", string(resp.Body))
	assert.Equal(t, int32(0), backup.calls.Load(), "4xx other than 403/429 is the caller's problem, not the node's")
}

func TestGateway_TransportErrorFailsOver(t *testing.T) {
	backup := newUpstream(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"backup"}`, nil)
	defer backup.Close()

	gw, err := New(Endpoints{Primary: deadEndpoint(t), Backup: backup.URL})
	require.NoError(t, err)

	resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), backup.calls.Load())
}

func TestGateway_AllUpstreamsFailed(t *testing.T) {
	t.Run("both endpoints down", func(t *testing.T) {
		gw, err := New(Endpoints{Primary: deadEndpoint(t), Backup: deadEndpoint(t)})
		require.NoError(t, err)

		resp, err := gw.Forward(context.Background(), []byte(`{"jsonrpc":"2.0","id":42,"method":"getSlot"}`))
		require.NoError(t, err)

		assert.Equal(t, mintgate.StatusAllUpstreamsFailed, resp.StatusCode)
		assert.Empty(t, resp.Endpoint)
		assert.Equal(t, int64(42), gjson.GetBytes(resp.Body, "id").Int(), "synthesized body echoes the request id")
		assert.Equal(t, "all upstream endpoints unavailable", gjson.GetBytes(resp.Body, "error.message").String())
	})

	t.Run("retryable backup status", func(t *testing.T) {
		primary := newUpstream(http.StatusBadGateway, `down`, nil)
		defer primary.Close()
		backup := newUpstream(http.StatusTooManyRequests, `throttled`, nil)
		defer backup.Close()

		gw, err := New(Endpoints{Primary: primary.URL, Backup: backup.URL})
		require.NoError(t, err)

		resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
		require.NoError(t, err)

		assert.Equal(t, mintgate.StatusAllUpstreamsFailed, resp.StatusCode)
		assert.Equal(t, int32(1), primary.calls.Load())
		assert.Equal(t, int32(1), backup.calls.Load(), "backup gets exactly one attempt")
	})

	t.Run("no backup configured", func(t *testing.T) {
		primary := newUpstream(http.StatusInternalServerError, `down`, nil)
		defer primary.Close()

		gw, err := New(Endpoints{Primary: primary.URL})
		require.NoError(t, err)

		resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
		require.NoError(t, err)

		assert.Equal(t, mintgate.StatusAllUpstreamsFailed, resp.StatusCode)
	})
}

func TestGateway_StripsUpstreamCORSHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Expose-Headers", "X-Foo")
	header.Set("Content-Type", "application/json")
	header.Set("X-Upstream-Node", "node-1")

	primary := newUpstream(http.StatusOK, `{"result":"ok"}`, header)
	defer primary.Close()

	gw, err := New(Endpoints{Primary: primary.URL})
	require.NoError(t, err)

	resp, err := gw.Forward(context.Background(), []byte(`{"id":1}`))
	require.NoError(t, err)

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "node-1", resp.Header.Get("X-Upstream-Node"))
}

func TestGateway_ContextCancellation(t *testing.T) {
	primary := newUpstream(http.StatusOK, `{"result":"ok"}`, nil)
	defer primary.Close()

	gw, err := New(Endpoints{Primary: primary.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gw.Forward(ctx, []byte(`{"id":1}`))
	require.ErrorIs(t, err, context.Canceled)
}
