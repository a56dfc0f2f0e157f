package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
)

func TestServeAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Image = config.ImageConfig{Channels: 2, Rows: 1, Cols: 2}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, ln, zerolog.Nop()) }()

	base := "http://" + ln.Addr().String()
	req, err := http.NewRequest(http.MethodPut, base+cfg.Endpoint.Path, strings.NewReader(`[[[1,2]],[[3,4]]]`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[[[[1,2]],[[3,4]]]]`, string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "mock_endpoint_requests_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadConfig([]string{"-listen", "127.0.0.1:9999", "-rps", "5", "-log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Mock.Listen)
	assert.Equal(t, 5, cfg.Mock.RequestsPerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cfg, err = loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = loadConfig([]string{"-rps=-5"})
	require.ErrorContains(t, err, "mock.requests_per_second must not be negative")

	_, err = loadConfig([]string{"-no-such-flag"})
	require.Error(t, err)
}
