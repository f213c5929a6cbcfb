package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"memoryhttpd/internal/api"
	"memoryhttpd/internal/config"
	"memoryhttpd/internal/logs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRun_InFlightTTLWriteSurvivesShutdown(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.Config{
		Addr:            addr,
		LogLevel:        logs.ERROR,
		NoLoggingColors: true,
		LogBuffer:       10,
		QueueSize:       25,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- run(ctx, cfg) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPut, "http://"+addr+"/foo", pr)
	require.NoError(t, err)
	req.Header.Set(api.ExpireHeader, "60000")

	type result struct {
		status int
		body   string
		err    error
	}
	respCh := make(chan result, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			respCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		respCh <- result{status: resp.StatusCode, body: string(b)}
	}()

	_, err = pw.Write([]byte("hel"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	// Shutdown starts while the PUT body is still being read.
	cancel()
	time.Sleep(50 * time.Millisecond)

	_, err = pw.Write([]byte("lo"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case res := <-respCh:
		require.NoError(t, res.err)
		assert.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, "hello", res.body)
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight PUT did not complete")
	}

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
}
