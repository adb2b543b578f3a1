// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/config"
	"github.com/diffeo/go-restview/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// parse runs the flag parser over args and returns the resulting
// configuration.
func parse(t *testing.T, args ...string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	app := cli.NewApp()
	app.Flags = flags()
	app.Action = func(c *cli.Context) error {
		cfg, err = loadConfig(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"restviewd"}, args...)))
	return cfg, err
}

func TestFlagsDefault(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFlagsOverride(t *testing.T) {
	cfg, err := parse(t,
		"--listen", "127.0.0.1:9000",
		"--backend", "postgres:dbname=restview",
		"--log-level", "debug",
		"--log-requests",
	)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "postgres:dbname=restview", cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogRequests)
}

func TestFlagsBadLevel(t *testing.T) {
	_, err := parse(t, "--log-level", "chatty")
	assert.Error(t, err)
}

func TestFlagsConfigFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "restviewd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "restview.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
listen: ":7070"
log_level: warn
datasets:
  sales:
    title: Sales
`), 0644))

	cfg, err := parse(t, "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, []admin.Dataset{{Name: "sales", Title: "Sales"}}, cfg.DatasetList())

	os.Setenv("RESTVIEW_CONFIG", path)
	defer os.Unsetenv("RESTVIEW_CONFIG")
	cfg, err = parse(t)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, err = parse(t, "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func testHandler(t *testing.T, cfg config.Config) (http.Handler, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	handler, err := newHandler(cfg, memory.New(), logger, clock.NewMock(), reg,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	require.NoError(t, err)
	return handler, hook
}

func TestHandler(t *testing.T) {
	cfg := config.Default()
	cfg.LogRequests = true
	handler, hook := testHandler(t, cfg)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, "Request", entry.Message)
		assert.Equal(t, 200, entry.Data["status"])
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "restview_http_requests_total")
}

func TestHandlerQuiet(t *testing.T) {
	handler, hook := testHandler(t, config.Default())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/datasets", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, hook.AllEntries())
}

func TestServe(t *testing.T) {
	cfg := config.Default()
	cfg.ShutdownTimeout = time.Second
	handler, _ := testHandler(t, cfg)
	logger, _ := logtest.NewNullLogger()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, cfg, handler, logger)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/datasets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
