// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diffeo/go-restview/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := vars[name]
		return value, ok
	}
}

var testEnv = env(map[string]string{
	"HOST":  "example.com",
	"PORT":  "9090",
	"EMPTY": "",
})

func TestExpand(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"plain", "plain"},
		{"$HOST", "example.com"},
		{"${HOST}", "example.com"},
		{"http://${HOST}:$PORT/", "http://example.com:9090/"},
		{"${MISSING:-fallback}", "fallback"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${HOST:-fallback}", "example.com"},
		{"${MISSING-fallback}", "fallback"},
		{"${EMPTY-fallback}", ""},
		{"${MISSING:-}", ""},
		{"cost: $$5", "cost: $5"},
		{"$$HOST", "$HOST"},
	}
	for _, test := range tests {
		out, err := Expand(test.in, testEnv)
		if assert.NoError(t, err, test.in) {
			assert.Equal(t, test.out, out, test.in)
		}
	}
}

func TestExpandUndefined(t *testing.T) {
	_, err := Expand("x${MISSING}y", testEnv)
	var undefined UndefinedError
	if assert.True(t, errors.As(err, &undefined)) {
		assert.Equal(t, "MISSING", undefined.Name)
	}

	_, err = Expand("$MISSING", testEnv)
	assert.Error(t, err)
}

func TestExpandSyntax(t *testing.T) {
	for _, in := range []string{"$", "trailing $", "${1}", "${HOST", "$-x"} {
		_, err := Expand(in, testEnv)
		var syntax SyntaxError
		assert.True(t, errors.As(err, &syntax), in)
	}
}

func TestInterpolate(t *testing.T) {
	in := map[interface{}]interface{}{
		"port":   "${PORT}",
		"count":  7,
		"name":   "$HOST",
		"flag":   true,
		"nested": map[interface{}]interface{}{"x": []interface{}{"${PORT}", "a$$b"}},
		"mixed":  "v${PORT}",
	}
	out, err := Interpolate(in, testEnv)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"port":   9090,
		"count":  7,
		"name":   "example.com",
		"flag":   true,
		"nested": map[string]interface{}{"x": []interface{}{9090, "a$b"}},
		"mixed":  "v9090",
	}, out)
}

func TestParse(t *testing.T) {
	doc := []byte(`
listen: ":${PORT}"
backend: "postgres://${HOST}/restview"
log_level: debug
log_requests: true
shutdown_timeout: 30s
datasets:
  sales:
    title: Sales figures
    describedby: "https://${HOST}/sales"
  inventory:
    title: Inventory
`)
	config, err := Parse(doc, testEnv)
	require.NoError(t, err)
	assert.Equal(t, ":9090", config.Listen)
	assert.Equal(t, "postgres://example.com/restview", config.Backend)
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.LogRequests)
	assert.Equal(t, 30*time.Second, config.ShutdownTimeout)
	assert.Equal(t, []admin.Dataset{
		{Name: "inventory", Title: "Inventory"},
		{Name: "sales", Title: "Sales figures", DescribedBy: "https://example.com/sales"},
	}, config.DatasetList())
}

func TestParseDefaults(t *testing.T) {
	for _, doc := range []string{"", "{}", "datasets: {}"} {
		config, err := Parse([]byte(doc), testEnv)
		if assert.NoError(t, err, doc) {
			assert.Equal(t, ":8080", config.Listen)
			assert.Equal(t, "memory", config.Backend)
			assert.Equal(t, "info", config.LogLevel)
			assert.Equal(t, 10*time.Second, config.ShutdownTimeout)
			assert.Empty(t, config.DatasetList())
		}
	}
}

func TestParseErrors(t *testing.T) {
	docs := []string{
		"listen: [",                 // bad YAML
		"listen: ${NOPE}",           // undefined variable
		"lisen: :80",                // unknown key
		"backend: redis:localhost",  // unknown backend
		"log_level: chatty",         // bad level
		"shutdown_timeout: forever", // bad duration
	}
	for _, doc := range docs {
		_, err := Parse([]byte(doc), testEnv)
		var cerr *Error
		assert.True(t, errors.As(err, &cerr), doc)
	}
}

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "restview.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("listen: \"${RESTVIEW_TEST_LISTEN:-:7070}\"\n"), 0644))
	config, err := Load(path)
	if assert.NoError(t, err) {
		assert.Equal(t, ":7070", config.Listen)
	}

	require.NoError(t, ioutil.WriteFile(path, []byte("log_level: chatty\n"), 0644))
	_, err = Load(path)
	var cerr *Error
	if assert.True(t, errors.As(err, &cerr)) {
		assert.Equal(t, path, cerr.Path)
		assert.Contains(t, err.Error(), path)
	}

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
