// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package config loads the daemon's YAML configuration file.
//
// Every string in the file may refer to environment variables, using
// shell-like syntax:
//
//     $VAR or ${VAR}     the value of VAR, which must be set
//     ${VAR:-default}    VAR if it is set and non-empty, else default
//     ${VAR-default}     VAR if it is set, else default
//     $$                 a literal $
//
// After substitution, a string made only of decimal digits becomes an
// integer.  A typical file:
//
//     listen: ":${PORT:-8080}"
//     backend: "postgres:${DATABASE_URL}"
//     log_level: info
//     datasets:
//       sales:
//         title: Sales figures
//         describedby: https://wiki.example.com/sales
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"time"

	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/backend"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config is the complete daemon configuration.
type Config struct {
	// Listen is the address to serve HTTP on.
	Listen string `mapstructure:"listen"`

	// Backend is the account store, as "impl:address".
	Backend string `mapstructure:"backend"`

	// LogLevel is a logrus level name.
	LogLevel string `mapstructure:"log_level"`

	// LogRequests enables one log line per request.
	LogRequests bool `mapstructure:"log_requests"`

	// ShutdownTimeout bounds how long a graceful shutdown waits
	// for requests in flight.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Datasets maps dataset names to their descriptions.
	Datasets map[string]admin.Dataset `mapstructure:"datasets"`
}

// Default returns the configuration used for anything a file does
// not set.
func Default() Config {
	return Config{
		Listen:          ":8080",
		Backend:         "memory",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Error is returned for any problem loading a configuration.
type Error struct {
	// Path is the file being loaded, if any.
	Path string

	// Err is the underlying problem.
	Err error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads a configuration file, interpolating the process
// environment.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	config, err := Parse(data, os.LookupEnv)
	if cerr, ok := err.(*Error); ok {
		cerr.Path = path
	}
	return config, err
}

// Parse parses a configuration document, resolving variables with
// lookup, and fills in defaults.
func Parse(data []byte, lookup func(string) (string, bool)) (Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, &Error{Err: err}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	value, err := Interpolate(raw, lookup)
	if err != nil {
		return Config{}, &Error{Err: err}
	}

	config := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return Config{}, &Error{Err: err}
	}
	if err = decoder.Decode(value); err != nil {
		return Config{}, &Error{Err: err}
	}
	if err = config.Validate(); err != nil {
		return Config{}, &Error{Err: err}
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	var b backend.Backend
	if err := b.Set(c.Backend); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown_timeout %v", c.ShutdownTimeout)
	}
	for name := range c.Datasets {
		if name == "" {
			return fmt.Errorf("dataset with empty name")
		}
	}
	return nil
}

// DatasetList returns the configured datasets sorted by name, with
// their Name fields filled in.
func (c Config) DatasetList() []admin.Dataset {
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	datasets := make([]admin.Dataset, len(names))
	for i, name := range names {
		datasets[i] = c.Datasets[name]
		datasets[i].Name = name
	}
	return datasets
}
