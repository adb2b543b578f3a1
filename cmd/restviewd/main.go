// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restviewd runs the administration REST API as an HTTP
// daemon.  Settings come from an optional YAML file (see package
// config), overridden by command-line flags:
//
//     restviewd --config /etc/restview.yaml --listen :8080 \
//         --backend postgres:postgres://localhost/restview
//
// Prometheus metrics are served at /metrics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restview/backend"
	"github.com/diffeo/go-restview/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func flags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			EnvVar: "RESTVIEW_CONFIG",
			Usage:  "YAML configuration file",
		},
		cli.StringFlag{
			Name:  "listen",
			Usage: "[ip]:port for HTTP REST interface",
		},
		cli.GenericFlag{
			Name:  "backend",
			Value: &backend.Backend{},
			Usage: "impl[:address] of the account store",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "minimum level of log messages",
		},
		cli.BoolFlag{
			Name:  "log-requests",
			Usage: "log all requests",
		},
	}
}

// loadConfig reads the configuration file, if any, and applies the
// flags on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.Generic("backend").(*backend.Backend).String()
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-requests") {
		cfg.LogRequests = c.Bool("log-requests")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	logger := logrus.StandardLogger()
	cfg, err := loadConfig(c)
	if err != nil {
		logger.WithError(err).Error("Could not load configuration")
		return err
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	var b backend.Backend
	if err := b.Set(cfg.Backend); err != nil {
		return err
	}
	store, err := b.Store()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"err":     err,
			"backend": b.Implementation,
		}).Error("Could not create account store")
		return err
	}

	handler, err := newHandler(cfg, store, logger, clock.New(), prometheus.DefaultRegisterer, promhttp.Handler())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return listenAndServe(ctx, cfg, handler, logger)
}

func main() {
	app := cli.NewApp()
	app.Name = "restviewd"
	app.Usage = "serve the administration REST API"
	app.Flags = flags()
	app.Action = run
	app.RunAndExitOnError()
}
