// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"net"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/config"
	"github.com/diffeo/go-restview/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// newHandler assembles the daemon's HTTP handler: the admin API and
// the metrics endpoint behind the middleware chain.
func newHandler(
	cfg config.Config,
	store admin.Store,
	logger logrus.FieldLogger,
	clk clock.Clock,
	reg prometheus.Registerer,
	metrics http.Handler,
) (http.Handler, error) {
	api, err := admin.New(store, cfg.DatasetList())
	if err != nil {
		return nil, err
	}
	r := mux.NewRouter()
	r.Handle("/metrics", metrics)
	api.Populate(r, logger)

	instrument, err := middleware.Metrics(reg)
	if err != nil {
		return nil, err
	}
	chain := middleware.New(middleware.RequestID())
	if cfg.LogRequests {
		chain = chain.Append(middleware.Logger(logger, clk))
	}
	chain = chain.Append(instrument, middleware.Recover(logger))
	return chain.Then(r), nil
}

// listenAndServe serves HTTP on cfg.Listen until ctx is done, then
// shuts down gracefully.
func listenAndServe(ctx context.Context, cfg config.Config, handler http.Handler, logger logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	return serve(ctx, ln, cfg, handler, logger)
}

func serve(ctx context.Context, ln net.Listener, cfg config.Config, handler http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{Handler: handler}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()
	logger.WithField("listen", ln.Addr().String()).Info("Serving HTTP")

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != http.ErrServerClosed {
		return err
	}
	return nil
}
