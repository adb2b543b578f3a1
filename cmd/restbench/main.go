// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restbench provides a load-generation tool for the
// administration REST API.
package main

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/restclient"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

type benchWork struct {
	Client      *restclient.Client
	Concurrency int
	Clock       clock.Clock
	Logger      logrus.FieldLogger
}

// Run calls runner from Concurrency goroutines and logs how long
// they took to do count operations between them.
func (bench *benchWork) Run(op string, runner func() int64) {
	var total int64
	start := bench.Clock.Now()
	wg := sync.WaitGroup{}
	wg.Add(bench.Concurrency)
	for i := 0; i < bench.Concurrency; i++ {
		go func() {
			defer wg.Done()
			atomic.AddInt64(&total, runner())
		}()
	}
	wg.Wait()
	elapsed := bench.Clock.Now().Sub(start)
	fields := logrus.Fields{
		"op":       op,
		"count":    total,
		"duration": elapsed,
	}
	if elapsed > 0 {
		fields["rate"] = float64(total) / elapsed.Seconds()
	}
	bench.Logger.WithFields(fields).Info("Finished")
}

// putAccounts creates count accounts with random IDs.
func (bench *benchWork) putAccounts(ctx context.Context, count int, roles []string) {
	ids := make(chan string)
	go func() {
		for i := 0; i < count; i++ {
			ids <- uuid.NewV4().String()
		}
		close(ids)
	}()
	bench.Run("put", func() (n int64) {
		for id := range ids {
			_, _, err := bench.Client.PutAccount(ctx, admin.Account{ID: id, Roles: roles}, "")
			if err != nil {
				bench.Logger.WithError(err).WithField("account", id).Error("Could not create account")
				continue
			}
			n++
		}
		return
	})
}

// getAccounts fetches every account rounds times.  After the first
// round every fetch should be a conditional GET answered from the
// client's cache.
func (bench *benchWork) getAccounts(ctx context.Context, rounds int) error {
	accounts, err := bench.Client.Accounts(ctx)
	if err != nil {
		return err
	}
	ids := make(chan string)
	go func() {
		for r := 0; r < rounds; r++ {
			for _, account := range accounts {
				ids <- account.ID
			}
		}
		close(ids)
	}()
	bench.Run("get", func() (n int64) {
		for id := range ids {
			if _, _, err := bench.Client.Account(ctx, id); err != nil {
				bench.Logger.WithError(err).WithField("account", id).Error("Could not get account")
				continue
			}
			n++
		}
		return
	})
	return nil
}

// clearAccounts deletes every account.
func (bench *benchWork) clearAccounts(ctx context.Context) error {
	accounts, err := bench.Client.Accounts(ctx)
	if err != nil {
		return err
	}
	ids := make(chan string, len(accounts))
	for _, account := range accounts {
		ids <- account.ID
	}
	close(ids)
	bench.Run("delete", func() (n int64) {
		for id := range ids {
			if err := bench.Client.DeleteAccount(ctx, id, ""); err != nil {
				bench.Logger.WithError(err).WithField("account", id).Error("Could not delete account")
				continue
			}
			n++
		}
		return
	})
	return nil
}

var bench benchWork

var putCommand = cli.Command{
	Name:  "put",
	Usage: "create many accounts",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 100,
			Usage: "number of accounts to create",
		},
		cli.StringSliceFlag{
			Name:  "role",
			Usage: "grant each account this role",
		},
	},
	Action: func(c *cli.Context) error {
		bench.putAccounts(context.Background(), c.Int("count"), c.StringSlice("role"))
		return nil
	},
}

var getCommand = cli.Command{
	Name:  "get",
	Usage: "fetch every account repeatedly",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "rounds",
			Value: 3,
			Usage: "fetch each account this many times",
		},
	},
	Action: func(c *cli.Context) error {
		return bench.getAccounts(context.Background(), c.Int("rounds"))
	},
}

var clearCommand = cli.Command{
	Name:  "clear",
	Usage: "delete all of the accounts",
	Action: func(c *cli.Context) error {
		return bench.clearAccounts(context.Background())
	},
}

func main() {
	app := cli.NewApp()
	app.Usage = "benchmark the administration REST API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Value: "http://localhost:8080/",
			Usage: "base URL of the REST server",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: runtime.NumCPU(),
			Usage: "run this many jobs in parallel",
		},
	}
	app.Commands = []cli.Command{
		putCommand,
		getCommand,
		clearCommand,
	}
	app.Before = func(c *cli.Context) (err error) {
		bench.Client, err = restclient.New(c.String("url"))
		if err != nil {
			return
		}
		bench.Concurrency = c.Int("concurrency")
		bench.Clock = clock.New()
		bench.Logger = logrus.StandardLogger()
		return
	}
	app.RunAndExitOnError()
}
