package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/idmestash/internal/client"
	"github.com/S0me0neR0man/idmestash/internal/console"
	"github.com/S0me0neR0man/idmestash/internal/metrics"
	"github.com/S0me0neR0man/idmestash/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the console over gRPC and metrics over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "gRPC listen address", EnvVars: []string{"IDME_ADDR"}},
		&cli.StringFlag{Name: "metrics-addr", Usage: "Metrics listen address, empty disables", EnvVars: []string{"IDME_METRICS_ADDR"}},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		conf := e.cfg.Server
		if c.IsSet("addr") {
			conf.Addr = c.String("addr")
		}
		if c.IsSet("metrics-addr") {
			conf.MetricsAddr = c.String("metrics-addr")
		}
		sugar := e.logger.Sugar()

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		defer stop()

		cons := console.New(e.manager, e.logger, console.WithLock(conf.Locked))
		ss := server.NewConsoleServer(cons, e.manager, conf, e.logger)

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return ss.Start(ctx)
		})

		if conf.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(metrics.Register(), promhttp.HandlerOpts{}))
			hs := &http.Server{Addr: conf.MetricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

			eg.Go(func() error {
				sugar.Infow("metrics server start", "addr", conf.MetricsAddr)
				if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return hs.Shutdown(sctx)
			})
		}

		err := eg.Wait()
		ss.Wait()
		return err
	}),
}

var remoteCommand = &cli.Command{
	Name:      "remote",
	Usage:     "Run a console line on a running idme serve",
	ArgsUsage: "idme [args...]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: "localhost:3200", Usage: "Server address", EnvVars: []string{"IDME_ADDR"}},
		&cli.StringFlag{Name: "unlock", Usage: "Unlock code for mutations on a locked console", EnvVars: []string{"IDME_UNLOCK"}},
		&cli.StringFlag{Name: "dump", Usage: "Write the remote image to this file instead of running a line", TakesFile: true},
	},
	Action: func(c *cli.Context) error {
		cl, err := client.NewGRPClient(c.String("addr"), c.String("unlock"))
		if err != nil {
			return err
		}
		defer cl.Close()

		if path := c.String("dump"); path != "" {
			img, err := cl.Dump(c.Context)
			if err != nil {
				return err
			}
			return os.WriteFile(path, img, 0o600)
		}

		code, lines, err := cl.Exec(c.Context, strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return fmt.Errorf("remote exec: %w", err)
		}
		out := console.WriterResponder{W: os.Stdout}
		for _, l := range lines {
			out.Info(l)
		}
		return codeExit(code)
	},
}
