package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "idmecheck",
		Usage: "load check a running idme serve with concurrent set and verify rounds",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:3200", Usage: "Server address", EnvVars: []string{"IDME_ADDR"}},
			&cli.StringFlag{Name: "unlock", Usage: "Unlock code of a locked console", EnvVars: []string{"IDME_UNLOCK"}},
			&cli.StringSliceFlag{Name: "item", Value: cli.NewStringSlice("bootmode", "postmode", "bootcount", "serial"), Usage: "Items to exercise, at least 4 bytes each"},
			&cli.DurationFlag{Name: "duration", Usage: "Stop after this long, 0 runs until interrupted"},
			&cli.BoolFlag{Name: "debug", Usage: "Debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	var (
		logger *zap.Logger
		err    error
	)
	if c.Bool("debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	checker, err := NewChecker(c.String("addr"), c.String("unlock"), c.StringSlice("item"), logger)
	if err != nil {
		return err
	}
	start := time.Now()
	checker.Go(ctx)
	err = checker.Wait()

	rounds, failures := checker.Stats()
	logger.Sugar().Infow("idmecheck done", "rounds", rounds, "failures", failures, "elapsed", time.Since(start))
	if failures > 0 {
		return cli.Exit("idmecheck: verification failures", 1)
	}
	return err
}
