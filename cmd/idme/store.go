package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/S0me0neR0man/idmestash/internal/blockdev"
	"github.com/S0me0neR0man/idmestash/internal/config"
	"github.com/S0me0neR0man/idmestash/internal/idme"
)

// env everything a command needs, built from the config file and the global flags
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	dev     blockdev.Device
	region  *blockdev.Region
	manager *idme.Manager
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("backend") {
		cfg.Device.Backend = c.String("backend")
	}
	if c.IsSet("path") {
		cfg.Device.Path = c.String("path")
	}
	if c.IsSet("psn") {
		cfg.Device.PSN = uint32(c.Uint("psn"))
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("development") {
		cfg.Log.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(conf config.Log) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(conf.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if conf.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = level
	return zc.Build()
}

func openDevice(conf config.Device) (blockdev.Device, error) {
	switch conf.Backend {
	case config.BackendFile:
		return blockdev.OpenFileDevice(conf.Path, conf.BlockSize, conf.PSN)
	case config.BackendBadger:
		return blockdev.OpenBadgerDevice(conf.Path, conf.BlockSize, conf.PSN)
	case config.BackendMemory:
		return blockdev.NewMemDevice(conf.BlockSize, conf.PSN), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, conf.Backend)
	}
}

// openRegion loads the config and opens the device without touching the store
func openRegion(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	dev, err := openDevice(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	region := blockdev.NewRegion(dev, cfg.Region.Start, cfg.Region.Blocks, logger)
	return &env{cfg: cfg, logger: logger, dev: dev, region: region}, nil
}

// openEnv is openRegion plus loading the store. With tolerateLoad a failed
// load still yields an env whose manager is Failed.
func openEnv(c *cli.Context, tolerateLoad bool) (*env, error) {
	e, err := openRegion(c)
	if err != nil {
		return nil, err
	}

	e.manager = idme.New(e.region, e.logger, idme.WithDefaults(e.cfg.DefaultTable()))
	if err := e.manager.Load(); err != nil {
		if !tolerateLoad || !errors.Is(err, idme.ErrNotLoaded) {
			_ = e.Close()
			return nil, fmt.Errorf("load idme: %w", err)
		}
		e.logger.Sugar().Warnw("store not loaded", "error", err)
	}
	return e, nil
}

func (e *env) Close() error {
	_ = e.logger.Sync()
	return e.dev.Close()
}

// withEnv wraps an action with openEnv and Close
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return envAction(false, fn)
}

func envAction(tolerateLoad bool, fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c, tolerateLoad)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

// codeExit turns a console code into the process exit status
func codeExit(code int) error {
	if code == idme.CodeOK {
		return nil
	}
	return cli.Exit(fmt.Sprintf("idme: command failed with code %d", code), 1)
}
