package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	Version   = "development"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "idme",
		Usage:   "inspect and modify the IDME store of a boot partition image",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", TakesFile: true, EnvVars: []string{"IDME_CONFIG"}},
			&cli.StringFlag{Name: "backend", Usage: "Device backend (file, badger, memory)", EnvVars: []string{"IDME_BACKEND"}},
			&cli.StringFlag{Name: "path", Usage: "Device directory (file) or database path (badger)", EnvVars: []string{"IDME_PATH"}},
			&cli.UintFlag{Name: "psn", Usage: "Product serial number reported by the medium", EnvVars: []string{"IDME_PSN"}},
			&cli.StringFlag{Name: "log-level", Usage: "Set log level (debug, info, warn, error)", EnvVars: []string{"LOG_LEVEL"}},
			&cli.BoolFlag{Name: "development", Usage: "Human friendly development logging", EnvVars: []string{"IDME_DEVELOPMENT"}},
		},
		Commands: []*cli.Command{
			oemCommand,
			headerCommand,
			listCommand,
			getCommand,
			setCommand,
			cleanCommand,
			bootCommand,
			exportCommand,
			dumpCommand,
			restoreCommand,
			serveCommand,
			remoteCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger, _ := zap.NewProduction()
		if logger != nil {
			logger.Sugar().Errorw("idme failed", "error", err)
			_ = logger.Sync()
		}
		os.Exit(1)
	}
}
