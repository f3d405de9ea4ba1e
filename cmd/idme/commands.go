package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/S0me0neR0man/idmestash/internal/backup"
	"github.com/S0me0neR0man/idmestash/internal/console"
	"github.com/S0me0neR0man/idmestash/internal/export"
	"github.com/S0me0neR0man/idmestash/internal/fdt"
	"github.com/S0me0neR0man/idmestash/internal/idme"
)

var errUsage = errors.New("wrong number of arguments")

var oemCommand = &cli.Command{
	Name:      "oem",
	Usage:     "Run a fastboot console line, e.g. oem idme bootmode 6",
	ArgsUsage: "idme [args...]",
	Action: withEnv(func(c *cli.Context, e *env) error {
		cons := console.New(e.manager, e.logger)
		code := cons.Exec(c.Context, strings.Join(c.Args().Slice(), " "), console.WriterResponder{W: os.Stdout})
		return codeExit(code)
	}),
}

var headerCommand = &cli.Command{
	Name:  "header",
	Usage: "Print the stored header without loading, a blank medium stays blank",
	Action: func(c *cli.Context) error {
		e, err := openRegion(c)
		if err != nil {
			return err
		}
		defer e.Close()

		h, err := idme.ReadHeader(e.region, e.dev.BlockSize())
		if err != nil {
			return err
		}
		fmt.Println(h)
		return nil
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "Print every item",
	Action: withEnv(func(c *cli.Context, e *env) error {
		return e.manager.Print(os.Stdout)
	}),
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "Print the value of one item",
	ArgsUsage: "<name>",
	Action: withEnv(func(c *cli.Context, e *env) error {
		if c.NArg() != 1 {
			return errUsage
		}
		v, err := e.manager.GetString(c.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}),
}

var setCommand = &cli.Command{
	Name:      "set",
	Usage:     "Set one item and persist the store",
	ArgsUsage: "<name> <value>",
	Action: withEnv(func(c *cli.Context, e *env) error {
		if c.NArg() != 2 {
			return errUsage
		}
		return e.manager.Set(c.Args().Get(0), []byte(c.Args().Get(1)))
	}),
}

var cleanCommand = &cli.Command{
	Name:  "clean",
	Usage: "Erase the store, defaults are generated on the next load",
	Action: withEnv(func(c *cli.Context, e *env) error {
		return e.manager.Clean()
	}),
}

var bootCommand = &cli.Command{
	Name:  "boot",
	Usage: "Run the boot sequence: tick the boot count and build the kernel hand-off",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "dtb", Usage: "Write the device tree blob to this file", TakesFile: true},
		&cli.StringFlag{Name: "atag", Usage: "Write the IDME ATAG to this file", TakesFile: true},
		&cli.IntFlag{Name: "atag-size", Value: idme.AtagSize, Usage: "ATAG payload capacity in bytes"},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		sugar := e.logger.Sugar()

		count, err := e.manager.BootCountTick()
		if err != nil {
			sugar.Warnw("boot count not updated", "error", err)
		}
		mode, err := e.manager.BootMode()
		if err != nil {
			sugar.Warnw("boot mode unavailable", "error", err)
		}
		serial := e.manager.SerialNumber(e.dev.PSN())
		fmt.Printf("bootcount: %d\nbootmode: %s\nserial: %s\n", count, mode, serial)

		h, err := export.New(e.manager, e.logger).Boot(fdt.New(), c.Int("atag-size"))
		if path := c.String("dtb"); path != "" && h.DeviceTree != nil {
			if werr := os.WriteFile(path, h.DeviceTree, 0o644); werr != nil {
				return werr
			}
		}
		if path := c.String("atag"); path != "" && h.Atag != nil {
			if werr := os.WriteFile(path, h.Atag, 0o644); werr != nil {
				return werr
			}
		}
		return err
	}),
}

var exportCommand = &cli.Command{
	Name:      "export",
	Usage:     "Write one export view to a file or stdout",
	ArgsUsage: "dtb|atag",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, stdout when empty", TakesFile: true},
		&cli.IntFlag{Name: "atag-size", Value: idme.AtagSize, Usage: "ATAG payload capacity in bytes"},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		if c.NArg() != 1 {
			return errUsage
		}
		exp := export.New(e.manager, e.logger)

		var data []byte
		switch c.Args().First() {
		case "dtb":
			tree := fdt.New()
			if err := exp.DeviceTree(tree); err != nil {
				return err
			}
			data = tree.Encode()
		case "atag":
			var err error
			if data, err = exp.Atag(c.Int("atag-size")); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown export %q", c.Args().First())
		}
		return writeOut(c.String("out"), func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	}),
}

var dumpCommand = &cli.Command{
	Name:  "dump",
	Usage: "Dump the raw store image",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, stdout when empty", TakesFile: true},
		&cli.BoolFlag{Name: "xz", Usage: "Compress the dump with xz"},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		img, err := e.manager.Snapshot()
		if err != nil {
			return err
		}
		return writeOut(c.String("out"), func(w io.Writer) error {
			return backup.WriteDump(w, img, c.Bool("xz"))
		})
	}),
}

var restoreCommand = &cli.Command{
	Name:      "restore",
	Usage:     "Replace the store with a dump, raw or xz",
	ArgsUsage: "<file>",
	Action: envAction(true, func(c *cli.Context, e *env) error {
		if c.NArg() != 1 {
			return errUsage
		}
		f, err := os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()

		img, err := backup.ReadDump(f, e.region.Size())
		if err != nil {
			return err
		}
		return e.manager.Restore(img)
	}),
}

func writeOut(path string, fn func(w io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
