package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/S0me0neR0man/idmestash/internal/blockdev"
	"github.com/S0me0neR0man/idmestash/internal/idme"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

var ErrInvalid = errors.New("invalid config")

type Device struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	BlockSize int    `yaml:"blockSize"`
	PSN       uint32 `yaml:"psn"`
}

// Region location of the image on the boot partition
type Region struct {
	Start  uint64 `yaml:"start"`
	Blocks int    `yaml:"blocks"`
}

type Server struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metricsAddr"`
	// UnlockCode bearer token that unlocks console mutations
	UnlockCode string `yaml:"unlockCode"`
	Locked     bool   `yaml:"locked"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Device   Device          `yaml:"device"`
	Region   Region          `yaml:"region"`
	Server   Server          `yaml:"server"`
	Log      Log             `yaml:"log"`
	Defaults []idme.ItemSpec `yaml:"defaults"`
}

func Default() *Config {
	return &Config{
		Device: Device{
			Backend:   BackendFile,
			Path:      "db",
			BlockSize: blockdev.DefaultBlockSize,
		},
		Region: Region{
			Start:  0,
			Blocks: idme.NumBlocks,
		},
		Server: Server{
			Addr:        "localhost:3200",
			MetricsAddr: "localhost:3201",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Device.Backend {
	case BackendFile, BackendBadger:
		if c.Device.Path == "" && c.Device.Backend == BackendFile {
			return fmt.Errorf("%w: file backend needs a path", ErrInvalid)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Device.Backend)
	}

	if c.Device.BlockSize <= 0 || c.Device.BlockSize%blockdev.DefaultBlockSize != 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalid, c.Device.BlockSize)
	}
	if c.Region.Blocks <= 0 {
		return fmt.Errorf("%w: region blocks %d", ErrInvalid, c.Region.Blocks)
	}
	if size := c.Region.Blocks * c.Device.BlockSize; size < idme.HeaderSize {
		return fmt.Errorf("%w: region of %d bytes", ErrInvalid, size)
	}
	if c.Server.Locked && c.Server.UnlockCode == "" {
		return fmt.Errorf("%w: locked console needs an unlock code", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Defaults))
	for _, it := range c.Defaults {
		if it.Name == "" || len(it.Name) >= idme.MaxNameLen {
			return fmt.Errorf("%w: default item name %q", ErrInvalid, it.Name)
		}
		if seen[it.Name] {
			return fmt.Errorf("%w: duplicate default item %q", ErrInvalid, it.Name)
		}
		seen[it.Name] = true
	}
	return nil
}

// DefaultTable configured defaults or the compiled-in table
func (c *Config) DefaultTable() []idme.ItemSpec {
	if len(c.Defaults) > 0 {
		return c.Defaults
	}
	return idme.DefaultTable
}
