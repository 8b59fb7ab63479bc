// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StorageFile   = "file"
	StorageMemory = "memory"

	HardwareSimulator = "simulator"
	HardwareCommand   = "command"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"vending-machine"`
	Env         string `envconfig:"ENV" default:"dev"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	DataDir       string `envconfig:"DATA_DIR" default:"./data"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"file"`
	// DeviceConfig defaults to cfg.json inside DataDir.
	DeviceConfig string `envconfig:"DEVICE_CONFIG"`

	HardwareDriver         string        `envconfig:"HARDWARE_DRIVER" default:"simulator"`
	VendorPath             string        `envconfig:"VENDOR_PATH"`
	SimulatedDispenseDelay time.Duration `envconfig:"SIMULATED_DISPENSE_DELAY" default:"5s"`
	DispenseTimeout        time.Duration `envconfig:"DISPENSE_TIMEOUT" default:"30s"`
	PaymentWindow          time.Duration `envconfig:"PAYMENT_WINDOW" default:"3m"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.DeviceConfig == "" {
		c.DeviceConfig = filepath.Join(c.DataDir, "cfg.json")
	}
	switch c.StorageDriver {
	case StorageFile, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.HardwareDriver {
	case HardwareSimulator:
	case HardwareCommand:
		if c.VendorPath == "" {
			return fmt.Errorf("config: VENDOR_PATH is required for the %s driver", HardwareCommand)
		}
	default:
		return fmt.Errorf("config: unknown HARDWARE_DRIVER %q", c.HardwareDriver)
	}
	if c.DispenseTimeout <= 0 {
		return fmt.Errorf("config: DISPENSE_TIMEOUT must be positive")
	}
	if c.PaymentWindow <= 0 {
		return fmt.Errorf("config: PAYMENT_WINDOW must be positive")
	}
	return nil
}
