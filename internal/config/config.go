// Package config loads the daemon configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "2s" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config holds all tunables of the privacy daemon.
type Config struct {
	// DevDir is the device directory watched for camera node lifecycle.
	DevDir string `toml:"dev_dir"`

	// DeviceNamePrefix selects camera entries inside DevDir by name.
	DeviceNamePrefix string `toml:"device_name_prefix"`

	// TickInterval is the aggregation period; the published snapshot is
	// refreshed at least once per interval.
	TickInterval Duration `toml:"tick_interval"`

	// QueueCapacity bounds the event channel between sources and the
	// aggregator. Producers retry on a full queue, never drop.
	QueueCapacity int `toml:"queue_capacity"`

	// PipewireDump is the command used to subscribe to the PipeWire
	// registry ("pw-dump"; override for testing or unusual installs).
	PipewireDump string `toml:"pipewire_dump"`

	// FlatpakMarker marks a sandboxed runtime where /proc is not fully
	// visible and the baseline scan degrades to empty.
	FlatpakMarker string `toml:"flatpak_marker"`

	// LogPath writes logs to a file instead of stderr when set.
	LogPath string `toml:"log_path"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		DevDir:           "/dev",
		DeviceNamePrefix: "video",
		TickInterval:     Duration{2 * time.Second},
		QueueCapacity:    100,
		PipewireDump:     "pw-dump",
		FlatpakMarker:    "/.flatpak-info",
	}
}

// DevicePathPrefix is the absolute prefix identifying camera device
// paths, e.g. "/dev/video".
func (c Config) DevicePathPrefix() string {
	return c.DevDir + "/" + c.DeviceNamePrefix
}

// Load reads the TOML file at path over the defaults. A missing file is
// not an error; the defaults apply.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := toml.Decode(string(b), &c); err != nil {
		return c, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.DeviceNamePrefix == "" {
		return fmt.Errorf("device_name_prefix must not be empty")
	}
	return nil
}
