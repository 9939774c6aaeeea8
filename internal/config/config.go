// Package config loads recorder settings from a JSON file. All fields are
// optional pointers so a partial file only overrides what it names; the Get*
// methods supply the defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suryavirkapur/DrivinData/internal/units"
)

// Config is the on-disk settings schema. Command line flags take precedence
// over values loaded from here.
type Config struct {
	// Storage and serving
	DBPath     *string `json:"db_path,omitempty"`
	ListenAddr *string `json:"listen_addr,omitempty"`
	Units      *string `json:"units,omitempty"`

	// Positioning receiver
	GPSPort                  *string  `json:"gps_port,omitempty"`
	GPSBaud                  *int     `json:"gps_baud,omitempty"`
	MinFixInterval           *string  `json:"min_fix_interval,omitempty"` // duration string like "1s"
	MinFixDisplacementMeters *float64 `json:"min_fix_displacement_meters,omitempty"`

	// Accelerometer feed
	MQTTBroker *string `json:"mqtt_broker,omitempty"`
	MQTTTopic  *string `json:"mqtt_topic,omitempty"`

	// Incident detection
	IncidentThreshold *float64 `json:"incident_threshold,omitempty"`
}

// Load reads and validates a Config from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("unknown units %q", *c.Units)
	}

	if c.MinFixInterval != nil && *c.MinFixInterval != "" {
		if _, err := time.ParseDuration(*c.MinFixInterval); err != nil {
			return fmt.Errorf("invalid min_fix_interval '%s': %w", *c.MinFixInterval, err)
		}
	}

	if c.MinFixDisplacementMeters != nil && *c.MinFixDisplacementMeters < 0 {
		return fmt.Errorf("min_fix_displacement_meters must be non-negative, got %f", *c.MinFixDisplacementMeters)
	}

	if c.GPSBaud != nil && *c.GPSBaud <= 0 {
		return fmt.Errorf("gps_baud must be positive, got %d", *c.GPSBaud)
	}

	if c.IncidentThreshold != nil && *c.IncidentThreshold <= 0 {
		return fmt.Errorf("incident_threshold must be positive, got %f", *c.IncidentThreshold)
	}

	return nil
}

// GetDBPath returns the database path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "drivindata.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetUnits returns the display unit or the default.
func (c *Config) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.KMPH
	}
	return *c.Units
}

// GetGPSPort returns the positioning receiver serial port or the default.
func (c *Config) GetGPSPort() string {
	if c.GPSPort == nil || *c.GPSPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.GPSPort
}

// GetGPSBaud returns the serial baud rate or the default.
func (c *Config) GetGPSBaud() int {
	if c.GPSBaud == nil {
		return 9600
	}
	return *c.GPSBaud
}

// GetMinFixInterval parses and returns the fix rate limit as a duration.
func (c *Config) GetMinFixInterval() time.Duration {
	if c.MinFixInterval == nil || *c.MinFixInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.MinFixInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// GetMinFixDisplacementMeters returns the fix displacement floor or the default.
func (c *Config) GetMinFixDisplacementMeters() float64 {
	if c.MinFixDisplacementMeters == nil {
		return 1.0
	}
	return *c.MinFixDisplacementMeters
}

// GetMQTTBroker returns the accelerometer broker URL or the default.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil || *c.MQTTBroker == "" {
		return "tcp://localhost:1883"
	}
	return *c.MQTTBroker
}

// GetMQTTTopic returns the accelerometer topic or the default.
func (c *Config) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "drivindata/motion"
	}
	return *c.MQTTTopic
}

// GetIncidentThreshold returns the detection threshold in g or the default.
func (c *Config) GetIncidentThreshold() float64 {
	if c.IncidentThreshold == nil {
		return 2.5
	}
	return *c.IncidentThreshold
}
