package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/camerad/internal/camera"
)

// DaemonConfig represents the startup configuration for the camera daemon.
// One JSON file covers both daemon plumbing and the initial camera
// configuration. Fields omitted from the JSON keep their defaults, so
// partial configs are safe; command-line flags override whatever the file
// says.
type DaemonConfig struct {
	// Daemon params
	Listen        *string `json:"listen,omitempty"`
	DevMode       *bool   `json:"dev_mode,omitempty"`
	CalibrationDB *string `json:"calibration_db,omitempty"`

	// Camera identity params. IP wins over GUID when both are set.
	IP   *string `json:"ip,omitempty"`
	GUID *string `json:"guid,omitempty"`

	// Announce params
	MQTTBroker   *string `json:"mqtt_broker,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty"`
	MQTTPrefix   *string `json:"mqtt_prefix,omitempty"`

	// Dev mode params
	DevFrameInterval *string `json:"dev_frame_interval,omitempty"` // duration string like "100ms"

	// Initial camera configuration, applied by the first configuration pass.
	Camera camera.Config `json:"camera"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyDaemonConfig returns a DaemonConfig with all fields set to nil.
// The Get* methods supply defaults for everything left unset.
func EmptyDaemonConfig() *DaemonConfig {
	return &DaemonConfig{}
}

// LoadDaemonConfig loads a DaemonConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDaemonConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *DaemonConfig) Validate() error {
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty when set")
	}

	// Validate DevFrameInterval can be parsed if set
	if c.DevFrameInterval != nil && *c.DevFrameInterval != "" {
		if _, err := time.ParseDuration(*c.DevFrameInterval); err != nil {
			return fmt.Errorf("invalid dev_frame_interval '%s': %w", *c.DevFrameInterval, err)
		}
	}

	return nil
}

// GetListen returns the HTTP listen address or the default.
func (c *DaemonConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080" // default
	}
	return *c.Listen
}

// GetDevMode returns the dev_mode value or the default.
func (c *DaemonConfig) GetDevMode() bool {
	if c.DevMode == nil {
		return false // default: drive real hardware
	}
	return *c.DevMode
}

// GetCalibrationDB returns the calibration database path or the default.
func (c *DaemonConfig) GetCalibrationDB() string {
	if c.CalibrationDB == nil || *c.CalibrationDB == "" {
		return "calibration.db" // default
	}
	return *c.CalibrationDB
}

// GetIdentity assembles the camera identity from the ip and guid values.
func (c *DaemonConfig) GetIdentity() camera.Identity {
	var id camera.Identity
	if c.IP != nil {
		id.IP = *c.IP
	}
	if c.GUID != nil {
		id.GUID = *c.GUID
	}
	return id
}

// GetMQTTBroker returns the broker URL; empty disables announcements.
func (c *DaemonConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return "" // default: announcements disabled
	}
	return *c.MQTTBroker
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *DaemonConfig) GetMQTTClientID() string {
	if c.MQTTClientID == nil || *c.MQTTClientID == "" {
		return "camerad" // default
	}
	return *c.MQTTClientID
}

// GetMQTTPrefix returns the mqtt_prefix value or the default.
func (c *DaemonConfig) GetMQTTPrefix() string {
	if c.MQTTPrefix == nil || *c.MQTTPrefix == "" {
		return "camerad" // default
	}
	return *c.MQTTPrefix
}

// GetDevFrameInterval parses and returns the DevFrameInterval as a time.Duration.
func (c *DaemonConfig) GetDevFrameInterval() time.Duration {
	if c.DevFrameInterval == nil || *c.DevFrameInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.DevFrameInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}
