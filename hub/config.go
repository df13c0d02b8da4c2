package hub

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultAddr         = ":3001"
	defaultSendBuffer   = 64
	defaultUpdateLogCap = 50
)

// Config holds initialization parameters for the hub server.
type Config struct {
	// Addr is the listen address for the websocket endpoint.
	Addr string `json:"addr,omitempty"`
	// SnapshotDir is where team records are persisted. Empty disables
	// persistence.
	SnapshotDir string `json:"snapshot_dir,omitempty"`
	// SendBuffer is the per-connection outbound queue size.
	SendBuffer int `json:"send_buffer,omitempty"`
	// UpdateLogCap is how many team updates are retained per team.
	UpdateLogCap int `json:"update_log_cap,omitempty"`
	// Observer names a registered observability observer.
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         defaultAddr,
		SendBuffer:   defaultSendBuffer,
		UpdateLogCap: defaultUpdateLogCap,
		Observer:     "noop",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.SnapshotDir != "" {
		c.SnapshotDir = source.SnapshotDir
	}
	if source.SendBuffer > 0 {
		c.SendBuffer = source.SendBuffer
	}
	if source.UpdateLogCap > 0 {
		c.UpdateLogCap = source.UpdateLogCap
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
