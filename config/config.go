// Package config holds the runtime-tunable knobs for the remoting core,
// grounded on the teacher's utils.ServerConfig/ClientConfig: a plain JSON
// struct loaded once at bootstrap, no hot-reload.
package config

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
)

// Config is the per-process configuration for either side of a connection.
type Config struct {
	Host       string `json:"Host"`
	Port       int    `json:"Port"`
	MaxConn    int    `json:"MaxConn"`
	MinMsgLen  uint32 `json:"MinMsgLen"`
	MaxMsgLen  uint32 `json:"MaxMsgLen"`

	// CallTimeout bounds a single outstanding client call. Zero disables
	// the timeout (spec.md §5 allows this layer to impose one; we do).
	CallTimeout time.Duration `json:"CallTimeout"`

	// GcSweepInterval drives the periodic distributed-GC sweep in
	// addition to any caller-triggered Sweep call. Zero disables the
	// periodic sweep (caller-triggered sweeps still work).
	GcSweepInterval time.Duration `json:"GcSweepInterval"`

	// ReverseChannelDeadline bounds how long OpenReverseChannel waits for
	// its matching pre-accepted socket before failing the bootstrap
	// instead of blocking forever (spec.md §9 Open Questions).
	ReverseChannelDeadline time.Duration `json:"ReverseChannelDeadline"`

	// ShutdownOnConnectionLoss is loaded from the config file, but no
	// package in this module reads it: losing the primary channel does
	// not make the process exit, whatever its value.
	ShutdownOnConnectionLoss bool `json:"ShutdownOnConnectionLoss"`
}

// Default returns sane defaults mirroring the teacher's NewRpcClient /
// NewTcpServer defaults (callRpcTimeout=15s, MaxConnNum=10000).
func Default() *Config {
	return &Config{
		MaxConn:                10000,
		MinMsgLen:              2,
		MaxMsgLen:              1 << 24,
		CallTimeout:            15 * time.Second,
		GcSweepInterval:        30 * time.Second,
		ReverseChannelDeadline: 10 * time.Second,
	}
}

// Load reads a Config from a JSON file at path.
func Load(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}
