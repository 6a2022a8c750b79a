package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPort    = 3200
	DefaultService = "canvas"
)

var ErrInvalid = errors.New("config: invalid")

type Coordinator struct {
	Addr            string
	Service         string
	Advertise       bool
	WriteTimeout    time.Duration
	ApprovalTimeout time.Duration
	SnapshotTimeout time.Duration
	QueueSize       int
}

type Peer struct {
	Addr           string
	Name           string
	ConnectTimeout time.Duration
}

type Config struct {
	Coordinator Coordinator
	Peer        Peer
	LogLevel    string
}

func Default() Config {
	return Config{
		Coordinator: Coordinator{
			Addr:            fmt.Sprintf(":%d", DefaultPort),
			Service:         DefaultService,
			Advertise:       true,
			WriteTimeout:    5 * time.Second,
			ApprovalTimeout: 2 * time.Minute,
			SnapshotTimeout: 10 * time.Second,
			QueueSize:       256,
		},
		Peer: Peer{
			Addr:           fmt.Sprintf("localhost:%d", DefaultPort),
			ConnectTimeout: 5 * time.Second,
		},
	}
}

type fileConfig struct {
	Coordinator struct {
		Addr            string `toml:"addr"`
		Service         string `toml:"service"`
		Advertise       bool   `toml:"advertise"`
		WriteTimeout    string `toml:"write_timeout"`
		ApprovalTimeout string `toml:"approval_timeout"`
		SnapshotTimeout string `toml:"snapshot_timeout"`
		QueueSize       int    `toml:"queue_size"`
	} `toml:"coordinator"`
	Peer struct {
		Addr           string `toml:"addr"`
		Name           string `toml:"name"`
		ConnectTimeout string `toml:"connect_timeout"`
	} `toml:"peer"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value. An empty path returns the defaults. The canvas size is fixed
// for every peer and has no key.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %s", ErrInvalid, undecoded[0])
	}

	if meta.IsDefined("coordinator", "addr") {
		cfg.Coordinator.Addr = strings.TrimSpace(raw.Coordinator.Addr)
	}
	if meta.IsDefined("coordinator", "service") {
		cfg.Coordinator.Service = strings.Trim(strings.TrimSpace(raw.Coordinator.Service), "/")
	}
	if meta.IsDefined("coordinator", "advertise") {
		cfg.Coordinator.Advertise = raw.Coordinator.Advertise
	}
	if meta.IsDefined("coordinator", "queue_size") {
		cfg.Coordinator.QueueSize = raw.Coordinator.QueueSize
	}
	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"coordinator", "write_timeout"}, raw.Coordinator.WriteTimeout, &cfg.Coordinator.WriteTimeout},
		{[]string{"coordinator", "approval_timeout"}, raw.Coordinator.ApprovalTimeout, &cfg.Coordinator.ApprovalTimeout},
		{[]string{"coordinator", "snapshot_timeout"}, raw.Coordinator.SnapshotTimeout, &cfg.Coordinator.SnapshotTimeout},
		{[]string{"peer", "connect_timeout"}, raw.Peer.ConnectTimeout, &cfg.Peer.ConnectTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("peer", "addr") {
		cfg.Peer.Addr = strings.TrimSpace(raw.Peer.Addr)
	}
	if meta.IsDefined("peer", "name") {
		cfg.Peer.Name = strings.TrimSpace(raw.Peer.Name)
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.TrimSpace(raw.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Coordinator.Addr == "":
		return fmt.Errorf("%w: coordinator.addr is empty", ErrInvalid)
	case c.Coordinator.Service == "":
		return fmt.Errorf("%w: coordinator.service is empty", ErrInvalid)
	case c.Coordinator.QueueSize <= 0:
		return fmt.Errorf("%w: coordinator.queue_size must be positive", ErrInvalid)
	case c.Coordinator.WriteTimeout <= 0, c.Coordinator.ApprovalTimeout <= 0, c.Coordinator.SnapshotTimeout <= 0:
		return fmt.Errorf("%w: coordinator timeouts must be positive", ErrInvalid)
	case c.Peer.Addr == "":
		return fmt.Errorf("%w: peer.addr is empty", ErrInvalid)
	case c.Peer.ConnectTimeout <= 0:
		return fmt.Errorf("%w: peer.connect_timeout must be positive", ErrInvalid)
	}
	return nil
}
