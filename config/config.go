// Package config decodes the multi-feed configuration schema: a per-feed
// struct plus global tuning, loadable from YAML or from a list of
// host:port feed specs given on the command line.
//
// Grounded on original_source/include/mdfh/multi_feed_ingestion.hpp's
// FeedConfig/MultiFeedConfig field set and its from_yaml/from_cli_feeds
// pair of constructors, re-expressed with go.yaml.in/yaml/v3 (grounded on
// agilira-argus's own go.mod) instead of yaml-cpp.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/mdfh-labs/feedhub/faults"
)

// FeedConfig is one feed's connection and health-monitoring parameters.
type FeedConfig struct {
	Name                string `yaml:"name"`
	Host                string `yaml:"host"`
	Port                uint16 `yaml:"port"`
	OriginID            uint32 `yaml:"origin_id"`
	IsPrimary           bool   `yaml:"is_primary"`
	HeartbeatIntervalMS uint32 `yaml:"heartbeat_interval_ms"`
	TimeoutMultiplier   uint32 `yaml:"timeout_multiplier"`
	BufferCapacity      uint32 `yaml:"buffer_capacity"`
}

// MultiFeedConfig is the top-level schema: a feed list plus global tuning.
type MultiFeedConfig struct {
	Feeds []FeedConfig `yaml:"feeds"`

	GlobalBufferCapacity  uint32 `yaml:"global_buffer_capacity"`
	DispatcherThreads     uint32 `yaml:"dispatcher_threads"`
	MaxSeconds            uint32 `yaml:"max_seconds"`
	MaxMessages           uint64 `yaml:"max_messages"`
	HealthCheckIntervalMS uint32 `yaml:"health_check_interval_ms"`
}

// applyDefaults matches the original's field defaults, applied to any
// FeedConfig loaded without explicit values.
func (f *FeedConfig) applyDefaults() {
	if f.Host == "" {
		f.Host = "127.0.0.1"
	}
	if f.Port == 0 {
		f.Port = 9001
	}
	if f.HeartbeatIntervalMS == 0 {
		f.HeartbeatIntervalMS = 1000
	}
	if f.TimeoutMultiplier == 0 {
		f.TimeoutMultiplier = 3
	}
	if f.BufferCapacity == 0 {
		f.BufferCapacity = 65536
	}
}

func (m *MultiFeedConfig) applyDefaults() {
	if m.GlobalBufferCapacity == 0 {
		m.GlobalBufferCapacity = 262144
	}
	if m.DispatcherThreads == 0 {
		m.DispatcherThreads = 1
	}
	if m.HealthCheckIntervalMS == 0 {
		m.HealthCheckIntervalMS = 100
	}
	for i := range m.Feeds {
		m.Feeds[i].applyDefaults()
	}
}

// FromYAML reads and decodes a MultiFeedConfig from filename, applying
// field defaults and running Validate before returning.
func FromYAML(filename string) (*MultiFeedConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, faults.ConfigurationWrap(err, "config: failed to read "+filename)
	}
	var cfg MultiFeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, faults.ConfigurationWrap(err, "config: failed to parse "+filename)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromCLIFeeds builds a MultiFeedConfig from a list of host:port feed
// specs, for running without a config file. Feeds are assigned
// sequential origin_id starting at 0 and the first feed is marked
// primary.
func FromCLIFeeds(feedSpecs []string) (*MultiFeedConfig, error) {
	cfg := &MultiFeedConfig{}
	for i, spec := range feedSpecs {
		host, port, err := splitHostPort(spec)
		if err != nil {
			return nil, err
		}
		cfg.Feeds = append(cfg.Feeds, FeedConfig{
			Name:      spec,
			Host:      host,
			Port:      port,
			OriginID:  uint32(i),
			IsPrimary: i == 0,
		})
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitHostPort parses a "host:port" CLI feed spec.
func splitHostPort(spec string) (string, uint16, error) {
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return "", 0, faults.Configuration(fmt.Sprintf("config: feed spec %q must be host:port", spec))
	}
	host := spec[:idx]
	portStr := spec[idx+1:]
	if host == "" {
		return "", 0, faults.Configuration(fmt.Sprintf("config: feed spec %q is missing a host", spec))
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, faults.ConfigurationWrap(err, fmt.Sprintf("config: feed spec %q has an invalid port", spec))
	}
	return host, uint16(port), nil
}

// Validate checks the constraints required of a usable config: every
// buffer capacity is a power of two, and origin_id values are unique.
func (m *MultiFeedConfig) Validate() error {
	if len(m.Feeds) == 0 {
		return faults.Configuration("config: at least one feed is required")
	}
	if !isPowerOfTwo(m.GlobalBufferCapacity) {
		return faults.Configuration(fmt.Sprintf("config: global_buffer_capacity must be a power of two, got %d", m.GlobalBufferCapacity))
	}
	seen := make(map[uint32]bool, len(m.Feeds))
	for _, f := range m.Feeds {
		if f.Name == "" {
			return faults.Configuration(fmt.Sprintf("config: feed with origin_id %d is missing a name", f.OriginID))
		}
		if !isPowerOfTwo(f.BufferCapacity) {
			return faults.Configuration(fmt.Sprintf("config: feed %q buffer_capacity must be a power of two, got %d", f.Name, f.BufferCapacity))
		}
		if seen[f.OriginID] {
			return faults.Configuration(fmt.Sprintf("config: duplicate origin_id %d", f.OriginID))
		}
		seen[f.OriginID] = true
	}
	return nil
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
