package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Stream     StreamConfig     `yaml:"stream"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen     string `yaml:"listen"`
	EnableCORS bool   `yaml:"enable_cors"`
}

// StreamConfig contains EEG stream discovery settings
type StreamConfig struct {
	DiscoveryGroup string `yaml:"discovery_group"` // UDP multicast group, host:port (default LSL group)
	Interface      string `yaml:"interface"`       // Network interface for multicast (empty = default)
	AutoConnect    string `yaml:"auto_connect"`    // Stream name to connect at startup (empty = none)
}

// PipelineConfig contains acquisition and analysis settings
type PipelineConfig struct {
	SampleRate           float64 `yaml:"sample_rate"`            // Nominal rate in Hz (default 250)
	WindowSize           int     `yaml:"window_size"`            // Per-channel window capacity (default 512)
	TickIntervalMs       int     `yaml:"tick_interval_ms"`       // Tick period (default 4)
	AnalysisIntervalMs   int     `yaml:"analysis_interval_ms"`   // Band-power cadence (default 250)
	EmitEveryNTicks      int     `yaml:"emit_every_n_ticks"`     // Emission throttle (default 1 = every tick)
	SynthesizeOnUnderrun bool    `yaml:"synthesize_on_underrun"` // Substitute synthetic data on underrun while connected (default false: skip the tick)
	SynthSeed            int64   `yaml:"synth_seed"`             // Noise seed for the synthesizer (0 = time-based)
	AutoStart            bool    `yaml:"auto_start"`             // Start the tick loop at boot
}

// PrometheusConfig contains metrics endpoint settings
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig contains MQTT publishing settings
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`
	PublishInterval int           `yaml:"publish_interval"` // Seconds between publishes
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains TLS settings for the MQTT connection
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

func (pc *PipelineConfig) tickPeriod() time.Duration {
	return time.Duration(pc.TickIntervalMs) * time.Millisecond
}

func (pc *PipelineConfig) analysisInterval() time.Duration {
	return time.Duration(pc.AnalysisIntervalMs) * time.Millisecond
}

// applyDefaults patches zero values after unmarshal.
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8090"
	}
	if c.Pipeline.SampleRate == 0 {
		c.Pipeline.SampleRate = 250.0
	}
	if c.Pipeline.WindowSize == 0 {
		c.Pipeline.WindowSize = 512
	}
	if c.Pipeline.TickIntervalMs == 0 {
		c.Pipeline.TickIntervalMs = 4 // 250 Hz
	}
	if c.Pipeline.AnalysisIntervalMs == 0 {
		c.Pipeline.AnalysisIntervalMs = 250
	}
	if c.Pipeline.EmitEveryNTicks == 0 {
		c.Pipeline.EmitEveryNTicks = 1
	}
	if c.Pipeline.SynthSeed == 0 {
		c.Pipeline.SynthSeed = time.Now().UnixNano()
	}
	if c.MQTT.PublishInterval == 0 {
		c.MQTT.PublishInterval = 10
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "eegstreamd"
	}
}

// Validate checks hard constraints that defaults can't fix.
func (c *Config) Validate() error {
	if c.Pipeline.WindowSize < 2 {
		return fmt.Errorf("pipeline.window_size must be at least 2, got %d", c.Pipeline.WindowSize)
	}
	if c.Pipeline.SampleRate <= 0 {
		return fmt.Errorf("pipeline.sample_rate must be positive, got %v", c.Pipeline.SampleRate)
	}
	if c.Pipeline.TickIntervalMs < 1 {
		return fmt.Errorf("pipeline.tick_interval_ms must be at least 1, got %d", c.Pipeline.TickIntervalMs)
	}
	if c.Pipeline.EmitEveryNTicks < 1 {
		return fmt.Errorf("pipeline.emit_every_n_ticks must be at least 1, got %d", c.Pipeline.EmitEveryNTicks)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a configuration with all defaults applied; used when
// no config file is present.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	c.Pipeline.AutoStart = true
	return c
}
