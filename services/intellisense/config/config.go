// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads Intellisense server configuration.
//
// # Precedence
//
// Later sources override earlier ones:
//
//  1. Built-in defaults (Default)
//  2. YAML file (./intellisense.yaml, or the path given to Load)
//  3. Environment variables (ApplyEnv)
//  4. Command-line flags (applied by cmd/intellisense)
//
// Validate must be called after the last source is applied.
//
// # Example File
//
//	server:
//	  host: 127.0.0.1
//	  port: 5001
//	  shutdown_timeout: 10s
//	agent:
//	  max_workers: 4
//	logging:
//	  level: debug
//	telemetry:
//	  trace_exporter: stdout
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is called without an explicit path.
// A missing file at DefaultPath is not an error.
const DefaultPath = "intellisense.yaml"

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var configValidate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Agent     AgentConfig     `yaml:"agent"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Default: "0.0.0.0"
	Host string `yaml:"host" validate:"required"`

	// Port is the bind port. Default: 5001
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// GinMode is "debug", "release", or "test". Empty keeps gin's default.
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// FeedBuffer is the per-connection event buffer of the live graph feed.
	// Default: 64
	FeedBuffer int `yaml:"feed_buffer" validate:"gte=1,lte=65536"`
}

// AgentConfig controls the chat agent.
type AgentConfig struct {
	// MaxWorkers bounds concurrent agent calls. Default: 4
	MaxWorkers int `yaml:"max_workers" validate:"gte=1,lte=1024"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error". Default: "info"
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Dir enables daily JSON log files in this directory.
	Dir string `yaml:"dir"`
}

// TelemetryConfig controls OpenTelemetry and Prometheus.
type TelemetryConfig struct {
	// TraceExporter is "otlp", "stdout", or "none". Default: "none"
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout", or "none". Default: "prometheus"
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the collector address. Required when TraceExporter is "otlp".
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`

	// EnableMetrics registers the Prometheus collectors and /metrics. Default: true
	EnableMetrics bool `yaml:"enable_metrics"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			ShutdownTimeout: 10 * time.Second,
			FeedBuffer:      64,
		},
		Agent: AgentConfig{
			MaxWorkers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			EnableMetrics:  true,
		},
	}
}

// Load returns defaults overlaid with the YAML file and the environment.
//
// # Inputs
//
//   - path: YAML file to read. Empty reads DefaultPath, which may be absent.
//
// # Outputs
//
//   - Config: Merged configuration. Not yet validated.
//   - error: Wraps ErrInvalidConfig on parse failures; file errors otherwise.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// optional
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables.
//
// # Variables
//
//   - INTELLISENSE_HOST, INTELLISENSE_PORT
//   - INTELLISENSE_LOG_LEVEL, INTELLISENSE_LOG_DIR
//   - INTELLISENSE_AGENT_WORKERS
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT
//   - GIN_MODE
//
// # Inputs
//
//   - cfg: Configuration to modify in place.
//   - lookup: Environment accessor, normally os.LookupEnv.
//
// # Outputs
//
//   - error: Wraps ErrInvalidConfig when a numeric variable does not parse.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	str("INTELLISENSE_HOST", &cfg.Server.Host)
	if err := num("INTELLISENSE_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	str("INTELLISENSE_LOG_LEVEL", &cfg.Logging.Level)
	str("INTELLISENSE_LOG_DIR", &cfg.Logging.Dir)
	if err := num("INTELLISENSE_AGENT_WORKERS", &cfg.Agent.MaxWorkers); err != nil {
		return err
	}
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("GIN_MODE", &cfg.Server.GinMode)

	return nil
}

// Validate checks cfg against its struct tags.
//
// The returned error wraps ErrInvalidConfig and names every failing field.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msg := ""
			for i, fe := range verrs {
				if i > 0 {
					msg += "; "
				}
				msg += fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
