// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/shelfwatch/types"
)

// Config represents the main configuration
type Config struct {
	Monitor       Monitor       `yaml:"monitor"`
	Notifications Notifications `yaml:"notifications"`
	Channels      Channels      `yaml:"channels"`
	Targets       []Target      `yaml:"targets,omitempty"`
	Server        Server        `yaml:"server"`
	Storage       Storage       `yaml:"storage"`
	Telemetry     Telemetry     `yaml:"telemetry,omitempty"`
}

// Monitor tunes the check loop.
type Monitor struct {
	Interval      time.Duration `yaml:"interval"`
	Parallelism   int           `yaml:"parallelism"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	Retries       int           `yaml:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	ConfirmChecks int           `yaml:"confirm_checks"`
}

// Notifications holds the alerting policy toggles. The toggles are
// pointers so an omitted field defaults to true while an explicit false
// still disables the alert.
type Notifications struct {
	NotifyOnAdded   *bool         `yaml:"notify_on_added"`
	NotifyOnRemoved *bool         `yaml:"notify_on_removed"`
	NotifyOnError   *bool         `yaml:"notify_on_error"`
	ChannelTimeout  time.Duration `yaml:"channel_timeout"`
}

// Channels configures the outbound notification media. Each channel kind
// carries its own fields; disabled channels are ignored at wiring time.
type Channels struct {
	Email   EmailChannel   `yaml:"email,omitempty"`
	Push    PushChannel    `yaml:"push,omitempty"`
	Webhook WebhookChannel `yaml:"webhook,omitempty"`
}

type EmailChannel struct {
	Enabled    bool     `yaml:"enabled"`
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Sender     string   `yaml:"sender"`
	Password   string   `yaml:"password"`
	Recipients []string `yaml:"recipients"`
}

type PushChannel struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

type WebhookChannel struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// Target seeds the registry from configuration.
type Target struct {
	URL          string   `yaml:"url"`
	Kind         string   `yaml:"kind"`
	Name         string   `yaml:"name,omitempty"`
	TargetSizes  []string `yaml:"target_sizes,omitempty"`
	TargetColors []string `yaml:"target_colors,omitempty"`
}

// Server configures the admin API and metrics listeners.
type Server struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Storage configures the data directory (database and run log).
type Storage struct {
	Dir string `yaml:"dir"`
}

// Telemetry configures optional OTLP trace export.
type Telemetry struct {
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	Environment  string `yaml:"environment,omitempty"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 5 * time.Minute
	}
	if c.Monitor.Parallelism == 0 {
		c.Monitor.Parallelism = 4
	}
	if c.Monitor.ProbeTimeout == 0 {
		c.Monitor.ProbeTimeout = 30 * time.Second
	}
	if c.Monitor.RetryDelay == 0 {
		c.Monitor.RetryDelay = 5 * time.Second
	}
	if c.Monitor.ConfirmChecks == 0 {
		c.Monitor.ConfirmChecks = 2
	}
	if c.Notifications.NotifyOnAdded == nil {
		c.Notifications.NotifyOnAdded = boolPtr(true)
	}
	if c.Notifications.NotifyOnRemoved == nil {
		c.Notifications.NotifyOnRemoved = boolPtr(true)
	}
	if c.Notifications.NotifyOnError == nil {
		c.Notifications.NotifyOnError = boolPtr(true)
	}
	if c.Notifications.ChannelTimeout == 0 {
		c.Notifications.ChannelTimeout = 15 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Channels.Push.Endpoint == "" {
		c.Channels.Push.Endpoint = "https://sctapi.ftqq.com"
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor.interval must be at least 1s")
	}
	if c.Monitor.Retries < 0 {
		return fmt.Errorf("monitor.retries must not be negative")
	}
	if c.Monitor.ConfirmChecks < 1 {
		return fmt.Errorf("monitor.confirm_checks must be at least 1")
	}

	if c.Channels.Email.Enabled {
		if c.Channels.Email.SMTPHost == "" || c.Channels.Email.SMTPPort == 0 {
			return fmt.Errorf("channels.email requires smtp_host and smtp_port")
		}
		if len(c.Channels.Email.Recipients) == 0 {
			return fmt.Errorf("channels.email requires at least one recipient")
		}
	}
	if c.Channels.Push.Enabled && c.Channels.Push.Key == "" {
		return fmt.Errorf("channels.push requires a key")
	}
	if c.Channels.Webhook.Enabled && c.Channels.Webhook.URL == "" {
		return fmt.Errorf("channels.webhook requires a url")
	}

	for i, t := range c.Targets {
		if t.URL == "" {
			return fmt.Errorf("targets[%d]: url is required", i)
		}
		if !types.SiteKind(t.Kind).Valid() {
			return fmt.Errorf("targets[%d]: unknown kind %q", i, t.Kind)
		}
	}

	return nil
}

func boolPtr(v bool) *bool { return &v }

// MonitoredTargets converts the configured targets to registry entries.
func (c *Config) MonitoredTargets() ([]types.MonitoredTarget, error) {
	targets := make([]types.MonitoredTarget, 0, len(c.Targets))
	for i, t := range c.Targets {
		mt, err := types.NewTarget(t.URL, types.SiteKind(t.Kind), t.Name)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		mt.TargetSizes = t.TargetSizes
		mt.TargetColors = t.TargetColors
		targets = append(targets, mt)
	}
	return targets, nil
}
