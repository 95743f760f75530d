// Package config provides YAML-based configuration loading for the gateway.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration, loaded from gateway.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Provider  ProviderConfig  `yaml:"provider"`
	Plans     PlansConfig     `yaml:"plans"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds connection settings. Driver is "mysql" or "sqlite";
// sqlite uses Path, mysql uses Host/Port/Name/User/Password.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// WindowConfig defines one rate-limit quota class.
type WindowConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
	Max           int `yaml:"max"`
}

// Window returns the window as a duration.
func (w WindowConfig) Window() time.Duration {
	return time.Duration(w.WindowSeconds) * time.Second
}

// RateLimitConfig holds the two quota classes. Chat is tighter since chat
// requests trigger model calls.
type RateLimitConfig struct {
	Chat       WindowConfig `yaml:"chat"`
	Management WindowConfig `yaml:"management"`
}

// ProviderConfig holds model-provider connection settings. The API key is
// read from the named environment variable, never from the config file.
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey reads the provider API key from the environment.
func (p ProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// Plan defines per-plan quotas and tool gates.
type Plan struct {
	MonthlyConversations int64 `yaml:"monthly_conversations"`
	WebSearch            bool  `yaml:"web_search"`
	CustomTools          bool  `yaml:"custom_tools"`
}

// PlansConfig maps plan names to limits and tenants to plan names.
type PlansConfig struct {
	Default string            `yaml:"default"`
	Plans   map[string]Plan   `yaml:"plans"`
	Tenants map[string]string `yaml:"tenants"`
}

// ForTenant returns the plan for a tenant, falling back to the default plan.
func (p PlansConfig) ForTenant(tenantID string) Plan {
	name := p.Tenants[tenantID]
	if name == "" {
		name = p.Default
	}
	return p.Plans[name]
}

// NotifyConfig holds alert-channel settings. All fields optional; empty
// sections disable that channel.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig identifies a Slack channel for operational alerts.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig identifies a Discord channel for operational alerts.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "gateway.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.RateLimit.Chat.WindowSeconds == 0 {
		c.RateLimit.Chat.WindowSeconds = 60
	}
	if c.RateLimit.Chat.Max == 0 {
		c.RateLimit.Chat.Max = 30
	}
	if c.RateLimit.Management.WindowSeconds == 0 {
		c.RateLimit.Management.WindowSeconds = 60
	}
	if c.RateLimit.Management.Max == 0 {
		c.RateLimit.Management.Max = 120
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = "PROVIDER_API_KEY"
	}
	if c.Plans.Default == "" {
		c.Plans.Default = "free"
	}
	if c.Plans.Plans == nil {
		c.Plans.Plans = map[string]Plan{}
	}
	if _, ok := c.Plans.Plans["free"]; !ok {
		c.Plans.Plans["free"] = Plan{MonthlyConversations: 100}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.Name == "" {
		errs = append(errs, "database.name is required for mysql")
	}
	if _, ok := c.Plans.Plans[c.Plans.Default]; !ok {
		errs = append(errs, fmt.Sprintf("plans.default %q has no plan definition", c.Plans.Default))
	}
	for tenant, plan := range c.Plans.Tenants {
		if _, ok := c.Plans.Plans[plan]; !ok {
			errs = append(errs, fmt.Sprintf("plans.tenants[%s] references unknown plan %q", tenant, plan))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
