package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of keys that have no
// dedicated variable, e.g. HEROBOT_HEARTBEAT_INTERVAL for heartbeat.interval.
const EnvPrefix = "HEROBOT"

// Config represents the complete herobot configuration
type Config struct {
	Bot       BotConfig       `mapstructure:"bot" yaml:"bot"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" yaml:"heartbeat"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// BotConfig identifies the bot and the single chat it talks to
type BotConfig struct {
	// Token is the Bot API credential (TELEGRAM_BOT_TOKEN or BOT_TOKEN)
	Token string `mapstructure:"token" yaml:"token"`
	// RecipientID is the chat id of the only recipient (RID). Kept as a
	// string so a non-numeric value can be reported instead of silently zeroed.
	RecipientID string `mapstructure:"recipient_id" yaml:"recipient_id"`
}

// WatchConfig controls directory watching
type WatchConfig struct {
	// Dir is the watched directory (WATCH_DIR). Supports ~ expansion.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Debounce is the quiet window collapsing bursts of events on one path
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// Ignore lists glob patterns matched against base names; matching change
	// events are dropped (editor swap files and the like)
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// HeartbeatConfig controls the liveness message
type HeartbeatConfig struct {
	// Interval between edits of the liveness message
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// OnlineText is the text of the liveness message when first sent
	OnlineText string `mapstructure:"online_text" yaml:"online_text"`
	// Prefix precedes the timestamp on every refresh
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// ChatConfig controls the connection to the chat service
type ChatConfig struct {
	// APIEndpoint is a Bot API URL format with two %s verbs (token, method)
	APIEndpoint string `mapstructure:"api_endpoint" yaml:"api_endpoint"`
	// PollTimeout is the long-poll timeout for inbound messages
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	// Silent sends messages without a user-facing alert
	Silent bool `mapstructure:"silent" yaml:"silent"`
	// RateLimit is the sustained number of outbound calls per second
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// Burst is the number of outbound calls allowed back to back
	Burst int `mapstructure:"burst" yaml:"burst"`
	// QueueSize bounds the number of outbound calls waiting for delivery
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			Dir:      DefaultWatchDir(),
			Debounce: 2 * time.Second,
			Ignore:   []string{},
		},
		Heartbeat: HeartbeatConfig{
			Interval:   10 * time.Second,
			OnlineText: "Herobot is back!",
			Prefix:     "Herobot pinged at",
		},
		Chat: ChatConfig{
			APIEndpoint: tgbotapi.APIEndpoint,
			PollTimeout: 30 * time.Second,
			Silent:      true,
			RateLimit:   1,
			Burst:       5,
			QueueSize:   256,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultWatchDir returns ~/.herobot, or .herobot when the home directory
// cannot be determined.
func DefaultWatchDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".herobot"
	}
	return filepath.Join(home, ".herobot")
}

// SetDefaults registers default values and environment bindings with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("watch.dir", defaults.Watch.Dir)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)

	v.SetDefault("heartbeat.interval", defaults.Heartbeat.Interval)
	v.SetDefault("heartbeat.online_text", defaults.Heartbeat.OnlineText)
	v.SetDefault("heartbeat.prefix", defaults.Heartbeat.Prefix)

	v.SetDefault("chat.api_endpoint", defaults.Chat.APIEndpoint)
	v.SetDefault("chat.poll_timeout", defaults.Chat.PollTimeout)
	v.SetDefault("chat.silent", defaults.Chat.Silent)
	v.SetDefault("chat.rate_limit", defaults.Chat.RateLimit)
	v.SetDefault("chat.burst", defaults.Chat.Burst)
	v.SetDefault("chat.queue_size", defaults.Chat.QueueSize)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// The three variables the bot has always been deployed with keep their
	// historical unprefixed names.
	_ = v.BindEnv("bot.token", "TELEGRAM_BOT_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("bot.recipient_id", "RID")
	_ = v.BindEnv("watch.dir", "WATCH_DIR")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode reads the configuration held by v into a Config and resolves the
// watch directory without validating.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Watch.Dir = ResolveDir(cfg.Watch.Dir)
	return &cfg, nil
}

// LoadFrom decodes the configuration held by v and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return cfg, nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// ResolveDir expands a leading ~ and returns an absolute, cleaned path so
// change events and directory listings agree on path identity.
func ResolveDir(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "herobot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".herobot"
	}
	return filepath.Join(home, ".config", "herobot")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Redacted returns a copy of c that is safe to print.
func (c Config) Redacted() Config {
	if c.Bot.Token != "" {
		c.Bot.Token = "***"
	}
	if c.Watch.Ignore != nil {
		c.Watch.Ignore = append([]string(nil), c.Watch.Ignore...)
	}
	return c
}
