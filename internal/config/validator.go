package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "heartbeat.interval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// MinHeartbeatInterval is the shortest accepted heartbeat period.
const MinHeartbeatInterval = time.Second

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ChatID parses the recipient id.
func (b BotConfig) ChatID() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(b.RecipientID), 10, 64)
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBot()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateHeartbeat()...)
	errors = append(errors, c.validateChat()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBot() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Bot.Token) == "" {
		errors = append(errors, ValidationError{
			Field:   "bot.token",
			Value:   "",
			Message: "must be set (TELEGRAM_BOT_TOKEN or BOT_TOKEN)",
		})
	}

	if strings.TrimSpace(c.Bot.RecipientID) == "" {
		errors = append(errors, ValidationError{
			Field:   "bot.recipient_id",
			Value:   "",
			Message: "must be set (RID)",
		})
	} else if _, err := c.Bot.ChatID(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "bot.recipient_id",
			Value:   c.Bot.RecipientID,
			Message: "must be an integer",
		})
	}

	return errors
}

func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "watch.dir",
			Value:   "",
			Message: "must be set (WATCH_DIR)",
		})
	} else if info, err := os.Stat(c.Watch.Dir); err != nil {
		errors = append(errors, ValidationError{
			Field:   "watch.dir",
			Value:   c.Watch.Dir,
			Message: "does not exist",
		})
	} else if !info.IsDir() {
		errors = append(errors, ValidationError{
			Field:   "watch.dir",
			Value:   c.Watch.Dir,
			Message: "is not a directory",
		})
	}

	if c.Watch.Debounce < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce",
			Value:   c.Watch.Debounce,
			Message: "must be non-negative",
		})
	}

	for _, pattern := range c.Watch.Ignore {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "watch.ignore",
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateHeartbeat() []ValidationError {
	var errors []ValidationError

	if c.Heartbeat.Interval < MinHeartbeatInterval {
		errors = append(errors, ValidationError{
			Field:   "heartbeat.interval",
			Value:   c.Heartbeat.Interval,
			Message: fmt.Sprintf("must be at least %s", MinHeartbeatInterval),
		})
	}

	if strings.TrimSpace(c.Heartbeat.OnlineText) == "" {
		errors = append(errors, ValidationError{
			Field:   "heartbeat.online_text",
			Value:   c.Heartbeat.OnlineText,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateChat() []ValidationError {
	var errors []ValidationError

	if strings.Count(c.Chat.APIEndpoint, "%s") != 2 {
		errors = append(errors, ValidationError{
			Field:   "chat.api_endpoint",
			Value:   c.Chat.APIEndpoint,
			Message: "must contain two %s placeholders (token, method)",
		})
	}

	if c.Chat.PollTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "chat.poll_timeout",
			Value:   c.Chat.PollTimeout,
			Message: "must be non-negative",
		})
	}

	if c.Chat.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "chat.rate_limit",
			Value:   c.Chat.RateLimit,
			Message: "must be positive",
		})
	}

	if c.Chat.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "chat.burst",
			Value:   c.Chat.Burst,
			Message: "must be at least 1",
		})
	}

	if c.Chat.QueueSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chat.queue_size",
			Value:   c.Chat.QueueSize,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
