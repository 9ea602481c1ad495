package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the application.
type Config struct {
	MetricsPort int    `json:"metrics_port" validate:"gte=0"`
	DBPath      string `json:"db_path" validate:"required"`
	Timezone    string `json:"timezone" validate:"required"`

	Assistant struct {
		BaseURL         string   `json:"base_url" validate:"required,url"`
		APIKey          string   `json:"api_key" validate:"required"`
		Model           string   `json:"model" validate:"required"`
		DispatchTimeout Duration `json:"dispatch_timeout" validate:"min=1s"`
	} `json:"assistant"`

	Scheduler struct {
		PollInterval  Duration `json:"poll_interval" validate:"min=1s"`
		ErrorBackoff  Duration `json:"error_backoff" validate:"min=1s"`
		FailThreshold int      `json:"fail_threshold" validate:"min=1"`
	} `json:"scheduler"`

	// Telegram is optional; an empty bot token disables notifications.
	Telegram struct {
		BotToken string `json:"bot_token"`
		ChatID   int64  `json:"chat_id"`
	} `json:"telegram"`
}

// Duration is a wrapper around time.Duration that implements JSON marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads configuration from a file and overrides with environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in the tunables a minimal config file omits.
func (c *Config) applyDefaults() {
	if c.Scheduler.PollInterval.Duration == 0 {
		c.Scheduler.PollInterval = Duration{30 * time.Second}
	}
	if c.Scheduler.ErrorBackoff.Duration == 0 {
		c.Scheduler.ErrorBackoff = Duration{time.Minute}
	}
	if c.Scheduler.FailThreshold == 0 {
		c.Scheduler.FailThreshold = 3
	}
	if c.Assistant.DispatchTimeout.Duration == 0 {
		c.Assistant.DispatchTimeout = Duration{2 * time.Minute}
	}
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	// MetricsPort overrides
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}

	// DBPath overrides
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}

	// Timezone overrides
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Timezone = v
	}

	// Assistant overrides
	if v := os.Getenv("ASSISTANT_BASE_URL"); v != "" {
		c.Assistant.BaseURL = v
	}
	if v := os.Getenv("ASSISTANT_API_KEY"); v != "" {
		c.Assistant.APIKey = v
	}
	if v := os.Getenv("ASSISTANT_MODEL"); v != "" {
		c.Assistant.Model = v
	}

	// Scheduler overrides
	if v := os.Getenv("SCHEDULER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SCHEDULER_POLL_INTERVAL: %w", err)
		}
		c.Scheduler.PollInterval = Duration{d}
	}

	// Telegram overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// The timezone must resolve to a real IANA location; schedule math
	// depends on it.
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram bot token set but chat_id missing")
	}

	return nil
}

// Location returns the validated deployment timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
