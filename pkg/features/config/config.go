package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
)

type Provider string

const (
	ProviderTwilio Provider = "twilio"
	ProviderSNS    Provider = "sns"
)

const (
	DefaultWindow      = 4 * time.Hour
	DefaultConcurrency = 4
	DefaultBrand       = "MathPracs"
	DefaultRecordTTL   = 30 * 24 * time.Hour
)

var DefaultSkipStatuses = []string{"cancelled", "canceled"}

// Config holds everything a reminder run needs. It is read once per cold start.
type Config struct {
	SessionsTable  string `json:"sessionsTable"`
	StudentsTable  string `json:"studentsTable"`
	RemindersTable string `json:"remindersTable"`
	SecretsARN     string `json:"secretsArn"`

	Provider     Provider      `json:"provider"`
	Window       time.Duration `json:"window"`
	Concurrency  int           `json:"concurrency"`
	Brand        string        `json:"brand"`
	SkipStatuses []string      `json:"skipStatuses"`
	RecordTTL    time.Duration `json:"recordTTL"`

	DynamoEndpoint string       `json:"dynamoEndpoint,omitempty"`
	LogLevel       logrus.Level `json:"logLevel"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from an arbitrary variable source, applying defaults
// for everything optional.
func FromLookup(getenv func(string) string) (Config, error) {
	cfg := Config{
		SessionsTable:  getenv("SESSIONS_TABLE_NAME"),
		StudentsTable:  getenv("STUDENTS_TABLE_NAME"),
		RemindersTable: getenv("SESSION_REMINDERS_TABLE_NAME"),
		SecretsARN:     getenv("SECRETS_ARN"),
		DynamoEndpoint: getenv("DYNAMO_ENDPOINT"),

		Provider:     ProviderTwilio,
		Window:       DefaultWindow,
		Concurrency:  DefaultConcurrency,
		Brand:        DefaultBrand,
		SkipStatuses: DefaultSkipStatuses,
		RecordTTL:    DefaultRecordTTL,
		LogLevel:     logrus.InfoLevel,
	}

	if v := getenv("SMS_PROVIDER"); v != "" {
		cfg.Provider = Provider(strings.ToLower(v))
	}
	if v := getenv("REMINDER_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("REMINDER_WINDOW: %w", err)
		}
		cfg.Window = d
	}
	if v := getenv("REMINDER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REMINDER_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := getenv("REMINDER_BRAND"); v != "" {
		cfg.Brand = v
	}
	// "none" turns status filtering off.
	if v := getenv("REMINDER_SKIP_STATUSES"); v != "" {
		if strings.EqualFold(v, "none") {
			cfg.SkipStatuses = nil
		} else {
			cfg.SkipStatuses = splitList(v)
		}
	}
	if v := getenv("REMINDER_RECORD_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("REMINDER_RECORD_TTL: %w", err)
		}
		cfg.RecordTTL = d
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var missing []string
	if c.SessionsTable == "" {
		missing = append(missing, "SESSIONS_TABLE_NAME")
	}
	if c.StudentsTable == "" {
		missing = append(missing, "STUDENTS_TABLE_NAME")
	}
	if c.RemindersTable == "" {
		missing = append(missing, "SESSION_REMINDERS_TABLE_NAME")
	}
	if c.Provider == ProviderTwilio && c.SecretsARN == "" {
		missing = append(missing, "SECRETS_ARN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", pkgerrors.ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Provider {
	case ProviderTwilio, ProviderSNS:
	default:
		return fmt.Errorf("unknown SMS_PROVIDER %q", c.Provider)
	}
	if c.Window <= 0 {
		return fmt.Errorf("REMINDER_WINDOW must be positive, got %s", c.Window)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("REMINDER_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.RecordTTL < 0 {
		return fmt.Errorf("REMINDER_RECORD_TTL cannot be negative, got %s", c.RecordTTL)
	}
	return nil
}

// SkipsStatus reports whether sessions with the given booking status get no reminder.
func (c Config) SkipsStatus(status string) bool {
	for _, s := range c.SkipStatuses {
		if strings.EqualFold(s, strings.TrimSpace(status)) {
			return true
		}
	}
	return false
}

func (c Config) JSON() string {
	configJSON, _ := json.Marshal(c)
	return string(configJSON)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
