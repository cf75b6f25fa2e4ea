// Package config assembles the runtime configuration for the sidequest
// agents. Load reads the environment and the optional credentials file
// exactly once at startup; the resulting Config is passed down by
// constructor injection and never re-read.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sidequest/credentials"
)

// Defaults applied when the environment is silent.
const (
	DefaultXPAddr       = ":10001"
	DefaultCalendarAddr = ":10002"
	DefaultEmailAddr    = ":10003"
	DefaultResearchAddr = ":5002"

	DefaultTimezone = "Asia/Kolkata"

	DefaultClassifierProvider = "groq"
	DefaultClassifierModel    = "llama-3.3-70b-versatile"
	DefaultResearchProvider   = "google"
	DefaultResearchModel      = "gemini-2.5-flash"
	DefaultFallbackProvider   = "groq"
	DefaultFallbackModel      = "llama-3.3-70b-versatile"
	DefaultDrafterProvider    = "groq"
	DefaultDrafterModel       = "llama-3.3-70b-versatile"

	DefaultClassifierTimeout = 10 * time.Second
	DefaultStoreTimeout      = 15 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	Notion     Notion
	Classifier LLMUse
	XP         XP
	Calendar   Calendar
	Email      Email
	Research   Research
	Ledger     Ledger
}

// Notion configures the task store client.
type Notion struct {
	APIKey         string
	TaskDatabaseID string
	BaseURL        string
	Timeout        time.Duration
}

// LLMUse names a provider/model pair for one LLM-backed capability.
type LLMUse struct {
	Provider  string
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// XP configures the award agent.
type XP struct {
	Addr           string
	Timezone       string
	Source         string
	RequestTimeout time.Duration
}

// Calendar configures the calendar agent.
type Calendar struct {
	Addr            string
	CredentialsPath string
	CalendarID      string
	Timezone        string
	RequestTimeout  time.Duration
}

// Email configures the email agent.
type Email struct {
	Addr           string
	BrevoAPIKey    string
	BrevoBaseURL   string
	SenderEmail    string
	SenderName     string
	Drafter        LLMUse
	RequestTimeout time.Duration
}

// Research configures the research agent.
type Research struct {
	Addr           string
	Primary        LLMUse
	Fallback       LLMUse
	RequestTimeout time.Duration
}

// Ledger configures the XP ledger sinks. Empty fields disable a sink.
type Ledger struct {
	NotionDatabaseID string
	PostgresURL      string
	ArchivePath      string
}

// Load builds the Config from the environment and the optional
// credentials file. Missing credentials are not an error here; each
// component constructor validates what it actually needs.
func Load() (*Config, error) {
	creds, path, err := credentials.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials file %s: %w", path, err)
	}
	return build(creds)
}

// LoadFrom is Load with an explicit credentials file instead of the
// standard lookup paths.
func LoadFrom(credentialsPath string) (*Config, error) {
	creds, err := credentials.LoadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("load credentials file %s: %w", credentialsPath, err)
	}
	return build(creds)
}

func build(creds *credentials.Credentials) (*Config, error) {
	classifierTimeout, err := envDuration("CLASSIFIER_TIMEOUT", DefaultClassifierTimeout)
	if err != nil {
		return nil, err
	}
	storeTimeout, err := envDuration("STORE_TIMEOUT", DefaultStoreTimeout)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	classifierProvider := envOr("CLASSIFIER_PROVIDER", DefaultClassifierProvider)
	drafterProvider := envOr("DRAFTER_PROVIDER", DefaultDrafterProvider)

	cfg := &Config{
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),

		Notion: Notion{
			APIKey:         creds.GetAPIKey("notion"),
			TaskDatabaseID: os.Getenv("NOTION_TASK_DATABASE_ID"),
			BaseURL:        os.Getenv("NOTION_BASE_URL"),
			Timeout:        storeTimeout,
		},

		Classifier: LLMUse{
			Provider:  classifierProvider,
			Model:     envOr("CLASSIFIER_MODEL", DefaultClassifierModel),
			APIKey:    creds.GetAPIKey(classifierProvider),
			MaxTokens: 512,
			Timeout:   classifierTimeout,
		},

		XP: XP{
			Addr:           envAddr("XP_AGENT_PORT", DefaultXPAddr),
			Timezone:       envOr("XP_TIMEZONE", DefaultTimezone),
			Source:         envOr("XP_SOURCE", "avatar"),
			RequestTimeout: requestTimeout,
		},

		Calendar: Calendar{
			Addr:            envAddr("CALENDAR_AGENT_PORT", DefaultCalendarAddr),
			CredentialsPath: envOr("GOOGLE_CREDENTIALS_PATH", "/etc/secrets/google_service_key.json"),
			CalendarID:      os.Getenv("GOOGLE_CALENDAR_ID"),
			Timezone:        envOr("CALENDAR_TIMEZONE", DefaultTimezone),
			RequestTimeout:  requestTimeout,
		},

		Email: Email{
			Addr:         envAddr("EMAIL_AGENT_PORT", DefaultEmailAddr),
			BrevoAPIKey:  creds.GetAPIKey("brevo"),
			BrevoBaseURL: os.Getenv("BREVO_BASE_URL"),
			SenderEmail:  envOr("SENDER_EMAIL", "pos-agent@mvp.com"),
			SenderName:   envOr("SENDER_NAME", "POS AI Agent"),
			Drafter: LLMUse{
				Provider:  drafterProvider,
				Model:     envOr("DRAFTER_MODEL", DefaultDrafterModel),
				APIKey:    creds.GetAPIKey(drafterProvider),
				MaxTokens: 1024,
				Timeout:   classifierTimeout,
			},
			RequestTimeout: requestTimeout,
		},

		Research: Research{
			Addr: envAddr("RESEARCH_AGENT_PORT", DefaultResearchAddr),
			Primary: LLMUse{
				Provider:  DefaultResearchProvider,
				Model:     envOr("RESEARCH_MODEL", DefaultResearchModel),
				APIKey:    creds.GetAPIKey(DefaultResearchProvider),
				MaxTokens: 2048,
				Timeout:   requestTimeout,
			},
			Fallback: LLMUse{
				Provider:  DefaultFallbackProvider,
				Model:     envOr("RESEARCH_FALLBACK_MODEL", DefaultFallbackModel),
				APIKey:    creds.GetAPIKey(DefaultFallbackProvider),
				MaxTokens: 2048,
				Timeout:   requestTimeout,
			},
			RequestTimeout: requestTimeout,
		},

		Ledger: Ledger{
			NotionDatabaseID: os.Getenv("NOTION_XP_LEDGER_ID"),
			PostgresURL:      os.Getenv("XP_DATABASE_URL"),
			ArchivePath:      os.Getenv("XP_ARCHIVE_PATH"),
		},
	}

	return cfg, nil
}

// envOr returns the environment value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envAddr turns a port env var into a listen address.
func envAddr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if _, err := strconv.Atoi(v); err == nil {
		return ":" + v
	}
	return v
}

// envDuration parses a duration env var.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
