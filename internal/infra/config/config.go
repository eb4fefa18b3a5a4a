package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL string

	IMAPServer   string
	IMAPPort     int
	SMTPServer   string
	SMTPPort     int
	MailUsername string
	MailPassword string

	// SubjectMarker is the keyword present in every outgoing subject line;
	// mailbox searches narrow on it instead of on task names.
	SubjectMarker string
	// ReplyLookbackDays bounds server-side search recency.
	ReplyLookbackDays int
	// MaxCandidateEmails caps how many candidates one ingestion pass handles.
	MaxCandidateEmails int
	// IngestPassTimeout bounds the wall clock of one ingestion pass.
	IngestPassTimeout time.Duration

	TemplateDir string
	ExportDir   string

	CronSpecCheckReplies string

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.IMAPServer = os.Getenv("IMAP_SERVER")
	if cfg.IMAPServer == "" {
		return nil, fmt.Errorf("IMAP_SERVER is not set")
	}
	var err error
	cfg.IMAPPort, err = intEnv("IMAP_PORT", 993)
	if err != nil {
		return nil, err
	}

	cfg.SMTPServer = os.Getenv("SMTP_SERVER")
	if cfg.SMTPServer == "" {
		return nil, fmt.Errorf("SMTP_SERVER is not set")
	}
	cfg.SMTPPort, err = intEnv("SMTP_PORT", 465)
	if err != nil {
		return nil, err
	}

	cfg.MailUsername = os.Getenv("MAIL_USERNAME")
	if cfg.MailUsername == "" {
		return nil, fmt.Errorf("MAIL_USERNAME is not set")
	}
	cfg.MailPassword = os.Getenv("MAIL_PASSWORD")
	if cfg.MailPassword == "" {
		return nil, fmt.Errorf("MAIL_PASSWORD is not set")
	}

	cfg.SubjectMarker = os.Getenv("SUBJECT_MARKER")
	if cfg.SubjectMarker == "" {
		cfg.SubjectMarker = "汇总"
	}

	cfg.ReplyLookbackDays, err = intEnv("REPLY_LOOKBACK_DAYS", 30)
	if err != nil {
		return nil, err
	}
	cfg.MaxCandidateEmails, err = intEnv("MAX_CANDIDATE_EMAILS", 200)
	if err != nil {
		return nil, err
	}

	passTimeoutSec, err := intEnv("INGEST_PASS_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	cfg.IngestPassTimeout = time.Duration(passTimeoutSec) * time.Second

	cfg.TemplateDir = os.Getenv("TEMPLATE_DIR")
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = "templates/excel"
	}
	cfg.ExportDir = os.Getenv("EXPORT_DIR")
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}

	cfg.CronSpecCheckReplies = os.Getenv("CRON_SPEC_CHECK_REPLIES")
	if cfg.CronSpecCheckReplies == "" {
		cfg.CronSpecCheckReplies = "*/15 * * * *" // Default: every 15 minutes
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
