package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/credentials"
	"github.com/epitome/examportal/internal/export"
	"github.com/epitome/examportal/internal/ledger"
	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/notify"
	"github.com/epitome/examportal/internal/store"
)

type Config struct {
	Server struct {
		Port                  string `toml:"port"`
		CookieName            string `toml:"cookie_name"`
		SecureCookie          bool   `toml:"secure_cookie"`
		TemplatesDir          string `toml:"templates_dir"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	} `toml:"server"`

	Admin struct {
		Username string `toml:"username"`
		Password string `toml:"password"`
	} `toml:"admin"`

	Database struct {
		DSN              string `toml:"dsn"`
		MigrationsDir    string `toml:"migrations_dir"`
		OpTimeoutSeconds int    `toml:"op_timeout_seconds"`
	} `toml:"database"`

	Sessions struct {
		RedisURL   string `toml:"redis_url"`
		TTLMinutes int    `toml:"ttl_minutes"`
	} `toml:"sessions"`

	Credentials credentials.Config `toml:"credentials"`
	Ledger      ledger.Config      `toml:"ledger"`

	Scoring struct {
		PassThreshold int `toml:"pass_threshold"`
	} `toml:"scoring"`

	Notify struct {
		TimeoutSeconds int                   `toml:"timeout_seconds"`
		Mail           notify.MailConfig     `toml:"mail"`
		Telegram       notify.TelegramConfig `toml:"telegram"`
	} `toml:"notify"`

	Export export.Config `toml:"export"`
}

func (c *Config) OpTimeout() time.Duration {
	return time.Duration(c.Database.OpTimeoutSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// LoadConfig reads the TOML file, then overlays secrets from the environment.
// A .env file in the working directory is loaded first if present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug.Printf("No .env file loaded: %v", err)
	}
	return loadConfig(path, os.LookupEnv)
}

func loadConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w",
			path,
			err,
		)
	}

	if err := config.applyEnv(lookup); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :5000")
	}
	if config.Admin.Username == "" || config.Admin.Password == "" {
		return nil, fmt.Errorf("admin credentials are not configured, set ADMIN_USERNAME and ADMIN_PASSWORD")
	}

	logger.Debug.Printf("Loaded config: db=%s sessions=%s logs=%s pass_threshold=%d",
		store.TypeForDSN(config.Database.DSN), sessionKind(config.Sessions.RedisURL),
		config.Ledger.LogsDir, config.Scoring.PassThreshold)

	return &config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADMIN_USERNAME": &c.Admin.Username,
		"ADMIN_PASSWORD": &c.Admin.Password,
		"DATABASE_DSN":   &c.Database.DSN,
		"REDIS_URL":      &c.Sessions.RedisURL,
		"SMTP_HOST":      &c.Notify.Mail.Host,
		"SMTP_USER":      &c.Notify.Mail.Username,
		"SMTP_PASS":      &c.Notify.Mail.Password,
		"EMAIL_FROM":     &c.Notify.Mail.From,
		"TELEGRAM_TOKEN": &c.Notify.Telegram.Token,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		c.Notify.Mail.Port = port
	}
	if v, ok := lookup("NOTIFY_EMAIL"); ok && v != "" {
		c.Notify.Mail.Admins = models.SplitEmails(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.CookieName == "" {
		c.Server.CookieName = "exam_session"
	}
	if c.Server.TemplatesDir == "" {
		c.Server.TemplatesDir = "./templates"
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 15
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "exam_portal.db"
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "./migrations"
	}
	if c.Database.OpTimeoutSeconds == 0 {
		c.Database.OpTimeoutSeconds = 5
	}
	if c.Sessions.TTLMinutes == 0 {
		c.Sessions.TTLMinutes = 240
	}
	if c.Ledger.LogsDir == "" {
		c.Ledger.LogsDir = "./logs"
	}
	if c.Ledger.DefaultLimit == 0 {
		c.Ledger.DefaultLimit = ledger.DefaultListLimit
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = 30
	}
}

func sessionKind(redisURL string) string {
	if redisURL == "" {
		return "memory"
	}
	return "redis"
}
