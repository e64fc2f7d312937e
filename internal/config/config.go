// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Data        DataConfig
	Server      ServerConfig
	Auth        AuthConfig
	Mail        MailConfig
	Pairing     PairingConfig
	RateLimit   RateLimitConfig
	ImportWatch ImportWatchConfig
	Backup      BackupConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// PublicURL is the base URL used in links sent by email.
	PublicURL string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage locations.
type DataConfig struct {
	BasePath string
}

// DatabasePath is the sqlite document store file.
func (d DataConfig) DatabasePath() string { return filepath.Join(d.BasePath, "cellar.db") }

// KVPath is the badger directory for short-lived state.
func (d DataConfig) KVPath() string { return filepath.Join(d.BasePath, "kv") }

// SearchPath is the bleve index directory.
func (d DataConfig) SearchPath() string { return filepath.Join(d.BasePath, "search") }

// KeyPath is the PASETO key file.
func (d DataConfig) KeyPath() string { return filepath.Join(d.BasePath, "auth.key") }

// BackupPath is the directory holding backup archives.
func (d DataConfig) BackupPath() string { return filepath.Join(d.BasePath, "backups") }

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 60s, covers AI calls)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	AccessTokenDuration time.Duration
	// VerificationCodeTTL bounds how long an emailed registration code stays valid.
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
}

// MailConfig holds outbound email configuration.
// Verification codes go out over SMTP, password reset links through Resend.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string

	ResendAPIKey string
	ResendURL    string
	ResetFrom    string
}

// SMTPConfigured reports whether verification mail can be sent.
func (m MailConfig) SMTPConfigured() bool {
	return m.SMTPHost != "" && m.SMTPUser != "" && m.SMTPPassword != ""
}

// PairingConfig holds Gemini configuration.
type PairingConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	FallbackModels []string
	Timeout        time.Duration
	// RequestsPerMinute caps outbound calls per user.
	RequestsPerMinute int
}

// Models returns the primary model followed by its fallbacks.
func (p PairingConfig) Models() []string {
	models := make([]string, 0, 1+len(p.FallbackModels))
	if p.Model != "" {
		models = append(models, p.Model)
	}
	for _, m := range p.FallbackModels {
		if m != "" && m != p.Model {
			models = append(models, m)
		}
	}
	return models
}

// RateLimitConfig holds inbound rate limiting for the auth routes.
type RateLimitConfig struct {
	AuthRequests int
	AuthWindow   time.Duration
	AuthBurst    int
}

// ImportWatchConfig holds the CSV drop folder configuration.
type ImportWatchConfig struct {
	Enabled  bool
	Path     string // default: {data}/imports
	Debounce time.Duration
}

// BackupConfig schedules automatic backups. A zero Interval disables them.
type BackupConfig struct {
	Interval time.Duration
	// Keep is how many scheduled backups are retained; older ones are deleted.
	Keep int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("cellar-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for database, index and keys")
	publicURL := fs.String("public-url", "", "Public URL used in emailed links")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 24h)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	geminiModel := fs.String("gemini-model", "", "Primary Gemini model")
	importWatch := fs.String("import-watch", "", "Watch the import drop folder (default: false)")
	backupInterval := fs.String("backup-interval", "", "Scheduled backup interval, 0 disables (e.g., 24h)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			PublicURL:   strings.TrimRight(getConfigValue(*publicURL, "APP_URL", "http://localhost:3000"), "/"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
		Mail: MailConfig{
			SMTPHost:     getConfigValue("", "EMAIL_SERVER_HOST", ""),
			SMTPPort:     getIntConfigValue("", "EMAIL_SERVER_PORT", 587),
			SMTPUser:     getConfigValue("", "EMAIL_SERVER_USER", ""),
			SMTPPassword: getConfigValue("", "EMAIL_SERVER_PASS", ""),
			From:         getConfigValue("", "EMAIL_FROM", ""),
			ResendAPIKey: getConfigValue("", "RESEND_API_KEY", ""),
			ResendURL:    getConfigValue("", "RESEND_API_URL", "https://api.resend.com/emails"),
			ResetFrom:    getConfigValue("", "RESET_EMAIL_FROM", "MyCellar <noreply@mycellarapp.com>"),
		},
		Pairing: PairingConfig{
			APIKey:            getConfigValue("", "GEMINI_API_KEY", ""),
			BaseURL:           getConfigValue("", "GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1"),
			Model:             getConfigValue(*geminiModel, "GEMINI_MODEL", "gemini-2.0-flash"),
			FallbackModels:    splitList(getConfigValue("", "GEMINI_FALLBACK_MODELS", "gemini-1.5-flash")),
			RequestsPerMinute: getIntConfigValue("", "GEMINI_REQUESTS_PER_MINUTE", 20),
		},
		RateLimit: RateLimitConfig{
			AuthRequests: getIntConfigValue("", "AUTH_RATE_LIMIT", 10),
			AuthBurst:    getIntConfigValue("", "AUTH_RATE_BURST", 5),
		},
		ImportWatch: ImportWatchConfig{
			Enabled: getBoolConfigValue(*importWatch, "IMPORT_WATCH_ENABLED", false),
			Path:    getConfigValue("", "IMPORT_WATCH_PATH", ""),
		},
		Backup: BackupConfig{
			Keep: getIntConfigValue("", "BACKUP_KEEP", 7),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		fallback  string
		dst       *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h", &cfg.Auth.AccessTokenDuration},
		{"", "VERIFICATION_CODE_TTL", "15m", &cfg.Auth.VerificationCodeTTL},
		{"", "RESET_TOKEN_TTL", "1h", &cfg.Auth.ResetTokenTTL},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "60s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "GEMINI_TIMEOUT", "30s", &cfg.Pairing.Timeout},
		{"", "AUTH_RATE_WINDOW", "1m", &cfg.RateLimit.AuthWindow},
		{"", "IMPORT_WATCH_DEBOUNCE", "2s", &cfg.ImportWatch.Debounce},
		{*backupInterval, "BACKUP_INTERVAL", "0s", &cfg.Backup.Interval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.expandImportWatchPath(); err != nil {
		return nil, fmt.Errorf("invalid import watch path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535 {
		return fmt.Errorf("invalid EMAIL_SERVER_PORT: %d", c.Mail.SMTPPort)
	}

	if c.Auth.AccessTokenDuration <= 0 {
		return errors.New("access token duration must be positive")
	}

	if c.Backup.Interval < 0 {
		return errors.New("backup interval cannot be negative")
	}
	if c.Backup.Interval > 0 && c.Backup.Keep < 1 {
		return fmt.Errorf("invalid BACKUP_KEEP: %d (must keep at least one backup)", c.Backup.Keep)
	}

	// GEMINI_API_KEY may be empty; AI routes then answer "unavailable".

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults to ~/MyCellar/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "MyCellar", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandImportWatchPath defaults to {data}/imports.
func (c *Config) expandImportWatchPath() error {
	expanded, err := expandPath(c.ImportWatch.Path, filepath.Join(c.Data.BasePath, "imports"))
	if err != nil {
		return err
	}
	c.ImportWatch.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
