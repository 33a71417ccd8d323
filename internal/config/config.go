package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/cesargomez89/adfreecast/internal/constants"
)

// ConfigPathEnv names the environment variable that points at an optional TOML file.
const ConfigPathEnv = "ADFREECAST_CONFIG"

// Config holds all application configuration
type Config struct {
	Port                string
	DBPath              string
	AudioDir            string
	ProcessorURL        string
	BaseURL             string
	LogLevel            string
	LogFormat           string
	LockPath            string
	MaxConcurrent       int
	PollInterval        time.Duration
	StatusInterval      time.Duration
	ProcessingTimeout   time.Duration
	StartDelay          time.Duration
	FeedRefreshInterval time.Duration
	ProcessorRPS        float64
	RecoverOnStart      bool

	// Source is the TOML file that was applied, empty when none.
	Source string

	parseErrors []string
}

// fileConfig mirrors the TOML layout. Every key is optional.
type fileConfig struct {
	MaxConcurrent       *int     `toml:"max_concurrent"`
	ProcessorRPS        *float64 `toml:"processor_rps"`
	RecoverOnStart      *bool    `toml:"recover_on_start"`
	Port                string   `toml:"port"`
	DBPath              string   `toml:"db_path"`
	AudioDir            string   `toml:"audio_dir"`
	ProcessorURL        string   `toml:"processor_url"`
	BaseURL             string   `toml:"base_url"`
	LogLevel            string   `toml:"log_level"`
	LogFormat           string   `toml:"log_format"`
	LockPath            string   `toml:"lock_path"`
	PollInterval        string   `toml:"poll_interval"`
	StatusInterval      string   `toml:"status_interval"`
	ProcessingTimeout   string   `toml:"processing_timeout"`
	StartDelay          string   `toml:"start_delay"`
	FeedRefreshInterval string   `toml:"feed_refresh_interval"`
}

// Load builds the configuration from defaults, an optional TOML file, an
// optional .env file and the environment, in increasing precedence.
// An empty path falls back to $ADFREECAST_CONFIG.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}

	fallback := defaults()
	var source string
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fc.values() {
			fallback[k] = v
		}
		source = path
	}

	cfg := &Config{
		Port:         getEnv("PORT", fallback["PORT"]),
		DBPath:       getEnv("DB_PATH", fallback["DB_PATH"]),
		AudioDir:     getEnv("AUDIO_DIR", fallback["AUDIO_DIR"]),
		ProcessorURL: getEnv("PROCESSOR_URL", fallback["PROCESSOR_URL"]),
		BaseURL:      strings.TrimRight(getEnv("BASE_URL", fallback["BASE_URL"]), "/"),
		LogLevel:     getEnv("LOG_LEVEL", fallback["LOG_LEVEL"]),
		LogFormat:    getEnv("LOG_FORMAT", fallback["LOG_FORMAT"]),
		LockPath:     getEnv("LOCK_PATH", fallback["LOCK_PATH"]),
		Source:       source,
	}
	if cfg.LockPath == "" {
		cfg.LockPath = filepath.Join(filepath.Dir(cfg.DBPath), constants.DefaultLockFile)
	}

	cfg.MaxConcurrent = cfg.intValue("MAX_CONCURRENT", fallback)
	cfg.PollInterval = cfg.durationValue("POLL_INTERVAL", fallback)
	cfg.StatusInterval = cfg.durationValue("STATUS_INTERVAL", fallback)
	cfg.ProcessingTimeout = cfg.durationValue("PROCESSING_TIMEOUT", fallback)
	cfg.StartDelay = cfg.durationValue("START_DELAY", fallback)
	cfg.FeedRefreshInterval = cfg.durationValue("FEED_REFRESH_INTERVAL", fallback)
	cfg.ProcessorRPS = cfg.floatValue("PROCESSOR_RPS", fallback)
	cfg.RecoverOnStart = cfg.boolValue("RECOVER_ON_START", fallback)

	return cfg, nil
}

func defaults() map[string]string {
	return map[string]string{
		"PORT":                  constants.DefaultPort,
		"DB_PATH":               constants.DefaultDBPath,
		"AUDIO_DIR":             constants.DefaultAudioDir,
		"PROCESSOR_URL":         constants.DefaultProcessorURL,
		"BASE_URL":              constants.DefaultBaseURL,
		"LOG_LEVEL":             "info",
		"LOG_FORMAT":            "text",
		"LOCK_PATH":             "",
		"MAX_CONCURRENT":        strconv.Itoa(constants.DefaultConcurrency),
		"POLL_INTERVAL":         constants.DefaultPollInterval.String(),
		"STATUS_INTERVAL":       constants.DefaultStatusInterval.String(),
		"PROCESSING_TIMEOUT":    constants.DefaultProcessingTimeout.String(),
		"START_DELAY":           constants.DefaultStartDelay.String(),
		"FEED_REFRESH_INTERVAL": time.Duration(constants.DefaultFeedRefreshInterval).String(),
		"PROCESSOR_RPS":         strconv.FormatFloat(constants.DefaultProcessorRPS, 'f', -1, 64),
		"RECOVER_ON_START":      "true",
	}
}

func readFile(path string) (*fileConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// values flattens the set keys of the file into environment-style names.
func (f *fileConfig) values() map[string]string {
	out := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}

	set("PORT", f.Port)
	set("DB_PATH", f.DBPath)
	set("AUDIO_DIR", f.AudioDir)
	set("PROCESSOR_URL", f.ProcessorURL)
	set("BASE_URL", f.BaseURL)
	set("LOG_LEVEL", f.LogLevel)
	set("LOG_FORMAT", f.LogFormat)
	set("LOCK_PATH", f.LockPath)
	set("POLL_INTERVAL", f.PollInterval)
	set("STATUS_INTERVAL", f.StatusInterval)
	set("PROCESSING_TIMEOUT", f.ProcessingTimeout)
	set("START_DELAY", f.StartDelay)
	set("FEED_REFRESH_INTERVAL", f.FeedRefreshInterval)
	if f.MaxConcurrent != nil {
		out["MAX_CONCURRENT"] = strconv.Itoa(*f.MaxConcurrent)
	}
	if f.ProcessorRPS != nil {
		out["PROCESSOR_RPS"] = strconv.FormatFloat(*f.ProcessorRPS, 'f', -1, 64)
	}
	if f.RecoverOnStart != nil {
		out["RECOVER_ON_START"] = strconv.FormatBool(*f.RecoverOnStart)
	}
	return out
}

// loadDotEnv applies a .env file when one exists. Existing variables win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) intValue(key string, fallback map[string]string) int {
	raw := getEnv(key, fallback[key])
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a whole number, got: %s", key, raw))
	}
	return v
}

func (c *Config) durationValue(key string, fallback map[string]string) time.Duration {
	raw := getEnv(key, fallback[key])
	v, err := time.ParseDuration(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration like 5s or 15m, got: %s", key, raw))
	}
	return v
}

func (c *Config) floatValue(key string, fallback map[string]string) float64 {
	raw := getEnv(key, fallback[key])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number, got: %s", key, raw))
	}
	return v
}

func (c *Config) boolValue(key string, fallback map[string]string) bool {
	raw := getEnv(key, fallback[key])
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be true or false, got: %s", key, raw))
	}
	return v
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.AudioDir == "" {
		errors = append(errors, "AUDIO_DIR cannot be empty")
	}

	// Both URLs must be absolute http(s)
	for key, raw := range map[string]string{"PROCESSOR_URL": c.ProcessorURL, "BASE_URL": c.BaseURL} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", key))
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", key, raw))
		}
	}

	if c.MaxConcurrent < 1 {
		errors = append(errors, fmt.Sprintf("MAX_CONCURRENT must be at least 1, got: %d", c.MaxConcurrent))
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "POLL_INTERVAL must be positive")
	}
	if c.StatusInterval <= 0 {
		errors = append(errors, "STATUS_INTERVAL must be positive")
	}
	if c.ProcessingTimeout < c.StatusInterval {
		errors = append(errors, "PROCESSING_TIMEOUT must be at least STATUS_INTERVAL")
	}
	if c.StartDelay < 0 {
		errors = append(errors, "START_DELAY cannot be negative")
	}
	if c.FeedRefreshInterval < 0 {
		errors = append(errors, "FEED_REFRESH_INTERVAL cannot be negative")
	}
	if c.ProcessorRPS <= 0 {
		errors = append(errors, "PROCESSOR_RPS must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
		"auto": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, auto, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// MaxStatusChecks is how many polls fit into the processing timeout.
func (c *Config) MaxStatusChecks() int {
	if c.StatusInterval <= 0 {
		return 1
	}
	n := int(c.ProcessingTimeout / c.StatusInterval)
	if n < 1 {
		return 1
	}
	return n
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
