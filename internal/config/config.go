package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Credential backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the resolved remindctl configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RefreshTimeout    time.Duration
	KeepaliveInterval time.Duration
	UserAgent         string
	Credentials       Credentials
	Log               Log
}

// Credentials selects where the credential pair is persisted.
type Credentials struct {
	Backend string
	// Path is the credentials file for the file backend; empty means the default.
	Path          string
	Key           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Log configures logging.
type Log struct {
	Level string
	// File receives JSON lines when set; otherwise logs go to stderr.
	File string
}

const (
	defaultConfigPath = "~/.config/remindctl/config.toml"
	defaultBaseURL    = "http://localhost:8080"
	defaultTimeout    = 10 * time.Second
	defaultKeepalive  = time.Minute
	defaultUserAgent  = "remindctl/0.1"
	defaultCredKey    = "apptremind.tokens"
	defaultRedisAddr  = "localhost:6379"
	defaultLogLevel   = "info"
	defaultLogFile    = "~/.config/remindctl/remindctl.log"

	// EnvConfigPath names an alternative config file when no path is given.
	EnvConfigPath = "REMINDCTL_CONFIG"
)

// fileConfig mirrors config.toml. Every field can be overridden by its env var.
type fileConfig struct {
	BaseURL               string          `toml:"base_url" env:"REMINDCTL_BASE_URL"`
	TimeoutSeconds        int             `toml:"timeout_seconds" env:"REMINDCTL_TIMEOUT_SECONDS"`
	RefreshTimeoutSeconds int             `toml:"refresh_timeout_seconds" env:"REMINDCTL_REFRESH_TIMEOUT_SECONDS"`
	KeepaliveSeconds      int             `toml:"keepalive_seconds" env:"REMINDCTL_KEEPALIVE_SECONDS"`
	UserAgent             string          `toml:"user_agent" env:"REMINDCTL_USER_AGENT"`
	Credentials           fileCredentials `toml:"credentials"`
	Log                   fileLog         `toml:"log"`
}

type fileCredentials struct {
	Backend       string `toml:"backend" env:"REMINDCTL_CREDENTIALS_BACKEND"`
	Path          string `toml:"path" env:"REMINDCTL_CREDENTIALS_PATH"`
	Key           string `toml:"key" env:"REMINDCTL_CREDENTIALS_KEY"`
	RedisAddr     string `toml:"redis_addr" env:"REMINDCTL_REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REMINDCTL_REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REMINDCTL_REDIS_DB"`
}

type fileLog struct {
	Level string `toml:"level" env:"REMINDCTL_LOG_LEVEL"`
	File  string `toml:"file" env:"REMINDCTL_LOG_FILE"`
}

// Load reads the config file, applies environment overrides and fills
// defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	if err := readFile(resolved, &raw); err != nil {
		return Config{}, err
	}
	if err := cleanenv.ReadEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return raw.resolve()
}

func readFile(path string, raw *fileConfig) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (raw fileConfig) resolve() (Config, error) {
	cfg := Config{
		BaseURL:   orDefault(raw.BaseURL, defaultBaseURL),
		UserAgent: orDefault(raw.UserAgent, defaultUserAgent),
		Credentials: Credentials{
			Backend:       strings.ToLower(orDefault(raw.Credentials.Backend, BackendFile)),
			Key:           orDefault(raw.Credentials.Key, defaultCredKey),
			RedisAddr:     orDefault(raw.Credentials.RedisAddr, defaultRedisAddr),
			RedisPassword: raw.Credentials.RedisPassword,
			RedisDB:       raw.Credentials.RedisDB,
		},
		Log: Log{
			Level: strings.ToLower(orDefault(raw.Log.Level, defaultLogLevel)),
		},
	}

	var err error
	if cfg.Timeout, err = seconds("timeout_seconds", raw.TimeoutSeconds, defaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTimeout, err = seconds("refresh_timeout_seconds", raw.RefreshTimeoutSeconds, cfg.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.KeepaliveInterval, err = seconds("keepalive_seconds", raw.KeepaliveSeconds, defaultKeepalive); err != nil {
		return Config{}, err
	}

	switch cfg.Credentials.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("credentials.backend %q: want %s, %s or %s",
			cfg.Credentials.Backend, BackendFile, BackendRedis, BackendMemory)
	}
	if cfg.Credentials.RedisDB < 0 {
		return Config{}, fmt.Errorf("credentials.redis_db must not be negative")
	}

	if p := strings.TrimSpace(raw.Credentials.Path); p != "" {
		if cfg.Credentials.Path, err = expandPath(p); err != nil {
			return Config{}, fmt.Errorf("credentials.path: %w", err)
		}
	}
	if p := strings.TrimSpace(raw.Log.File); p != "" {
		if cfg.Log.File, err = expandPath(p); err != nil {
			return Config{}, fmt.Errorf("log.file: %w", err)
		}
	}
	return cfg, nil
}

func seconds(name string, value int, fallback time.Duration) (time.Duration, error) {
	switch {
	case value < 0:
		return 0, fmt.Errorf("%s must not be negative", name)
	case value == 0:
		return fallback, nil
	default:
		return time.Duration(value) * time.Second, nil
	}
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return expandPath(path)
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return expandPath(env)
	}
	return expandPath(defaultConfigPath)
}

// DefaultLogFile is where logs go when log.file is unset and the terminal is
// taken by the console.
func DefaultLogFile() (string, error) {
	return expandPath(defaultLogFile)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
