// Package config loads and validates photokeep YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
package config

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// BotConfig holds Telegram transport settings.
type BotConfig struct {
	// APIBase overrides the Bot API endpoint, mainly for tests.
	APIBase        string `yaml:"api_base"`
	PollTimeoutSec int    `yaml:"poll_timeout_sec"`
}

// Config mirrors the photokeep.yaml schema.
type Config struct {
	Log       LogConfig `yaml:"log"`
	DB        DBConfig  `yaml:"db"`
	PhotosDir string    `yaml:"photos_dir"`
	Bot       BotConfig `yaml:"bot"`
	// Categories is the allow-list for the first path segment.
	Categories []string `yaml:"categories"`
}

// Secrets are loaded from the environment, never from the config file.
type Secrets struct {
	BotToken   string
	SigningKey []byte
}

// Environment variable names for the two startup secrets.
const (
	EnvBotToken   = "PHOTOKEEP_BOT_TOKEN"
	EnvSigningKey = "PHOTOKEEP_SECRET_KEY"
)

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	ApplyDefaults(&c)
	if err := Validate(&c); err != nil {
		return Config{}, err
	}
	c.DB.Path = strings.TrimSpace(c.DB.Path)
	c.PhotosDir = strings.TrimSpace(c.PhotosDir)
	return c, nil
}

// LoadSecrets reads the bot token and token signing key from the
// environment. A missing value is a fatal startup error for the caller.
func LoadSecrets() (Secrets, error) {
	tok := strings.TrimSpace(os.Getenv(EnvBotToken))
	if tok == "" {
		return Secrets{}, errors.New(EnvBotToken + " is not set")
	}
	key := strings.TrimSpace(os.Getenv(EnvSigningKey))
	if key == "" {
		return Secrets{}, errors.New(EnvSigningKey + " is not set")
	}
	return Secrets{BotToken: tok, SigningKey: []byte(key)}, nil
}

// ApplyDefaults populates zero-values with sane defaults.
func ApplyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Path == "" {
		c.DB.Path = "./data/photokeep.db"
	}
	if c.PhotosDir == "" {
		c.PhotosDir = "./photos"
	}
	if c.Bot.PollTimeoutSec == 0 {
		c.Bot.PollTimeoutSec = 30
	}
	if len(c.Categories) == 0 {
		c.Categories = []string{"fttx", "to"}
	}
}

// Validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func Validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	if c.DB.Path == "" {
		return errors.New("db.path is required")
	}
	if c.PhotosDir == "" {
		return errors.New("photos_dir is required")
	}
	if c.Bot.PollTimeoutSec < 1 || c.Bot.PollTimeoutSec > 300 {
		return errors.New("bot.poll_timeout_sec is invalid")
	}
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return errors.New("categories must not contain empty entries")
		}
	}
	return nil
}
