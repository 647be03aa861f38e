package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"midjourney_bot/entities"
)

const (
	DefaultBridgeHost   = "http://localhost:8080"
	DefaultPollInterval = 1 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultDBPath       = "midjourney_bot.sqlite"
)

type Config struct {
	Preferences entities.Preferences `yaml:"preferences"`
	Bridge      BridgeConfig         `yaml:"bridge"`
	Database    DatabaseConfig       `yaml:"database"`
	Discord     DiscordConfig        `yaml:"discord"`
	Log         LogConfig            `yaml:"log"`
}

type BridgeConfig struct {
	Host         string        `yaml:"host"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DiscordConfig is only needed by the bot front end.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	GuildID  string `yaml:"guild_id"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Host:         DefaultBridgeHost,
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultHTTPTimeout,
		},
		Database: DatabaseConfig{
			Path: DefaultDBPath,
		},
	}
}

// Load reads .env from the working directory if present, then the optional
// YAML file at path, then applies environment overrides. Preferences are
// not validated here.
func Load(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(err, "failed to load .env")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Preferences = cfg.Preferences.Trimmed()

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Preferences.SessionToken, "MJ_SESSION_TOKEN")
	setString(&cfg.Preferences.ServerID, "MJ_SERVER_ID")
	setString(&cfg.Preferences.ChannelID, "MJ_CHANNEL_ID")
	setString(&cfg.Bridge.Host, "MJ_BRIDGE_HOST")
	setString(&cfg.Database.Path, "MJ_DB_PATH")
	setString(&cfg.Discord.BotToken, "DISCORD_BOT_TOKEN")
	setString(&cfg.Discord.GuildID, "DISCORD_GUILD_ID")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")

	if err := setDuration(&cfg.Bridge.PollInterval, "MJ_POLL_INTERVAL"); err != nil {
		return err
	}

	if err := setDuration(&cfg.Bridge.Timeout, "MJ_HTTP_TIMEOUT"); err != nil {
		return err
	}

	if raw, ok := os.LookupEnv("LOG_DEVELOPMENT"); ok && raw != "" {
		development, err := strconv.ParseBool(raw)
		if err != nil {
			return goerr.Wrap(err, "invalid LOG_DEVELOPMENT", goerr.V("value", raw))
		}

		cfg.Log.Development = development
	}

	return nil
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, key string) error {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("key", key), goerr.V("value", raw))
	}

	*dst = d

	return nil
}
