package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr          string
	DBURL               string
	AdminEmail          string
	MessageHistoryLimit int
}

// LoadFromEnv reads configuration from the environment, honoring a local
// .env file when present.
func LoadFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:          ":8080",
		DBURL:               os.Getenv("PARLEY_DB_URL"),
		AdminEmail:          os.Getenv("PARLEY_ADMIN_EMAIL"),
		MessageHistoryLimit: 500,
	}

	if v := os.Getenv("PARLEY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PARLEY_HISTORY_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return Config{}, errors.New("history limit must be a positive integer")
		}
		cfg.MessageHistoryLimit = limit
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if c.DBURL == "" {
		return errors.New("db url is required")
	}
	if c.MessageHistoryLimit <= 0 {
		return errors.New("history limit must be positive")
	}
	return nil
}
