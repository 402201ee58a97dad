package bot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the [bot] section of the shared config file.
type Config struct {
	Bot struct {
		Token    string  `toml:"token"`
		AdminIDs []int64 `toml:"admin_ids"`
	} `toml:"bot"`
}

func ReadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load config: %v", err)
	}

	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is not configured, set [bot] token or TELEGRAM_TOKEN")
	}

	return &cfg, nil
}
