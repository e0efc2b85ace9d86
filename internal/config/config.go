package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken       string        `envconfig:"BOT_TOKEN" required:"true"`
	DBPath         string        `envconfig:"DB_PATH" default:"./data/reports.db"`
	DefaultTZ      string        `envconfig:"DEFAULT_TZ" default:"UTC+04:00"`
	AccountsFile   string        `envconfig:"ACCOUNTS_FILE" default:"./accounts.yaml"`
	TickInterval   time.Duration `envconfig:"TICK_INTERVAL" default:"1m"`
	ReportCooldown time.Duration `envconfig:"REPORT_COOLDOWN" default:"23h"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads an optional .env file and then environment variables into Config.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	var cfg Config
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}
	if c.ReportCooldown < 0 {
		return errors.New("REPORT_COOLDOWN must not be negative")
	}
	if _, err := domain.ParseZone(c.DefaultTZ); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	return nil
}

// DefaultZone is the fallback zone for accounts with a missing or bad zone.
func (c Config) DefaultZone() domain.Zone {
	z, err := domain.ParseZone(c.DefaultTZ)
	if err != nil {
		return domain.DefaultZone
	}
	return z
}
