package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains client configuration parameters.
type Config struct {
	LogLevel     int          `env:"LOG_LEVEL" envDefault:"0"`
	DataDir      string       `env:"DATA_DIR"`
	API          API          `envPrefix:"API_"`
	Google       Google       `envPrefix:"GOOGLE_"`
	Password     Password     `envPrefix:"PASSWORD_"`
	Verification Verification `envPrefix:"VERIFICATION_"`
	Storage      Storage      `envPrefix:"MINIO_"`
}

// API contains parameters of the ProvaLab REST API.
type API struct {
	URL             string        `env:"URL,required,notEmpty"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"20s"`
	ExtendedTimeout time.Duration `env:"EXTENDED_TIMEOUT" envDefault:"120s"`
}

// Google contains identity provider parameters. An empty client ID disables
// Google login.
type Google struct {
	ClientID       string        `env:"CLIENT_ID"`
	ClientSecret   string        `env:"CLIENT_SECRET"`
	RedirectPort   int           `env:"REDIRECT_PORT" envDefault:"8085"`
	ConsentTimeout time.Duration `env:"CONSENT_TIMEOUT" envDefault:"180s"`
}

// Enabled reports whether Google login can be offered.
func (g Google) Enabled() bool {
	return g.ClientID != ""
}

// Password contains client-side password policy.
type Password struct {
	MinLength int `env:"MIN_LENGTH" envDefault:"6"`
}

// Verification mirrors the server resend limits for display.
type Verification struct {
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
	MaxResends     int           `env:"MAX_RESENDS" envDefault:"5"`
	BlockDuration  time.Duration `env:"BLOCK_DURATION" envDefault:"1h"`
}

// Storage contains object storage parameters for avatar uploads.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"provalab-avatars"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	PublicURL string `env:"PUBLIC_URL"`
}

// Enabled reports whether avatar uploads are configured.
func (s Storage) Enabled() bool {
	return s.Endpoint != ""
}

// NewConfig loads configuration from an optional .env file and environment
// variables. Variables already set in the environment win over the file.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.DataDir = filepath.Join(base, "provalab")
	}

	return &cfg, nil
}

// StatePath is the bbolt file holding the session token and limiter state.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.db")
}
