package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	StorageSQL  = "sql"
	StorageFile = "file"

	BusNone  = ""
	BusRedis = "redis"
)

type Config struct {
	Port        string     `toml:"port"`
	Environment string     `toml:"environment"`
	CORSOrigins []string   `toml:"cors_origins"`
	Storage     Storage    `toml:"storage"`
	Generation  Generation `toml:"generation"`
	Events      Events     `toml:"events"`
}

// Storage selects the persistence backend.
// Tagged union: Type decides which of the other fields are used.
type Storage struct {
	Type    string `toml:"type"`     // "sql" or "file"; empty picks sql when DSN is set
	DSN     string `toml:"dsn"`      // type=sql
	DataDir string `toml:"data_dir"` // type=file
}

type Generation struct {
	Provider  string        `toml:"provider"` // "replicate" or "openrouter"
	BaseURL   string        `toml:"base_url"` // empty uses the provider's public endpoint
	Model     string        `toml:"model"`    // empty uses the provider's default model
	APIToken  string        `toml:"api_token"`
	MaxTokens int           `toml:"max_tokens"`
	Timeout   time.Duration `toml:"timeout"`
}

// Events configures change-event fan-out beyond the local process.
type Events struct {
	Bus            string `toml:"bus"` // "" or "redis"
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RabbitURL      string `toml:"rabbit_url"` // empty disables the rabbit sink
	RabbitExchange string `toml:"rabbit_exchange"`
}

func Default() Config {
	return Config{
		Port:        "8080",
		Environment: "dev",
		CORSOrigins: []string{"http://localhost:5173"},
		Storage: Storage{
			DataDir: "./data",
		},
		Generation: Generation{
			Provider:  "replicate",
			MaxTokens: 4000,
			Timeout:   120 * time.Second,
		},
		Events: Events{
			RedisAddr:      "127.0.0.1:6379",
			RabbitExchange: "ide.events",
		},
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageFile
		if cfg.Storage.DSN != "" {
			cfg.Storage.Type = StorageSQL
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Environment, "ENVIRONMENT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	setString(&c.Storage.DSN, "DB_DSN")
	setString(&c.Storage.Type, "STORAGE_BACKEND")
	setString(&c.Storage.DataDir, "DATA_DIR")

	setString(&c.Generation.Provider, "GENERATION_PROVIDER")
	setString(&c.Generation.BaseURL, "GENERATION_BASE_URL")
	setString(&c.Generation.Model, "GENERATION_MODEL")
	setString(&c.Generation.APIToken, "REPLICATE_API_TOKEN")
	setString(&c.Generation.APIToken, "GENERATION_API_TOKEN")
	if err := setInt(&c.Generation.MaxTokens, "GENERATION_MAX_TOKENS"); err != nil {
		return err
	}
	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GENERATION_TIMEOUT: %w", err)
		}
		c.Generation.Timeout = d
	}

	setString(&c.Events.Bus, "EVENTS_BUS")
	setString(&c.Events.RedisAddr, "REDIS_ADDR")
	setString(&c.Events.RedisPassword, "REDIS_PASSWORD")
	if err := setInt(&c.Events.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	setString(&c.Events.RabbitURL, "RABBIT_URL")
	setString(&c.Events.RabbitExchange, "RABBIT_EXCHANGE")
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c Config) IsDev() bool { return c.Environment == "dev" }

// Validate fails fast on settings the server cannot run without.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.By(isPort)),
	); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	s := c.Storage
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(StorageSQL, StorageFile)),
		validation.Field(&s.DSN, validation.When(s.Type == StorageSQL, validation.Required)),
		validation.Field(&s.DataDir, validation.When(s.Type == StorageFile, validation.Required)),
	); err != nil {
		return fmt.Errorf("config: storage: %w", err)
	}
	g := c.Generation
	if err := validation.ValidateStruct(&g,
		validation.Field(&g.Provider, validation.Required, validation.In("replicate", "openrouter")),
		validation.Field(&g.APIToken, validation.Required.Error("GENERATION_API_TOKEN (or REPLICATE_API_TOKEN) must be set")),
		validation.Field(&g.MaxTokens, validation.Min(1)),
		validation.Field(&g.Timeout, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("config: generation: %w", err)
	}
	e := c.Events
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.Bus, validation.In(BusNone, BusRedis)),
		validation.Field(&e.RedisAddr, validation.When(e.Bus == BusRedis, validation.Required)),
		validation.Field(&e.RabbitExchange, validation.When(e.RabbitURL != "", validation.Required)),
	); err != nil {
		return fmt.Errorf("config: events: %w", err)
	}
	return nil
}

func isPort(v any) error {
	s, _ := v.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return errors.New("must be a TCP port number")
	}
	return nil
}
