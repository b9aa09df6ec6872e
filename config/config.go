package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// Completion providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type CompletionConfig struct {
	Provider          string        `mapstructure:"provider"`
	BaseURL           string        `mapstructure:"baseURL"`
	APIKey            string        `mapstructure:"apiKey"`
	SiteURL           string        `mapstructure:"siteURL"`
	SiteName          string        `mapstructure:"siteName"`
	DefaultModel      string        `mapstructure:"defaultModel"`
	MaxAttempts       int           `mapstructure:"maxAttempts"`
	BaseDelay         time.Duration `mapstructure:"baseDelay"`
	AttemptTimeout    time.Duration `mapstructure:"attemptTimeout"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"apiKey"`
	DefaultModel string `mapstructure:"defaultModel"`
}

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Storage    struct {
		Driver    string        `mapstructure:"driver"`
		ViewTTL   time.Duration `mapstructure:"viewTTL"`
		MemoryTTL time.Duration `mapstructure:"memoryTTL"`
	} `mapstructure:"storage"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Mongo struct {
			URI      string `mapstructure:"uri"`
			Database string `mapstructure:"database"`
		} `mapstructure:"mongo"`
		Redis struct {
			Enabled  bool   `mapstructure:"enabled"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	JWT           JWTConfig `mapstructure:"jwt"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsAddr string `mapstructure:"metricsAddr"`
	} `mapstructure:"observability"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// secrets and a few deployment switches come from the environment
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindings := map[string]string{
		"completion.apiKey":              "OPENROUTER_API_KEY",
		"gemini.apiKey":                  "GEMINI_API_KEY",
		"jwt.secretKey":                  "JWT_SECRET_KEY",
		"repositories.postgres.password": "POSTGRES_PASSWORD",
		"repositories.redis.password":    "REDIS_PASSWORD",
		"repositories.mongo.uri":         "MONGO_URI",
		"storage.driver":                 "STORAGE_DRIVER",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Completion.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("unknown completion provider %q", c.Completion.Provider)
	}
	if c.Completion.MaxAttempts < 1 {
		return fmt.Errorf("completion.maxAttempts must be at least 1")
	}
	return nil
}
