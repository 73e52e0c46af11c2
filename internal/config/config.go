package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Search    SearchConfig    `mapstructure:"search"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
	}
	return c.Path
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai-compatible
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// Validate checks that the embedding configuration has all required fields.
func (c *EmbeddingConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("embedding: base_url is required")
	}
	return nil
}

type IndexConfig struct {
	CachePath        string `mapstructure:"cache_path"`         // snapshot cache file; empty disables caching
	MinSummaryRunes  int    `mapstructure:"min_summary_runes"`  // records with shorter summaries are skipped
	PreloadOnStartup bool   `mapstructure:"preload_on_startup"` // build the index in the background at boot
	EmbedBatchSize   int    `mapstructure:"embed_batch_size"`
}

type SearchConfig struct {
	DefaultTopK      int     `mapstructure:"default_top_k"`
	MaxTopK          int     `mapstructure:"max_top_k"`
	FilterOversample int     `mapstructure:"filter_oversample"` // candidate multiplier when filters are active
	ScoreThreshold   float32 `mapstructure:"score_threshold"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/movies.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("embedding.provider", "openai-compatible")
	v.SetDefault("embedding.model", "bge-large-zh-v1.5")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("index.cache_path", "./data/index.gob")
	v.SetDefault("index.min_summary_runes", 5)
	v.SetDefault("index.preload_on_startup", true)
	v.SetDefault("index.embed_batch_size", 32)
	v.SetDefault("search.default_top_k", 5)
	v.SetDefault("search.max_top_k", 100)
	v.SetDefault("search.filter_oversample", 4)
	v.SetDefault("search.score_threshold", 0.0)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("embedding.model", "EMBEDDING_MODEL")
	v.BindEnv("search.score_threshold", "SEARCH_SCORE_THRESHOLD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
