package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration snapshot. It is loaded once at
// startup and never mutated afterwards; components hold it by pointer and
// treat it as read-only.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Recording RecordingConfig `mapstructure:"recording"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	AI        AIConfig        `mapstructure:"ai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Storage   StorageConfig   `mapstructure:"storage"`
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
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
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

// DSN builds the connection string for the configured driver.
// Parameters: none.
// Returns:
//   - string: driver-specific data source name.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// MonitorConfig holds the health evaluation and failover tunables. The schema
// leaves these open; they are explicit configuration rather than constants.
type MonitorConfig struct {
	EvalInterval     time.Duration    `mapstructure:"eval_interval"`
	WindowSize       int              `mapstructure:"window_size"`
	WindowDuration   time.Duration    `mapstructure:"window_duration"`
	StalenessTimeout time.Duration    `mapstructure:"staleness_timeout"`
	Debounce         time.Duration    `mapstructure:"debounce"`
	FailbackMode     string           `mapstructure:"failback_mode"` // auto, manual
	Thresholds       ThresholdsConfig `mapstructure:"thresholds"`
}

type ThresholdsConfig struct {
	PacketLossPercent float64 `mapstructure:"packet_loss_percent"`
	LatencyMs         int     `mapstructure:"latency_ms"`
	BufferHealth      float64 `mapstructure:"buffer_health"`
	ErrorCount        int     `mapstructure:"error_count"`
}

type RecordingConfig struct {
	SegmentSeconds int    `mapstructure:"segment_seconds"`
	Format         string `mapstructure:"format"`
}

type AnalysisConfig struct {
	Workers      int           `mapstructure:"workers"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SummaryType  string        `mapstructure:"summary_type"`
}

type AIConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Dimensions int    `mapstructure:"dimensions"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Load reads configuration from file and environment.
// Parameters:
//   - configPath: explicit config file path; empty uses ./configs/config.yaml.
// Returns:
//   - *Config: immutable configuration snapshot.
//   - error: non-nil if reading or unmarshaling fails.
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

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/gateway.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gateway")
	v.SetDefault("database.name", "gateway_matrix")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("monitor.eval_interval", "5s")
	v.SetDefault("monitor.window_size", 10)
	v.SetDefault("monitor.window_duration", "30s")
	v.SetDefault("monitor.staleness_timeout", "15s")
	v.SetDefault("monitor.debounce", "10s")
	v.SetDefault("monitor.failback_mode", "manual")
	v.SetDefault("monitor.thresholds.packet_loss_percent", 5.0)
	v.SetDefault("monitor.thresholds.latency_ms", 2000)
	v.SetDefault("monitor.thresholds.buffer_health", 0.3)
	v.SetDefault("monitor.thresholds.error_count", 10)

	v.SetDefault("recording.segment_seconds", 60)
	v.SetDefault("recording.format", "mp4")

	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.max_retries", 3)
	v.SetDefault("analysis.backoff_base", "2s")
	v.SetDefault("analysis.job_timeout", "120s")
	v.SetDefault("analysis.poll_interval", "3s")
	v.SetDefault("analysis.summary_type", "brief")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")

	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "transcripts")

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "media")
}

// validate rejects configuration errors before any state machine can see them
func (c *Config) validate() error {
	if c.Monitor.FailbackMode != "auto" && c.Monitor.FailbackMode != "manual" {
		return fmt.Errorf("invalid monitor.failback_mode %q: must be auto or manual", c.Monitor.FailbackMode)
	}
	if c.Monitor.WindowSize <= 0 {
		return fmt.Errorf("monitor.window_size must be positive, got %d", c.Monitor.WindowSize)
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be positive, got %d", c.Analysis.Workers)
	}
	if c.Analysis.MaxRetries < 0 {
		return fmt.Errorf("analysis.max_retries must not be negative, got %d", c.Analysis.MaxRetries)
	}
	if c.Recording.SegmentSeconds <= 0 {
		return fmt.Errorf("recording.segment_seconds must be positive, got %d", c.Recording.SegmentSeconds)
	}
	return nil
}
