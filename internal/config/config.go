package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Reasoning   ReasoningConfig   `mapstructure:"reasoning"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Translation TranslationConfig `mapstructure:"translation"`
	Cache       CacheConfig       `mapstructure:"cache"`
	QueryGen    QueryGenConfig    `mapstructure:"querygen"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// ReasoningConfig configures the external text-generation service.
// The service exposes a single endpoint accepting {model, prompt, stream}.
type ReasoningConfig struct {
	Endpoint     string            `mapstructure:"endpoint"`
	Model        string            `mapstructure:"model"`
	StageModels  map[string]string `mapstructure:"stage_models"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	TimeoutPerKB time.Duration     `mapstructure:"timeout_per_kb"`
	MaxRetries   int               `mapstructure:"max_retries"`
}

type SourcesConfig struct {
	NetExposure SourceConfig `mapstructure:"netexposure"`
	Social      SourceConfig `mapstructure:"social"`
}

type SourceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIURL            string        `mapstructure:"api_url"`
	APIKey            string        `mapstructure:"api_key"`
	FeedURL           string        `mapstructure:"feed_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

type CorrelationConfig struct {
	SimultaneityWindow time.Duration `mapstructure:"simultaneity_window"`
	EvidenceCap        int           `mapstructure:"evidence_cap"`
	MinCrossSource     int           `mapstructure:"min_cross_source"`
}

type TranslationConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	TargetLanguage   string        `mapstructure:"target_language"`
	BatchSize        int           `mapstructure:"batch_size"`
	TimeoutPerKB     time.Duration `mapstructure:"timeout_per_kb"`
	MinLengthRatio   float64       `mapstructure:"min_length_ratio"`
	MaxLengthRatio   float64       `mapstructure:"max_length_ratio"`
	FallbackEndpoint string        `mapstructure:"fallback_endpoint"`
}

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

type CacheConfig struct {
	Backend        string        `mapstructure:"backend"` // "file" or "redis"
	Dir            string        `mapstructure:"dir"`
	TranslationTTL time.Duration `mapstructure:"translation_ttl"`
	QueryTTL       time.Duration `mapstructure:"query_ttl"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type QueryGenConfig struct {
	MaxSuggestions int  `mapstructure:"max_suggestions"`
	UseReasoning   bool `mapstructure:"use_reasoning"`
}

type PipelineConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	ArtifactDir string        `mapstructure:"artifact_dir"`
	ValidFor    time.Duration `mapstructure:"valid_for"`
	Retention   int           `mapstructure:"retention"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/crosslight")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("CROSSLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("reasoning.endpoint", "CROSSLIGHT_REASONING_ENDPOINT")
	v.BindEnv("reasoning.model", "CROSSLIGHT_REASONING_MODEL")
	v.BindEnv("sources.netexposure.api_key", "CROSSLIGHT_SOURCES_NETEXPOSURE_API_KEY")
	v.BindEnv("sources.social.feed_url", "CROSSLIGHT_SOURCES_SOCIAL_FEED_URL")
	v.BindEnv("cache.backend", "CROSSLIGHT_CACHE_BACKEND")
	v.BindEnv("cache.redis.host", "CROSSLIGHT_CACHE_REDIS_HOST")
	v.BindEnv("cache.redis.password", "CROSSLIGHT_CACHE_REDIS_PASSWORD")
	v.BindEnv("app.environment", "CROSSLIGHT_APP_ENVIRONMENT")

	// A missing config file is fine: defaults plus env cover a fallback-only run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default search paths
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate fails fast only on total configuration absence. Individual missing
// pieces degrade to documented defaults so a run always produces an artifact.
func (c *Config) Validate() error {
	if !c.Sources.NetExposure.Enabled && !c.Sources.Social.Enabled && c.Reasoning.Endpoint == "" {
		return fmt.Errorf("no sources enabled and no reasoning endpoint configured: nothing to run")
	}
	if c.Translation.Enabled && c.Translation.TargetLanguage == "" {
		return fmt.Errorf("translation enabled but no target language configured")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crosslight")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("reasoning.model", "llama3.1")
	v.SetDefault("reasoning.timeout", 60*time.Second)
	v.SetDefault("reasoning.timeout_per_kb", 2*time.Second)
	v.SetDefault("reasoning.max_retries", 3)

	v.SetDefault("sources.netexposure.enabled", false)
	v.SetDefault("sources.netexposure.api_url", "https://api.shodan.io")
	v.SetDefault("sources.netexposure.timeout", 60*time.Second)
	v.SetDefault("sources.netexposure.requests_per_minute", 30)
	v.SetDefault("sources.netexposure.cooldown", 1*time.Second)
	v.SetDefault("sources.social.enabled", false)
	v.SetDefault("sources.social.timeout", 30*time.Second)
	v.SetDefault("sources.social.requests_per_minute", 60)
	v.SetDefault("sources.social.cooldown", 500*time.Millisecond)

	v.SetDefault("correlation.simultaneity_window", 1*time.Hour)
	v.SetDefault("correlation.evidence_cap", 3)
	v.SetDefault("correlation.min_cross_source", 1)

	v.SetDefault("translation.enabled", false)
	v.SetDefault("translation.batch_size", 5)
	v.SetDefault("translation.timeout_per_kb", 20*time.Second)
	v.SetDefault("translation.min_length_ratio", 0.3)
	v.SetDefault("translation.max_length_ratio", 3.0)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.translation_ttl", 7*24*time.Hour)
	v.SetDefault("cache.query_ttl", 24*time.Hour)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.key_prefix", "crosslight:")

	v.SetDefault("querygen.max_suggestions", 5)
	v.SetDefault("querygen.use_reasoning", true)

	v.SetDefault("pipeline.interval", 6*time.Hour)
	v.SetDefault("pipeline.artifact_dir", "./data/artifacts")
	v.SetDefault("pipeline.valid_for", 24*time.Hour)
	v.SetDefault("pipeline.retention", 10)
}
