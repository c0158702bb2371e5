// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Models, Training, Transformer,
// Scraper, S3, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Models      ModelsConfig      `yaml:"models"`
	Training    TrainingConfig    `yaml:"training"`
	Transformer TransformerConfig `yaml:"transformer"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	S3          S3Config          `yaml:"s3"`
	CORS        CORSConfig        `yaml:"cors"`
	RateLimit   RateLimitConfig   `yaml:"rateLimit"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PredictionEvents string `yaml:"predictionEvents"`
	ArticleIngest    string `yaml:"articleIngest"`
	ArticleScored    string `yaml:"articleScored"`
	// DeadLetter receives messages whose handler kept failing.
	DeadLetter string `yaml:"deadLetter"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// ModelsConfig tells the serving path where the trained artifacts live and
// which model ids to load at startup.
type ModelsConfig struct {
	ArtifactDir string   `yaml:"artifactDir"`
	Enabled     []string `yaml:"enabled"`
	TiePolicy   string   `yaml:"tiePolicy"`
	Strict      bool     `yaml:"strict"`
}

// TrainingConfig makes every source of randomness and every split parameter
// of the training pipeline explicit.
type TrainingConfig struct {
	Seed           int64   `yaml:"seed"`
	TestRatio      float64 `yaml:"testRatio"`
	MaxTerms       int     `yaml:"maxTerms"`
	Balance        bool    `yaml:"balance"`
	SMOTENeighbors int     `yaml:"smoteNeighbors"`
	SampleFraction float64 `yaml:"sampleFraction"`

	Logistic LogisticConfig `yaml:"logistic"`
	Forest   ForestConfig   `yaml:"forest"`
	Boosting BoostingConfig `yaml:"boosting"`
	XGBoost  XGBoostConfig  `yaml:"xgboost"`
}

// LogisticConfig holds logistic_regression hyperparameters.
type LogisticConfig struct {
	MaxIter      int     `yaml:"maxIter"`
	LearningRate float64 `yaml:"learningRate"`
	L2           float64 `yaml:"l2"`
	Tolerance    float64 `yaml:"tolerance"`
}

// ForestConfig holds randomforest hyperparameters.
type ForestConfig struct {
	Trees          int `yaml:"trees"`
	MaxDepth       int `yaml:"maxDepth"`
	MinSamplesLeaf int `yaml:"minSamplesLeaf"`
}

// BoostingConfig holds gradient_boosting hyperparameters.
type BoostingConfig struct {
	Stages       int     `yaml:"stages"`
	LearningRate float64 `yaml:"learningRate"`
	MaxDepth     int     `yaml:"maxDepth"`
	Subsample    float64 `yaml:"subsample"`
}

// XGBoostConfig holds xgboost hyperparameters.
type XGBoostConfig struct {
	Rounds          int     `yaml:"rounds"`
	LearningRate    float64 `yaml:"learningRate"`
	MaxDepth        int     `yaml:"maxDepth"`
	Lambda          float64 `yaml:"lambda"`
	Gamma           float64 `yaml:"gamma"`
	MinChildWeight  float64 `yaml:"minChildWeight"`
	ColsampleByTree float64 `yaml:"colsampleByTree"`
}

// TransformerConfig points the text-native model at its inference server.
type TransformerConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	ModelName     string        `yaml:"modelName"`
	PositiveLabel string        `yaml:"positiveLabel"`
	MaxTokens     int           `yaml:"maxTokens"`
	Timeout       time.Duration `yaml:"timeout"`
	APIKey        string        `yaml:"apiKey"`
}

// ScraperConfig controls live-article fetching for URL scoring.
type ScraperConfig struct {
	UserAgent      string        `yaml:"userAgent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
	MinTextLength  int           `yaml:"minTextLength"`
	RequestsPerSec float64       `yaml:"requestsPerSec"`
	Workers        int           `yaml:"workers"`
	// AllowPrivateAddresses lets the scraper connect to loopback, private
	// and link-local addresses. Off outside local testing.
	AllowPrivateAddresses bool `yaml:"allowPrivateAddresses"`
}

// S3Config controls the optional artifact mirror.
type S3Config struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// CORSConfig controls Cross-Origin Resource Sharing for browser dashboards.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// RateLimitConfig bounds prediction requests per client address.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging of the prediction path.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make training irreproducible or
// serving ambiguous.
func (c *Config) Validate() error {
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.testRatio must be in (0,1), got %v", c.Training.TestRatio)
	}
	if c.Training.MaxTerms <= 0 {
		return fmt.Errorf("training.maxTerms must be positive, got %d", c.Training.MaxTerms)
	}
	if c.Training.SampleFraction < 0 || c.Training.SampleFraction > 1 {
		return fmt.Errorf("training.sampleFraction must be in [0,1], got %v", c.Training.SampleFraction)
	}
	switch c.Models.TiePolicy {
	case "real", "fake":
	default:
		return fmt.Errorf("models.tiePolicy must be \"real\" or \"fake\", got %q", c.Models.TiePolicy)
	}
	if c.Transformer.MaxTokens <= 0 {
		return fmt.Errorf("transformer.maxTokens must be positive, got %d", c.Transformer.MaxTokens)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  20 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fakenews",
			User:            "fakenews",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fakenews-scorer",
			Topics: KafkaTopics{
				PredictionEvents: "prediction-events",
				ArticleIngest:    "article-ingest",
				ArticleScored:    "article-scored",
				DeadLetter:       "article-dead-letter",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Models: ModelsConfig{
			ArtifactDir: "model",
			Enabled:     []string{"randomforest", "xgboost", "gradient_boosting", "logistic_regression", "bert"},
			TiePolicy:   "real",
		},
		Training: TrainingConfig{
			Seed:           42,
			TestRatio:      0.2,
			MaxTerms:       10000,
			Balance:        true,
			SMOTENeighbors: 5,
			Logistic: LogisticConfig{
				MaxIter:      1000,
				LearningRate: 0.5,
				L2:           1e-4,
				Tolerance:    1e-6,
			},
			Forest: ForestConfig{
				Trees:          100,
				MaxDepth:       32,
				MinSamplesLeaf: 1,
			},
			Boosting: BoostingConfig{
				Stages:       100,
				LearningRate: 0.1,
				MaxDepth:     3,
				Subsample:    1.0,
			},
			XGBoost: XGBoostConfig{
				Rounds:          100,
				LearningRate:    0.3,
				MaxDepth:        6,
				Lambda:          1.0,
				Gamma:           0,
				MinChildWeight:  1.0,
				ColsampleByTree: 1.0,
			},
		},
		Transformer: TransformerConfig{
			Endpoint:      "http://localhost:8501",
			ModelName:     "bert-base-uncased",
			PositiveLabel: "LABEL_1",
			MaxTokens:     512,
			Timeout:       15 * time.Second,
		},
		Scraper: ScraperConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			Timeout:        20 * time.Second,
			MaxBodyBytes:   5 * 1024 * 1024,
			MinTextLength:  100,
			RequestsPerSec: 1,
			Workers:        4,
		},
		S3: S3Config{
			Prefix: "models/",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Limit:  120,
			Window: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FN_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("FN_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FN_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FN_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FN_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FN_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FN_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("FN_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("FN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FN_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("FN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FN_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FN_MODELS_ARTIFACT_DIR"); v != "" {
		cfg.Models.ArtifactDir = v
	}
	if v := os.Getenv("FN_MODELS_ENABLED"); v != "" {
		cfg.Models.Enabled = strings.Split(v, ",")
	}
	if v := os.Getenv("FN_MODELS_TIE_POLICY"); v != "" {
		cfg.Models.TiePolicy = strings.ToLower(v)
	}
	if v := os.Getenv("FN_TRAINING_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Training.Seed = seed
		}
	}
	if v := os.Getenv("FN_TRAINING_TEST_RATIO"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Training.TestRatio = ratio
		}
	}
	if v := os.Getenv("FN_TRAINING_BALANCE"); v != "" {
		cfg.Training.Balance = parseBool(v, cfg.Training.Balance)
	}
	if v := os.Getenv("FN_SCRAPER_ALLOW_PRIVATE_ADDRESSES"); v != "" {
		cfg.Scraper.AllowPrivateAddresses = parseBool(v, cfg.Scraper.AllowPrivateAddresses)
	}
	if v := os.Getenv("FN_TRANSFORMER_ENDPOINT"); v != "" {
		cfg.Transformer.Endpoint = v
	}
	if v := os.Getenv("FN_TRANSFORMER_API_KEY"); v != "" {
		cfg.Transformer.APIKey = v
	}
	if v := os.Getenv("FN_S3_ENABLED"); v != "" {
		cfg.S3.Enabled = parseBool(v, cfg.S3.Enabled)
	}
	if v := os.Getenv("FN_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("FN_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("FN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FN_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
