package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/artifact-api/internal/classifier"
)

// Config is the complete runtime configuration of the API.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Google     GoogleConfig     `mapstructure:"google"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectRetries  uint64        `mapstructure:"connect_retries"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SecretsConfig enables loading secrets from Google Secret Manager when
// ProjectID is set.
type SecretsConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	JWTSecretName   string `mapstructure:"jwt_secret_name"`
	CredentialsName string `mapstructure:"credentials_name"`
}

type StorageConfig struct {
	Provider      string   `mapstructure:"provider"`
	Bucket        string   `mapstructure:"bucket"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
	S3            S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	APIKey          string `mapstructure:"api_key"`
}

type VisionConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int64  `mapstructure:"max_results"`
}

type ClassifierConfig struct {
	Mode       string            `mapstructure:"mode"`
	Indicators map[string]string `mapstructure:"indicators"`
	AILabels   []string          `mapstructure:"ai_labels"`
	Label      struct {
		CaseSensitive bool `mapstructure:"case_sensitive"`
	} `mapstructure:"label"`
}

// Load reads config.yaml (optional) and ARTIFACT_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/artifact-api/")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ARTIFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional names used by the deployment scripts.
	_ = v.BindEnv("jwt.secret", "ARTIFACT_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("database.dsn", "ARTIFACT_DATABASE_DSN", "DATABASE_DSN")
	_ = v.BindEnv("secrets.project_id", "ARTIFACT_SECRETS_PROJECT_ID", "PROJECT_ID")
	_ = v.BindEnv("google.credentials_file", "ARTIFACT_GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewEmptyViper returns a viper instance populated with defaults only.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_size", 5<<20)

	v.SetDefault("log.level", "info")

	v.SetDefault("database.dsn", "host=postgres user=postgres password=postgres dbname=artifact port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.connect_retries", 12)

	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.ttl", time.Hour)

	v.SetDefault("secrets.project_id", "")
	v.SetDefault("secrets.jwt_secret_name", "jwt-secret")
	v.SetDefault("secrets.credentials_name", "google-credentials-json")

	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("storage.bucket", "artifact-ai-storage")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", true)

	v.SetDefault("google.credentials_file", "")
	v.SetDefault("google.api_key", "")
	v.SetDefault("vision.endpoint", "")
	v.SetDefault("vision.max_results", 20)

	v.SetDefault("classifier.mode", string(classifier.ModeKeyword))
	v.SetDefault("classifier.indicators", defaultIndicators())
	v.SetDefault("classifier.ai_labels", classifier.DefaultAILabels())
	v.SetDefault("classifier.label.case_sensitive", true)
}

func defaultIndicators() map[string]string {
	out := make(map[string]string)
	for indicator, category := range classifier.DefaultVocabulary() {
		if category == classifier.CategoryAI {
			out[indicator] = "ai"
		} else {
			out[indicator] = "human"
		}
	}
	return out
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch classifier.Mode(c.Classifier.Mode) {
	case classifier.ModeKeyword, classifier.ModeLabel:
	default:
		return fmt.Errorf("classifier.mode must be %q or %q, got %q", classifier.ModeKeyword, classifier.ModeLabel, c.Classifier.Mode)
	}
	if _, err := classifier.VocabularyFromMap(c.Classifier.Indicators); err != nil {
		return fmt.Errorf("classifier.indicators: %w", err)
	}
	switch c.Storage.Provider {
	case "gcs", "s3":
	default:
		return fmt.Errorf("storage.provider must be \"gcs\" or \"s3\", got %q", c.Storage.Provider)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive")
	}
	return nil
}

// ClassifierOptions converts the classifier section into constructor options.
func (c *Config) ClassifierOptions() (classifier.Options, error) {
	vocab, err := classifier.VocabularyFromMap(c.Classifier.Indicators)
	if err != nil {
		return classifier.Options{}, err
	}
	return classifier.Options{
		Mode:          classifier.Mode(c.Classifier.Mode),
		Vocabulary:    vocab,
		AILabels:      c.Classifier.AILabels,
		CaseSensitive: c.Classifier.Label.CaseSensitive,
	}, nil
}
