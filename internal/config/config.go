package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port" env:"PORT"`
		ReadTimeout     time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes" env:"SERVER_MAX_UPLOAD_BYTES"`
		CORSOrigins     []string      `yaml:"corsOrigins" env:"CORS_ORIGINS" envSeparator:","`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"` // json | console
	} `yaml:"log"`

	// Storage.Driver picks the profile/history backend: memory | badger | mysql | postgres
	Storage struct {
		Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
		// SeedSubjects get an empty profile at startup (accounts are managed elsewhere)
		SeedSubjects []string `yaml:"seedSubjects" env:"STORAGE_SEED_SUBJECTS" envSeparator:","`
		Migrate      bool     `yaml:"migrate" env:"STORAGE_MIGRATE"`
	} `yaml:"storage"`

	Database struct {
		Host     string `yaml:"host" env:"DB_HOST"`
		Port     int    `yaml:"port" env:"DB_PORT"`
		User     string `yaml:"user" env:"DB_USER"`
		Password string `yaml:"password" env:"DB_PASSWORD"`
		Name     string `yaml:"name" env:"DB_NAME"`
		SSLMode  string `yaml:"sslMode" env:"DB_SSLMODE"`
	} `yaml:"database"`

	Badger struct {
		Path string `yaml:"path" env:"BADGER_PATH"`
	} `yaml:"badger"`

	Minio struct {
		Enabled    bool   `yaml:"enabled" env:"MINIO_ENABLED"`
		Endpoint   string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey  string `yaml:"accessKey" env:"MINIO_ACCESS_KEY"`
		SecretKey  string `yaml:"secretKey" env:"MINIO_SECRET_KEY"`
		BucketName string `yaml:"bucketName" env:"MINIO_BUCKET"`
		Region     string `yaml:"region" env:"MINIO_REGION"`
		UseSSL     bool   `yaml:"useSSL" env:"MINIO_USE_SSL"`
		PublicURL  string `yaml:"publicURL" env:"MINIO_PUBLIC_URL"`
	} `yaml:"minio"`

	Model struct {
		// ImageBackend: linear | tfserving | openai
		ImageBackend string `yaml:"imageBackend" env:"MODEL_IMAGE_BACKEND"`
		ImagePath    string `yaml:"imagePath" env:"MODEL_IMAGE_PATH"`
		InputSize    int    `yaml:"inputSize" env:"MODEL_INPUT_SIZE"`

		VectorizerPath string `yaml:"vectorizerPath" env:"MODEL_VECTORIZER_PATH"`
		ClassifierPath string `yaml:"classifierPath" env:"MODEL_CLASSIFIER_PATH"`
		BinarizerPath  string `yaml:"binarizerPath" env:"MODEL_BINARIZER_PATH"`

		TFServing struct {
			URL     string        `yaml:"url" env:"TFSERVING_URL"`
			Model   string        `yaml:"model" env:"TFSERVING_MODEL"`
			Timeout time.Duration `yaml:"timeout" env:"TFSERVING_TIMEOUT"`
		} `yaml:"tfserving"`

		OpenAI struct {
			APIKey string `yaml:"apiKey" env:"OPENAI_API_KEY"`
			Model  string `yaml:"model" env:"OPENAI_MODEL"`
		} `yaml:"openai"`

		Preload bool `yaml:"preload" env:"MODEL_PRELOAD"`
	} `yaml:"model"`

	Inference struct {
		Workers int `yaml:"workers" env:"INFERENCE_WORKERS"`
		Queue   int `yaml:"queue" env:"INFERENCE_QUEUE"`
	} `yaml:"inference"`

	RateLimit struct {
		Enabled  bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
		Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS"`
		Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	} `yaml:"rateLimit"`

	Routine struct {
		// RulesPath overrides the embedded rule table
		RulesPath string `yaml:"rulesPath" env:"ROUTINE_RULES_PATH"`
	} `yaml:"routine"`
}

// Default returns the configuration used when a key is absent everywhere.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Server.MaxUploadBytes = 10 << 20
	c.Server.CORSOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Storage.Driver = "memory"
	c.Database.Port = 3306
	c.Database.SSLMode = "disable"
	c.Badger.Path = "./data/badger"
	c.Minio.BucketName = "skiniq"
	c.Model.ImageBackend = "linear"
	c.Model.ImagePath = "models/skin_type_linear.json"
	c.Model.InputSize = 150
	c.Model.VectorizerPath = "models/tfidf_vectorizer.json"
	c.Model.ClassifierPath = "models/mlp_classifier.json"
	c.Model.BinarizerPath = "models/label_binarizer.json"
	c.Model.TFServing.Model = "skin_type"
	c.Model.TFServing.Timeout = 10 * time.Second
	c.Model.OpenAI.Model = "gpt-4o-mini"
	c.Inference.Workers = 4
	c.Inference.Queue = 64
	c.RateLimit.Requests = 60
	c.RateLimit.Window = time.Minute
	return &c
}

// Load baca file config.yaml (optional), lalu .env dan environment variables
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "badger", "mysql", "postgres":
	default:
		return fmt.Errorf("storage.driver %q: want memory, badger, mysql or postgres", c.Storage.Driver)
	}
	switch c.Model.ImageBackend {
	case "linear", "tfserving", "openai":
	default:
		return fmt.Errorf("model.imageBackend %q: want linear, tfserving or openai", c.Model.ImageBackend)
	}
	if c.Model.ImageBackend == "tfserving" && c.Model.TFServing.URL == "" {
		return errors.New("model.tfserving.url required for tfserving backend")
	}
	if c.Model.ImageBackend == "openai" && c.Model.OpenAI.APIKey == "" {
		return errors.New("model.openai.apiKey required for openai backend")
	}
	if c.Inference.Workers <= 0 {
		return errors.New("inference.workers must be positive")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&clientFoundRows=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
