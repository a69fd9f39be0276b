package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | memory
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		BaseURL string `yaml:"baseURL"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`

	Vertex struct {
		ProjectID       string `yaml:"projectID"`
		Location        string `yaml:"location"`
		CredentialsFile string `yaml:"credentialsFile"`
	} `yaml:"vertex"`

	Remote struct {
		Token string        `yaml:"token"`
		HTTP  HTTPClientCfg `yaml:"http"`
	} `yaml:"remote"`

	Pipeline struct {
		RegistryPath   string        `yaml:"registryPath"`
		TaxonomyPath   string        `yaml:"taxonomyPath"`
		RulesPath      string        `yaml:"rulesPath"`
		DefaultTimeout time.Duration `yaml:"defaultTimeout"`
		GlobalTimeout  time.Duration `yaml:"globalTimeout"`
		MaxParallel    int           `yaml:"maxParallel"`
		Watch          bool          `yaml:"watch"`
		ReloadDebounce time.Duration `yaml:"reloadDebounce"`
	} `yaml:"pipeline"`

	Delivery struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
		HTTP    HTTPClientCfg `yaml:"http"`
	} `yaml:"delivery"`

	Auth struct {
		// APIKeys maps tenant id to its key; empty disables auth.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Enabled bool    `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// HTTPClientCfg mirrors httpclient.Config so the config package stays free of infra imports.
type HTTPClientCfg struct {
	Timeout          time.Duration `yaml:"timeout"`
	RetryCount       int           `yaml:"retryCount"`
	RetryWaitTime    time.Duration `yaml:"retryWaitTime"`
	RetryMaxWaitTime time.Duration `yaml:"retryMaxWaitTime"`
	Debug            bool          `yaml:"debug"`
}

// Load baca file config.yaml, lalu override secret dari env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and env overrides, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// sync analyze waits for the whole pipeline
		c.Server.WriteTimeout = 150 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Pipeline.RegistryPath == "" {
		c.Pipeline.RegistryPath = "configs/analyzers.yaml"
	}
	if c.Pipeline.RulesPath == "" {
		c.Pipeline.RulesPath = "configs/conflict_rules.yaml"
	}
	if c.Pipeline.DefaultTimeout == 0 {
		c.Pipeline.DefaultTimeout = 30 * time.Second
	}
	if c.Pipeline.GlobalTimeout == 0 {
		c.Pipeline.GlobalTimeout = 120 * time.Second
	}
	if c.Pipeline.ReloadDebounce == 0 {
		c.Pipeline.ReloadDebounce = 250 * time.Millisecond
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = 30 * time.Second
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&c.Database.Password, "DB_PASSWORD")
	override(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	override(&c.Delivery.Token, "DELIVERY_TOKEN")
	override(&c.Vertex.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q not supported (mysql, postgres, memory)", c.Database.Driver))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	if c.Pipeline.DefaultTimeout <= 0 || c.Pipeline.GlobalTimeout <= 0 {
		errs = append(errs, errors.New("pipeline timeouts must be positive"))
	}
	if c.Pipeline.MaxParallel < 0 {
		errs = append(errs, errors.New("pipeline.maxParallel must not be negative"))
	}
	if c.Delivery.URL != "" {
		if u, err := url.Parse(c.Delivery.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("delivery.url %q is not an http(s) URL", c.Delivery.URL))
		}
	}
	// analyzer calls are never retried inside a run
	if c.Remote.HTTP.RetryCount != 0 {
		errs = append(errs, fmt.Errorf("remote.http.retryCount must be 0, got %d", c.Remote.HTTP.RetryCount))
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		errs = append(errs, errors.New("rateLimit.rps must be positive"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
