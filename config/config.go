package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Opinion providers
const (
	OpinionProviderHTTP   = "http"
	OpinionProviderGemini = "gemini"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Intake    IntakeConfig    `yaml:"intake"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Backends  BackendsConfig  `yaml:"backends"`
	Opinion   OpinionConfig   `yaml:"opinion"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ServiceName     string        `yaml:"service_name"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type IntakeConfig struct {
	FieldName         string   `yaml:"field_name"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	AllowedMediaTypes []string `yaml:"allowed_media_types"`
}

type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AssemblerConfig struct {
	PreviewChars int `yaml:"preview_chars"`
	SnippetChars int `yaml:"snippet_chars"`
}

type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type BackendsConfig struct {
	MaxRetries         int            `yaml:"max_retries"`
	InitialBackoff     time.Duration  `yaml:"initial_backoff"`
	ServiceTokenSecret string         `yaml:"service_token_secret"`
	ServiceTokenTTL    time.Duration  `yaml:"service_token_ttl"`
	OCR                EndpointConfig `yaml:"ocr"`
	Search             EndpointConfig `yaml:"search"`
	Prediction         EndpointConfig `yaml:"prediction"`
	Opinion            EndpointConfig `yaml:"opinion"`
}

type OpinionConfig struct {
	Provider     string   `yaml:"provider"` // http, gemini
	GeminiAPIKey string   `yaml:"gemini_api_key"`
	GeminiModel  string   `yaml:"gemini_model"`
	Temperature  *float32 `yaml:"temperature"` // nil means DefaultTemperature
}

// DefaultTemperature is the sampling temperature used when none is configured
const DefaultTemperature float32 = 0.3

// SamplingTemperature returns the configured temperature, which may be an
// explicit zero.
func (o OpinionConfig) SamplingTemperature() float32 {
	if o.Temperature == nil {
		return DefaultTemperature
	}
	return *o.Temperature
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// environment overrides and defaults. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ServiceName == "" {
		c.Server.ServiceName = "legal-judge-orchestrator"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Intake.FieldName == "" {
		c.Intake.FieldName = "file"
	}
	if c.Intake.MaxUploadBytes == 0 {
		c.Intake.MaxUploadBytes = 10 << 20
	}
	if len(c.Intake.AllowedMediaTypes) == 0 {
		c.Intake.AllowedMediaTypes = []string{"application/pdf"}
	}

	if c.Pipeline.RequestTimeout == 0 {
		c.Pipeline.RequestTimeout = 150 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = c.Pipeline.RequestTimeout + 10*time.Second
	}

	if c.Assembler.PreviewChars == 0 {
		c.Assembler.PreviewChars = 500
	}
	if c.Assembler.SnippetChars == 0 {
		c.Assembler.SnippetChars = 200
	}

	if c.Backends.MaxRetries == 0 {
		c.Backends.MaxRetries = 3
	}
	if c.Backends.InitialBackoff == 0 {
		c.Backends.InitialBackoff = time.Second
	}
	if c.Backends.ServiceTokenTTL == 0 {
		c.Backends.ServiceTokenTTL = 30 * time.Minute
	}
	setEndpointDefaults(&c.Backends.OCR, "http://localhost:8000/ocr/pdf", 60*time.Second)
	setEndpointDefaults(&c.Backends.Search, "http://localhost:8003/search", 30*time.Second)
	setEndpointDefaults(&c.Backends.Prediction, "http://localhost:8004/predict/outcome", 30*time.Second)
	setEndpointDefaults(&c.Backends.Opinion, "http://localhost:8005/generate/opinion", 60*time.Second)

	if c.Opinion.Provider == "" {
		c.Opinion.Provider = OpinionProviderHTTP
	}
	if c.Opinion.GeminiModel == "" {
		c.Opinion.GeminiModel = "gemini-1.5-pro"
	}
	if c.Opinion.Temperature == nil {
		t := DefaultTemperature
		c.Opinion.Temperature = &t
	}
}

func setEndpointDefaults(e *EndpointConfig, rawURL string, timeout time.Duration) {
	if e.URL == "" {
		e.URL = rawURL
	}
	if e.Timeout == 0 {
		e.Timeout = timeout
	}
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.Intake.MaxUploadBytes = n
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.Pipeline.RequestTimeout = d
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = c.Server.AllowedOrigins[:0]
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
			}
		}
	}

	overrideString(&c.Log.Level, "LOG_LEVEL")
	overrideString(&c.Log.Format, "LOG_FORMAT")
	overrideString(&c.Backends.OCR.URL, "OCR_SERVICE_URL")
	overrideString(&c.Backends.Search.URL, "SEARCH_SERVICE_URL")
	overrideString(&c.Backends.Prediction.URL, "PREDICTION_SERVICE_URL")
	overrideString(&c.Backends.Opinion.URL, "OPINION_SERVICE_URL")
	overrideString(&c.Backends.ServiceTokenSecret, "JWT_SECRET_KEY")
	overrideString(&c.Opinion.Provider, "OPINION_PROVIDER")
	overrideString(&c.Opinion.GeminiAPIKey, "GEMINI_API_KEY")
	overrideString(&c.Opinion.GeminiModel, "GEMINI_MODEL")
	return nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the loaded configuration for unusable values
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Intake.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("intake.max_upload_bytes must be positive"))
	}
	if c.Pipeline.RequestTimeout < 0 {
		errs = append(errs, errors.New("pipeline.request_timeout must be positive"))
	}
	if c.Assembler.PreviewChars < 0 {
		errs = append(errs, errors.New("assembler.preview_chars must be positive"))
	}
	if c.Backends.MaxRetries < 0 {
		errs = append(errs, errors.New("backends.max_retries must be positive"))
	}

	endpoints := map[string]EndpointConfig{
		"ocr":        c.Backends.OCR,
		"search":     c.Backends.Search,
		"prediction": c.Backends.Prediction,
		"opinion":    c.Backends.Opinion,
	}
	for name, e := range endpoints {
		if e.URL == "" {
			continue
		}
		u, err := url.Parse(e.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("backends.%s.url %q is not an absolute URL", name, e.URL))
		}
		if e.Timeout < 0 {
			errs = append(errs, fmt.Errorf("backends.%s.timeout must be positive", name))
		}
	}

	switch strings.ToLower(c.Opinion.Provider) {
	case "", OpinionProviderHTTP:
	case OpinionProviderGemini:
		if c.Opinion.GeminiAPIKey == "" {
			errs = append(errs, errors.New("opinion.gemini_api_key is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown opinion.provider %q", c.Opinion.Provider))
	}

	return errors.Join(errs...)
}

// MediaTypeAllowed reports whether intake accepts the media type
func (c *IntakeConfig) MediaTypeAllowed(mediaType string) bool {
	for _, allowed := range c.AllowedMediaTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}
