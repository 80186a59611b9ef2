package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Pages    PagesConfig    `yaml:"pages"`
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// PagesConfig holds page rendering and enhancement configuration.
type PagesConfig struct {
	Renderer    string `yaml:"renderer"`     // pdftoppm | fitz
	PopplerPath string `yaml:"poppler_path"` // directory holding pdftoppm; empty uses PATH
	DPI         int    `yaml:"dpi"`
	MaxPages    int    `yaml:"max_pages"`
	TempDir     string `yaml:"temp_dir"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // gemini | openai | anthropic
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	ProjectID       string        `yaml:"project_id"`
	Region          string        `yaml:"region"`
	CredentialsFile string        `yaml:"credentials_file"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	PageTimeout     time.Duration `yaml:"page_timeout"`
	PageWorkers     int           `yaml:"page_workers"`
}

// CacheConfig configures the optional language annotation cache.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// QueueConfig configures the in-memory batch queue.
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		Pages: PagesConfig{
			Renderer: "pdftoppm",
			DPI:      300,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Region:      "us-central1",
			MaxTokens:   4096,
			Timeout:     90 * time.Second,
			PageWorkers: 1,
		},
		Cache: CacheConfig{Prefix: "docextract:", TTL: 24 * time.Hour},
		Queue: QueueConfig{Workers: 4, Size: 256, ProcessTimeout: 10 * time.Minute},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig builds the configuration once at startup.
// Precedence: defaults < YAML file (CONFIG_FILE) < environment (.env included).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, NewAppError(CodeConfig, "read "+path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Pages.Renderer = getEnv("PDF_RENDERER", c.Pages.Renderer)
	c.Pages.PopplerPath = getEnv("POPPLER_PATH", c.Pages.PopplerPath)
	c.Pages.DPI = getEnvAsInt("PDF_DPI", c.Pages.DPI)
	c.Pages.MaxPages = getEnvAsInt("PDF_MAX_PAGES", c.Pages.MaxPages)
	c.Pages.TempDir = getEnv("PAGES_TEMP_DIR", c.Pages.TempDir)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", c.LLM.ProjectID)
	c.LLM.Region = getEnv("VERTEX_AI_REGION", c.LLM.Region)
	c.LLM.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.LLM.CredentialsFile)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.PageTimeout = getEnvAsDuration("LLM_PAGE_TIMEOUT", c.LLM.PageTimeout)
	c.LLM.PageWorkers = getEnvAsInt("LLM_PAGE_WORKERS", c.LLM.PageWorkers)

	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.Prefix = getEnv("CACHE_PREFIX", c.Cache.Prefix)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)

	c.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.ProcessTimeout = getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", c.Queue.ProcessTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every binary depends on. The in-memory
// store (inmem) does not need a DSN.
func (c *Config) Validate(inmem bool) error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if !inmem && c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Pages.Renderer {
	case "pdftoppm", "fitz":
	default:
		return NewAppError(CodeConfig, "PDF_RENDERER must be pdftoppm or fitz", ErrInvalidInput)
	}
	if c.Pages.DPI <= 0 {
		return NewAppError(CodeConfig, "PDF_DPI must be positive", ErrInvalidInput)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		if c.LLM.ProjectID == "" {
			return NewAppError(CodeConfig, "GOOGLE_CLOUD_PROJECT is required for the gemini provider", ErrInvalidInput)
		}
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return NewAppError(CodeConfig, "LLM_API_KEY is required for the "+c.LLM.Provider+" provider", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "LLM_PROVIDER must be gemini, openai or anthropic", ErrInvalidInput)
	}
	if c.LLM.PageWorkers < 1 {
		return NewAppError(CodeConfig, "LLM_PAGE_WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
