package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for ragdesk
type Config struct {
	Backend       BackendConfig       `mapstructure:"backend"`
	UI            UIConfig            `mapstructure:"ui"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Log           LogConfig           `mapstructure:"log"`
	DevServer     DevServerConfig     `mapstructure:"devserver"`
	Export        ExportConfig        `mapstructure:"export"`
}

// BackendConfig holds the address of the RAG backend
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Zero disables the client-side timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// UIConfig holds interactive defaults
type UIConfig struct {
	UseCache  bool    `mapstructure:"use_cache"`
	AlphaStep float64 `mapstructure:"alpha_step"`
}

// NotificationsConfig holds how long each notification kind stays visible
type NotificationsConfig struct {
	ErrorDuration   time.Duration `mapstructure:"error_duration"`
	SuccessDuration time.Duration `mapstructure:"success_duration"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// DevServerConfig holds configuration of the local development backend
type DevServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	DBPath       string   `mapstructure:"db_path"`
	DefaultAlpha float64  `mapstructure:"default_alpha"`
	MinScore     float64  `mapstructure:"min_score"`
	TopK         int      `mapstructure:"top_k"`
	ChunkSize    int      `mapstructure:"chunk_size"`
	ChunkOverlap int      `mapstructure:"chunk_overlap"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ExportConfig holds transcript export defaults
type ExportConfig struct {
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// RAGDESK_BACKEND_BASE_URL -> backend.base_url
	v.SetEnvPrefix("RAGDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", time.Duration(0))

	v.SetDefault("ui.use_cache", true)
	v.SetDefault("ui.alpha_step", 0.1)

	v.SetDefault("notifications.error_duration", 5*time.Second)
	v.SetDefault("notifications.success_duration", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	v.SetDefault("devserver.host", "127.0.0.1")
	v.SetDefault("devserver.port", 8000)
	v.SetDefault("devserver.db_path", "./data/ragdesk-dev.db")
	v.SetDefault("devserver.default_alpha", 0.6)
	v.SetDefault("devserver.min_score", 0.12)
	v.SetDefault("devserver.top_k", 8)
	v.SetDefault("devserver.chunk_size", 800)
	v.SetDefault("devserver.chunk_overlap", 100)
	v.SetDefault("devserver.allow_origins", []string{"http://localhost:3000", "http://localhost:3001"})

	v.SetDefault("export.format", "md")
}

// Validate checks values that cannot be fixed up silently
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("invalid config: backend.base_url is empty")
	}
	if c.DevServer.DefaultAlpha < 0 || c.DevServer.DefaultAlpha > 1 {
		return fmt.Errorf("invalid config: devserver.default_alpha %v outside [0,1]", c.DevServer.DefaultAlpha)
	}
	if c.DevServer.ChunkSize <= 0 || c.DevServer.ChunkOverlap >= c.DevServer.ChunkSize {
		return fmt.Errorf("invalid config: devserver.chunk_overlap must be smaller than chunk_size")
	}
	return nil
}

// Address returns the dev server listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.DevServer.Host, c.DevServer.Port)
}
