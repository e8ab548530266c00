package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // seconds
}

type DbConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"sslmode"`
}

type SandboxConfig struct {
	Provider       string            `mapstructure:"provider"` // "docker" or "local"
	WorkDir        string            `mapstructure:"workdir"`
	MemoryLimitKb  int               `mapstructure:"memory_limit_kb"`
	CommandTimeout time.Duration     `mapstructure:"command_timeout"`
	PidsLimit      int64             `mapstructure:"pids_limit"`
	MaxOutputBytes int               `mapstructure:"max_output_bytes"`
	Images         map[string]string `mapstructure:"images"` // language -> image override
}

type WorkersConfig struct {
	Count         int `mapstructure:"count"`
	QueueCapacity int `mapstructure:"queue_capacity"`
}

type RateLimitConfig struct {
	GlobalRPS     float64 `mapstructure:"global_rps"`
	PerIPRPS      float64 `mapstructure:"per_ip_rps"`
	PerIPBurst    int     `mapstructure:"per_ip_burst"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Db        DbConfig        `mapstructure:"db"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.idle_timeout", 60)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.sqlite_path", filepath.Join(os.Getenv("HOME"), ".gradebox", "gradebox.db"))
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "gradebox")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("sandbox.provider", "docker")
	v.SetDefault("sandbox.workdir", "/home/sandbox")
	v.SetDefault("sandbox.memory_limit_kb", 256*1024)
	v.SetDefault("sandbox.command_timeout", "5s")
	v.SetDefault("sandbox.pids_limit", 64)
	v.SetDefault("sandbox.max_output_bytes", 1<<20)

	v.SetDefault("workers.count", 5)
	v.SetDefault("workers.queue_capacity", 100)

	v.SetDefault("rate_limit.global_rps", 100)
	v.SetDefault("rate_limit.per_ip_rps", 10)
	v.SetDefault("rate_limit.per_ip_burst", 20)
	v.SetDefault("rate_limit.max_concurrent", 50)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads gradebox.yaml from the working directory or $HOME/.gradebox
// and applies GRADEBOX_* environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("gradebox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.gradebox")
	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("gradebox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Db.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown db.driver %q", c.Db.Driver)
	}
	switch c.Sandbox.Provider {
	case "docker", "local":
	default:
		return fmt.Errorf("config: unknown sandbox.provider %q", c.Sandbox.Provider)
	}
	if !strings.HasPrefix(c.Sandbox.WorkDir, "/") {
		return fmt.Errorf("config: sandbox.workdir must be absolute, got %q", c.Sandbox.WorkDir)
	}
	if c.Sandbox.CommandTimeout <= 0 {
		return fmt.Errorf("config: sandbox.command_timeout must be positive")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("config: workers.count must be positive")
	}
	return nil
}
