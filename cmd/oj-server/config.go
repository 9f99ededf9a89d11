package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nanoj/internal/common/cache"
	"nanoj/internal/common/db"
	"nanoj/internal/common/storage"
	"nanoj/internal/judge/sandbox/docker"
	"nanoj/internal/judge/service"
	"nanoj/internal/judge/spj"
	"nanoj/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultDataDir       = "data"
	defaultCheckerBucket = "checkers"
	defaultSessionTTL    = 24 * time.Hour
	defaultAdminUsername = "admin"
	defaultJudgeWorkers  = 4
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DataConfig holds file store settings.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig holds session and bootstrap admin settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret"`
	JWTIssuer     string        `yaml:"jwtIssuer"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	AdminUsername string        `yaml:"adminUsername"`
	AdminPassword string        `yaml:"adminPassword"`
}

// StorageConfig selects the checker blob backend. MinIO is used when an
// endpoint is configured; local disk otherwise.
type StorageConfig struct {
	Bucket   string              `yaml:"bucket"`
	LocalDir string              `yaml:"localDir"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
}

// JudgeConfig holds worker pool settings.
type JudgeConfig struct {
	Workers          int  `yaml:"workers"`
	RequireContainer bool `yaml:"requireContainer"`
}

// AppConfig holds oj-server config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Data     DataConfig        `yaml:"data"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Database db.MySQLConfig    `yaml:"database"`
	Storage  StorageConfig     `yaml:"storage"`
	Auth     AuthConfig        `yaml:"auth"`
	Judge    JudgeConfig       `yaml:"judge"`
	Sandbox  docker.Config     `yaml:"sandbox"`
	Checker  spj.RunnerConfig  `yaml:"checker"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file when present, then applies env
// overrides and defaults. A missing file is not an error; the server
// can start on defaults alone.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			if !os.IsNotExist(err) && !isNotExistWrapped(err) {
				return nil, err
			}
		}
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = defaultCheckerBucket
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = defaultSessionTTL
	}
	if cfg.Auth.AdminUsername == "" {
		cfg.Auth.AdminUsername = defaultAdminUsername
	}
	if cfg.Judge.Workers <= 0 {
		cfg.Judge.Workers = defaultJudgeWorkers
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	return &cfg, nil
}

func isNotExistWrapped(err error) bool {
	for err != nil {
		if os.IsNotExist(err) {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("NANOJ_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NANOJ_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("NANOJ_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("NANOJ_ADMIN_USERNAME"); v != "" {
		cfg.Auth.AdminUsername = v
	}
	if v := os.Getenv("NANOJ_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("NANOJ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NANOJ_MYSQL_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (j JudgeConfig) toServiceConfig() service.Config {
	return service.Config{RequireContainer: j.RequireContainer}
}
