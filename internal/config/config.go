package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/theiauto/feedsync/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Daum      DaumConfig      `yaml:"daum"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
	// Path is the database file when Type is sqlite.
	Path        string `yaml:"path"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// DaumCredentialConfig is one gateway environment.
type DaumCredentialConfig struct {
	ID      string `yaml:"id"`
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
}

type DaumConfig struct {
	Test DaumCredentialConfig `yaml:"test"`
	Prod DaumCredentialConfig `yaml:"prod"`

	// PushEnabled is the kill switch; nil means enabled.
	PushEnabled          *bool  `yaml:"push_enabled"`
	DryRun               bool   `yaml:"dry_run"`
	EnableCommentDefault bool   `yaml:"enable_comment_default"`
	FrontBaseURL         string `yaml:"front_base_url"`
	Timeout              string `yaml:"timeout"`
	DefaultEnv           string `yaml:"default_env"`
	ContentIDPrefix      string `yaml:"content_id_prefix"`
	FallbackWriterName   string `yaml:"fallback_writer_name"`
	FallbackWriterEmail  string `yaml:"fallback_writer_email"`
	DeletionQueueSize    int    `yaml:"deletion_queue_size"`
}

// IsPushEnabled reports the kill switch state.
func (c *DaumConfig) IsPushEnabled() bool {
	return c.PushEnabled == nil || *c.PushEnabled
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timezone string `yaml:"timezone"`
	// Env is the gateway environment scheduled articles are pushed to.
	Env string `yaml:"env"`
}

type AuthConfig struct {
	// TOTPSecret enables the admin gate on the integration routes when set.
	TOTPSecret string `yaml:"totp_secret"`
	Issuer     string `yaml:"issuer"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3005
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "Asia/Seoul"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/feedsync.db"
	}
	if cfg.Daum.FrontBaseURL == "" {
		cfg.Daum.FrontBaseURL = "http://localhost:3000"
	}
	if cfg.Daum.Timeout == "" {
		cfg.Daum.Timeout = "15s"
	}
	if cfg.Daum.DefaultEnv == "" {
		cfg.Daum.DefaultEnv = "prod"
	}
	if cfg.Daum.ContentIDPrefix == "" {
		cfg.Daum.ContentIDPrefix = "theiauto-"
	}
	if cfg.Daum.FallbackWriterName == "" {
		cfg.Daum.FallbackWriterName = "더아이오토"
	}
	if cfg.Daum.FallbackWriterEmail == "" {
		cfg.Daum.FallbackWriterEmail = "theiauto@naver.com"
	}
	if cfg.Daum.DeletionQueueSize <= 0 {
		cfg.Daum.DeletionQueueSize = 64
	}
	if cfg.Scheduler.Interval == "" {
		cfg.Scheduler.Interval = "1m"
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Asia/Seoul"
	}
	if cfg.Scheduler.Env == "" {
		cfg.Scheduler.Env = "prod"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "feedsync"
	}
}
