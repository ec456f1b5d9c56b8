package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/autopost/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logger     logger.Config    `yaml:"logger"`
	Publishing PublishingConfig `yaml:"publishing"`
	Worker     WorkerConfig     `yaml:"worker"`
	Image      ImageConfig      `yaml:"image"`
	Agents     AgentsConfig     `yaml:"agents"`
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
	// Path is the database file when Type is "sqlite".
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
	// QueueKey is the sorted set holding delayed work messages.
	QueueKey string `yaml:"queue_key"`
}

type PublishingConfig struct {
	// SyncMaxAttempts bounds the retry loop of the direct publish path.
	SyncMaxAttempts int `yaml:"sync_max_attempts"`
	// JobMaxAttempts is copied onto every job created by an orchestration.
	JobMaxAttempts int `yaml:"job_max_attempts"`
}

type WorkerConfig struct {
	PollInterval      string `yaml:"poll_interval"`
	BatchSize         int    `yaml:"batch_size"`
	ReconcileInterval string `yaml:"reconcile_interval"`
	StaleAfter        string `yaml:"stale_after"`
}

type ImageConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Size    string `yaml:"size"`
}

type AgentsConfig struct {
	Medium   AgentConfig `yaml:"medium"`
	LinkedIn AgentConfig `yaml:"linkedin"`
}

type AgentConfig struct {
	Enabled *bool  `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// IsEnabled treats an unset flag as enabled.
func (c AgentConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
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
		cfg.Server.Port = 5334
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
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "autopost.db"
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Redis.QueueKey == "" {
		cfg.Redis.QueueKey = "autopost:publishing-jobs"
	}
	if cfg.Publishing.SyncMaxAttempts <= 0 {
		cfg.Publishing.SyncMaxAttempts = 3
	}
	if cfg.Publishing.JobMaxAttempts <= 0 {
		cfg.Publishing.JobMaxAttempts = 3
	}
	if cfg.Worker.PollInterval == "" {
		cfg.Worker.PollInterval = "2s"
	}
	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = 10
	}
	if cfg.Worker.ReconcileInterval == "" {
		cfg.Worker.ReconcileInterval = "5m"
	}
	if cfg.Worker.StaleAfter == "" {
		cfg.Worker.StaleAfter = "10m"
	}
	if cfg.Image.BaseURL == "" {
		cfg.Image.BaseURL = "https://api.openai.com"
	}
	if cfg.Image.Model == "" {
		cfg.Image.Model = "dall-e-3"
	}
	if cfg.Image.Size == "" {
		cfg.Image.Size = "1024x1024"
	}
}
