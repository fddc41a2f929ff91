package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	WorkDir string `yaml:"work_dir"`

	MaxConcurrent     int           `yaml:"max_concurrent"`
	QueuePollInterval time.Duration `yaml:"queue_poll_interval"`
	JobPollInterval   time.Duration `yaml:"job_poll_interval"`

	MaxUploadBytesMb int64 `yaml:"max_upload_mb"`

	Generation Generation `yaml:"generation"`
	Audio      Audio      `yaml:"audio"`
	Redis      Redis      `yaml:"redis"`
	MinIO      MinIO      `yaml:"minio"`
	NATS       NATS       `yaml:"nats"`
}

type Generation struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type Audio struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Seed        int64         `yaml:"seed"`
	NumSteps    int           `yaml:"num_steps"`
	CFGStrength float64       `yaml:"cfg_strength"`
	DurationSec float64       `yaml:"duration_sec"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
}

type NATS struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	QueueName     string `yaml:"queue_name"`
	MaxReconnects int    `yaml:"max_reconnects"`
	Subject       string `yaml:"subject"`
}

func MustLoad(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("config: cannot read file %q: %v", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("config: cannot unmarshal yaml: %v", err)
	}

	// secrets come from the environment, never from the checked-in yaml
	if v := os.Getenv("LUMA_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretAccessKey = v
	}

	if cfg.Addr == "" {
		log.Fatalf("config: addr is empty")
	}
	if cfg.WorkDir == "" {
		log.Fatalf("config: work_dir is empty")
	}
	if cfg.Generation.BaseURL == "" {
		log.Fatalf("config: generation.base_url is empty")
	}
	if cfg.NATS.Enabled && cfg.NATS.Subject == "" {
		log.Fatalf("config: nats.subject is empty")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.QueuePollInterval <= 0 {
		cfg.QueuePollInterval = 100 * time.Millisecond
	}
	if cfg.JobPollInterval <= 0 {
		cfg.JobPollInterval = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytesMb <= 0 {
		cfg.MaxUploadBytesMb = 100
	}
	if cfg.Generation.Timeout <= 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Audio.Timeout <= 0 {
		cfg.Audio.Timeout = 10 * time.Minute
	}

	return &cfg
}
