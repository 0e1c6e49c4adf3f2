package config

import "time"

type Config struct {
	Server  HTTPServerConfig `json:"server"`
	GreenPT GreenPTConfig    `json:"greenpt"`
	Mongo   MongoConfig
	Storage StorageConfig
}

type HTTPServerConfig struct {
	Host         string        `json:"host" default:"0.0.0.0"`
	Port         int           `json:"port" default:"8080"`
	ReadTimeout  time.Duration `json:"read_timeout" default:"120s"`
	WriteTimeout time.Duration `json:"write_timeout" default:"120s"`
}

type GreenPTConfig struct {
	APIKey     string `json:"api_key" required:"true"`
	BaseURL    string `json:"base_url" default:"https://api.greenpt.ai/v1/chat/completions"`
	ModelsURL  string `json:"models_url" default:"https://api.greenpt.ai/v1/models"`
	Model      string `json:"model" default:"greenpt-1"`
	MaxRetries int    `json:"max_retries" default:"2"`
}

type MongoConfig struct {
	URI      string `json:"uri" required:"true"`
	Database string `json:"database" required:"true"`
}

type StorageConfig struct {
	GeneratedRoot string `json:"generated_root" default:"./generated_projects"`
	LogsRoot      string `json:"logs_root" default:"./project_logs"`
}
