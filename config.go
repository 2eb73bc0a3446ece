package heartlink

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds environment-driven settings. Variables use the HEARTLINK_
// prefix, e.g. HEARTLINK_BASE_URL.
type Config struct {
	BaseURL           string        `envconfig:"BASE_URL" required:"true"`
	APIKey            string        `envconfig:"API_KEY" required:"true"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("heartlink", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
