package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"quickcart/pkg/log"
)

var (
	// GlobalConfig holds the global configuration instance
	GlobalConfig *Config
)

// LoadConfig loads configuration from file and environment variables.
// Environment variables use the QUICKCART_ prefix with underscores,
// e.g. QUICKCART_DATABASE_HOST.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/quickcart")
	}

	v.SetEnvPrefix("QUICKCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults plus environment variables
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Defaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Reload tunables (TTLs, batch sizes) when the file changes.
	// Structural settings (ports, DSNs) only apply on restart.
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := &Config{}
		if err := v.Unmarshal(updated); err != nil {
			log.WithError(err).Warn("Ignoring invalid config change")
			return
		}
		updated.Defaults()
		if err := updated.Validate(); err != nil {
			log.WithError(err).Warn("Ignoring invalid config change")
			return
		}
		GlobalConfig = updated
		log.WithField("file", e.Name).Info("Configuration reloaded")
	})
	v.WatchConfig()

	GlobalConfig = config
	return config, nil
}
