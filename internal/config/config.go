package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"squeezer-go/internal/policy"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory  string        `mapstructure:"output_directory"`
	QualityTier      string        `mapstructure:"quality_tier"`
	PreserveMetadata bool          `mapstructure:"preserve_metadata"`
	Logging          LoggingConfig `mapstructure:"logging"`
	Web              WebConfig     `mapstructure:"web"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// WebConfig contains web interface settings
type WebConfig struct {
	Port int `mapstructure:"port"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		OutputDirectory:  defaultOutputDirectory(),
		QualityTier:      "maximum",
		PreserveMetadata: true,
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "squeezer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
		Web: WebConfig{
			Port: 8080,
		},
	}
}

// defaultOutputDirectory places compressed output under the user's
// Downloads folder, falling back to the working directory.
func defaultOutputDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "squeezer-output"
	}
	return filepath.Join(home, "Downloads", "Squeezer")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.squeezer")
		viper.AddConfigPath("/etc/squeezer")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("SQUEEZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required")
	}

	if _, err := policy.ParseTier(c.QualityTier); err != nil {
		return fmt.Errorf("invalid quality_tier: %w", err)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port: %d", c.Web.Port)
	}

	return nil
}

// Tier returns the parsed quality tier. Validate guarantees the string
// parses; a zero tier is returned otherwise.
func (c *Config) Tier() policy.Tier {
	tier, err := policy.ParseTier(c.QualityTier)
	if err != nil {
		return policy.TierMaximum
	}
	return tier
}
