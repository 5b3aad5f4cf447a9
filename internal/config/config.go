package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"gosts/domain/verdict"
	"gosts/internal/errors"
	"gosts/internal/workpool"
)

var validate = validator.New()

// Config represents the process configuration read from the environment
type Config struct {
	Server    ServerConfig `validate:"required"`
	Engine    EngineConfig `validate:"required"`
	Serial    SerialConfig
	Profiling ProfilingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string `validate:"required"`
	GinMode      string `validate:"oneof=debug release test"`
	APIKey       string
	MaxBodyBytes int64         `validate:"gt=0"`
	RunTimeout   time.Duration `validate:"gte=0"`
}

// EngineConfig holds scheduler and verdict settings
type EngineConfig struct {
	Workers             int     `validate:"min=1"`
	ScratchLimitBytes   int64   `validate:"gte=0"`
	Alpha               float64 `validate:"gt=0,lt=1"`
	UniformityThreshold float64 `validate:"gt=0,lt=1"`
}

// SerialConfig names a hardware entropy device. Empty Device disables it.
type SerialConfig struct {
	Device      string
	Baud        int           `validate:"required_with=Device,gte=0"`
	ReadTimeout time.Duration `validate:"gte=0"`
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string `validate:"required_if=Enabled true"`
	Enabled bool
}

// Verdict returns the verdict configuration.
func (e EngineConfig) Verdict() verdict.Config {
	return verdict.Config{Alpha: e.Alpha, UniformityThreshold: e.UniformityThreshold}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	defaults := verdict.DefaultConfig()
	config := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			GinMode:      getEnvOrDefault("GIN_MODE", "release"),
			APIKey:       getEnvOrDefault("API_KEY", ""),
			MaxBodyBytes: getEnvInt64OrDefault("MAX_BODY_BYTES", 64<<20),
			RunTimeout:   getEnvDurationOrDefault("RUN_TIMEOUT", 10*time.Minute),
		},
		Engine: EngineConfig{
			Workers:             getEnvIntOrDefault("WORKERS", runtime.NumCPU()),
			ScratchLimitBytes:   getEnvInt64OrDefault("SCRATCH_LIMIT_BYTES", 0),
			Alpha:               getEnvFloatOrDefault("ALPHA", defaults.Alpha),
			UniformityThreshold: getEnvFloatOrDefault("UNIFORMITY_THRESHOLD", defaults.UniformityThreshold),
		},
		Serial: SerialConfig{
			Device:      getEnvOrDefault("SERIAL_DEVICE_NAME", ""),
			Baud:        getEnvIntOrDefault("SERIAL_BAUD_RATE", 0),
			ReadTimeout: time.Duration(getEnvIntOrDefault("SERIAL_READ_TIMEOUT", 1000)) * time.Millisecond,
		},
		Profiling: ProfilingConfig{
			Port:    getEnvOrDefault("PPROF_PORT", "6060"),
			Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Engine.Workers > workpool.MaxWorkers {
		return errors.ConfigInvalid("WORKERS exceeds " + strconv.Itoa(workpool.MaxWorkers))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
