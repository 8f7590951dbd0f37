// Package config provides the run configuration of a lattice simulation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVoxelSize             = 0.001
	DefaultTimeStep              = -1.0 // negative: use the recommended step
	DefaultSteps                 = 1000
	DefaultWorkers               = 1
	DefaultGravity               = 9.80665
	DefaultInstabilityFactor     = 10.0
	DefaultCollisionEnvelope     = 0.49
	DefaultCollisionExcludeDepth = 2
	DefaultLogLevel              = "info"
)

// ErrInvalidConfig indicates a configuration value outside its valid range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	VoxelSize          float64 `yaml:"voxel_size"`
	TimeStep           float64 `yaml:"time_step"`
	Steps              int     `yaml:"steps"`
	Workers            int     `yaml:"workers"`
	Gravity            float64 `yaml:"gravity"`
	Floor              bool    `yaml:"floor"`
	Collisions         bool    `yaml:"collisions"`
	AmbientTemperature float64 `yaml:"ambient_temperature"`
	InstabilityFactor  float64 `yaml:"instability_factor"`
	// CollisionEnvelope is the collision radius as a fraction of the voxel size
	CollisionEnvelope     float64 `yaml:"collision_envelope"`
	CollisionExcludeDepth int     `yaml:"collision_exclude_depth"`
	LogLevel              string  `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		VoxelSize:             DefaultVoxelSize,
		TimeStep:              DefaultTimeStep,
		Steps:                 DefaultSteps,
		Workers:               DefaultWorkers,
		Gravity:               DefaultGravity,
		InstabilityFactor:     DefaultInstabilityFactor,
		CollisionEnvelope:     DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth,
		LogLevel:              DefaultLogLevel,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var availableLoggingLevels = []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}

// Validate checks every field, reporting all the problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.VoxelSize <= 0 {
		problems = append(problems, fmt.Sprintf("voxel_size must be positive, got %g", c.VoxelSize))
	}
	if c.Steps < 0 {
		problems = append(problems, fmt.Sprintf("steps must not be negative, got %d", c.Steps))
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	if c.InstabilityFactor <= 1 {
		problems = append(problems, fmt.Sprintf("instability_factor must be greater than 1, got %g", c.InstabilityFactor))
	}
	if c.CollisionEnvelope <= 0 {
		problems = append(problems, fmt.Sprintf("collision_envelope must be positive, got %g", c.CollisionEnvelope))
	}
	if c.CollisionExcludeDepth < 1 {
		problems = append(problems, fmt.Sprintf("collision_exclude_depth must be at least 1, got %d", c.CollisionExcludeDepth))
	}
	if !validateLoggingLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level must be one of %s, got %q", strings.Join(availableLoggingLevels, ", "), c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func validateLoggingLevel(loggingLevel string) bool {
	for _, l := range availableLoggingLevels {
		if l == strings.ToLower(loggingLevel) {
			return true
		}
	}
	return false
}
