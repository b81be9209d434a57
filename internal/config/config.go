// Package config provides configuration management for the stencil CLI
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the STENCIL_ prefix, and validation with security
// checks. It parameterizes the rendering environment (debug,
// auto-reload, strict variables, charset, cache target, optimization
// level), the template search paths and the preview server.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stencilhq/stencil/internal/cache"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Templates TemplatesConfig `yaml:"templates"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
}

type EngineConfig struct {
	Debug           bool   `yaml:"debug"`
	AutoReload      bool   `yaml:"auto_reload"`
	StrictVariables bool   `yaml:"strict_variables"`
	AutoEscape      bool   `yaml:"auto_escape"`
	Charset         string `yaml:"charset"`
	// Optimizations selects the generator optimization level; -1 means
	// every optimization the compiler knows about.
	Optimizations int `yaml:"optimizations"`
}

type TemplatesConfig struct {
	// Paths are the loader root directories, searched in order.
	Paths []string `yaml:"paths"`
}

type CacheConfig struct {
	// Enabled turns the persistent artifact cache on or off.
	Enabled bool `yaml:"enabled"`
	// Type selects the store backing the cache: "filesystem" persists
	// artifacts across runs, "memory" keeps them for the process only.
	Type string `yaml:"type"`
	// Dir is the artifact cache directory for the filesystem store.
	Dir string `yaml:"dir"`
	// MaxSize caps the memory store in bytes.
	MaxSize int64 `yaml:"max_size"`
	// TTL expires memory-store artifacts; zero keeps them until evicted.
	TTL time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load builds the configuration from Viper's merged sources and
// applies defaults and validation.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Apply defaults for template paths only if not explicitly set
	if !viper.IsSet("templates.paths") && len(config.Templates.Paths) == 0 {
		config.Templates.Paths = []string{"./templates", "./views"}
	}

	// Handle settings set via viper (workaround for viper bool handling)
	if viper.IsSet("engine.debug") {
		config.Engine.Debug = viper.GetBool("engine.debug")
	}
	if viper.IsSet("engine.auto_reload") {
		config.Engine.AutoReload = viper.GetBool("engine.auto_reload")
	}
	if viper.IsSet("engine.strict_variables") {
		config.Engine.StrictVariables = viper.GetBool("engine.strict_variables")
	}
	if !viper.IsSet("engine.auto_escape") {
		config.Engine.AutoEscape = true
	}
	if config.Engine.Charset == "" {
		config.Engine.Charset = "utf-8"
	}
	if !viper.IsSet("engine.optimizations") {
		config.Engine.Optimizations = -1
	}

	if !viper.IsSet("cache.enabled") {
		config.Cache.Enabled = true
	}
	if viper.IsSet("cache.type") {
		config.Cache.Type = viper.GetString("cache.type")
	}
	if config.Cache.Type == "" {
		config.Cache.Type = "filesystem"
	}
	if config.Cache.Dir == "" {
		config.Cache.Dir = ".stencil/cache"
	}
	if viper.IsSet("cache.max_size") {
		config.Cache.MaxSize = viper.GetInt64("cache.max_size")
	}
	if config.Cache.MaxSize == 0 {
		config.Cache.MaxSize = 64 << 20
	}
	if viper.IsSet("cache.ttl") {
		config.Cache.TTL = viper.GetDuration("cache.ttl")
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8360
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// CacheTarget resolves the cache section into the polymorphic cache
// target the environment accepts: nil when disabled, a size-bounded
// in-memory store for type "memory", the cache directory path
// otherwise.
func (c *Config) CacheTarget() interface{} {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.Type == "memory" {
		return cache.NewMemoryStore(c.Cache.MaxSize, c.Cache.TTL)
	}
	return c.Cache.Dir
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := validateTemplatesConfig(&config.Templates); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validateCacheConfig validates cache configuration values
func validateCacheConfig(config *CacheConfig) error {
	if config.Type != "filesystem" && config.Type != "memory" {
		return fmt.Errorf("cache type must be filesystem or memory, got %q", config.Type)
	}
	if config.MaxSize < 0 {
		return fmt.Errorf("cache max_size must not be negative: %d", config.MaxSize)
	}
	if config.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative: %s", config.TTL)
	}

	if config.Dir != "" {
		cleanPath := filepath.Clean(config.Dir)

		if strings.Contains(cleanPath, "..") {
			return fmt.Errorf("cache dir contains path traversal: %s", config.Dir)
		}
		if filepath.IsAbs(cleanPath) {
			return fmt.Errorf("cache dir should be a relative path: %s", config.Dir)
		}
	}

	return nil
}

// validateTemplatesConfig validates template path values
func validateTemplatesConfig(config *TemplatesConfig) error {
	for _, path := range config.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid template path '%s': %w", path, err)
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
