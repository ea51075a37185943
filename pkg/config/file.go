package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ScraperConfig holds general harvesting settings.
type ScraperConfig struct {
	Workers  string `yaml:"workers"`
	Schedule string `yaml:"schedule"`
}

// StorageConfig selects the sink harvested listings are written to.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// JobOptions describes one process launched by the supervisor.
type JobOptions struct {
	Name        string            `yaml:"name"`
	Path        string            `yaml:"path"`
	Args        []string          `yaml:"args"`
	MaxMemoryMB int               `yaml:"max_memory_mb"`
	Env         map[string]string `yaml:"env"`
}

// SupervisorConfig lists the long-running jobs to supervise.
type SupervisorConfig struct {
	Jobs []JobOptions `yaml:"jobs"`
}

// File is the complete structure for the harvester.yml file.
type File struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Sites      []Options        `yaml:"sites"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// DefaultFile returns the file configuration used when keys are missing.
func DefaultFile() *File {
	return &File{
		Logging: LoggingConfig{Level: "info"},
		Scraper: ScraperConfig{Workers: "auto", Schedule: "@every 30m"},
		Storage: StorageConfig{Driver: "sqlite", DSN: "listings.db"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// LoadFile reads a YAML file over DefaultFile and applies environment overrides.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML bytes over DefaultFile and applies environment overrides.
func ParseFile(data []byte) (*File, error) {
	cfg := DefaultFile()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Logging.Level = getEnv("HARVEST_LOG_LEVEL", cfg.Logging.Level)
	cfg.Storage.Driver = getEnv("HARVEST_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("HARVEST_STORAGE_DSN", cfg.Storage.DSN)
	cfg.Server.Addr = getEnv("HARVEST_SERVER_ADDR", cfg.Server.Addr)

	return cfg, nil
}

// Site returns the options of the named site.
func (f *File) Site(name string) (Options, bool) {
	for _, s := range f.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return Options{}, false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
