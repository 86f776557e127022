package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a Server.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string `yaml:"addr"`
	// DataDir holds the source reports, one JSON or YAML document per file.
	DataDir string `yaml:"data_dir"`
	// CacheDir receives the generated XML documents.
	CacheDir string `yaml:"cache_dir"`
	// ItemTag and RootTag override the encoder's element names when set.
	ItemTag string `yaml:"item_tag"`
	RootTag string `yaml:"root_tag"`
	// Debug enables debug logging to LogFile.
	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8080",
		DataDir:  "data",
		CacheDir: "static/reports_xml",
		LogFile:  "jxml.log",
	}
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("server: config: addr is required")
	case c.DataDir == "":
		return fmt.Errorf("server: config: data_dir is required")
	case c.CacheDir == "":
		return fmt.Errorf("server: config: cache_dir is required")
	}
	return nil
}
