// Package config loads swashark settings. Flags override environment
// variables, which override the optional YAML file, which overrides the
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultRoutePrefix = "/docs"
	DefaultLogFile     = "/tmp/swashark.log"
	DefaultVersionName = "default"
)

// Version is one selectable document. Exactly one of URL and File is set.
type Version struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	File string `yaml:"file"`
}

// Source returns the fetcher source: the URL, or "@" and the absolute file
// path.
func (v Version) Source() string {
	if u := strings.TrimSpace(v.URL); u != "" {
		return u
	}
	return fileSource(v.File)
}

type Generator struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	SpecURL     string    `yaml:"spec_url"`
	SpecFile    string    `yaml:"spec_file"`
	BaseURL     string    `yaml:"base_url"`
	Title       string    `yaml:"title"`
	RoutePrefix string    `yaml:"route_prefix"`
	Addr        string    `yaml:"addr"`
	StateFile   string    `yaml:"state_file"`
	Debug       bool      `yaml:"debug"`
	LogFile     string    `yaml:"log_file"`
	Versions    []Version `yaml:"versions"`
	Generator   Generator `yaml:"generator"`
}

func Defaults() Config {
	return Config{
		RoutePrefix: DefaultRoutePrefix,
		Addr:        DefaultAddr,
		StateFile:   defaultStateFile(),
		LogFile:     DefaultLogFile,
		Generator:   Generator{Timeout: 30 * time.Second},
	}
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "swashark-state.json")
	}
	return filepath.Join(home, ".swashark", "state.json")
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SWASHARK_* variables. A spec source from
// the environment replaces the one read from the file.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	switch {
	case strings.TrimSpace(getenv("SWASHARK_SPEC_URL")) != "":
		c.SpecURL, c.SpecFile = strings.TrimSpace(getenv("SWASHARK_SPEC_URL")), ""
	case strings.TrimSpace(getenv("SWASHARK_SPEC_FILE")) != "":
		c.SpecURL, c.SpecFile = "", strings.TrimSpace(getenv("SWASHARK_SPEC_FILE"))
	}
	str("SWASHARK_BASE_URL", &c.BaseURL)
	str("SWASHARK_STATE_FILE", &c.StateFile)
	str("SWASHARK_LOG_FILE", &c.LogFile)
	str("SWASHARK_GENERATOR_URL", &c.Generator.URL)
	str("SWASHARK_GENERATOR_KEY", &c.Generator.APIKey)
	if v := strings.TrimSpace(getenv("SWASHARK_DEBUG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		} else {
			c.Debug = true
		}
	}
}

// Spec returns the single-document source. A spec URL takes precedence over
// a spec file.
func (c Config) Spec() string {
	if u := strings.TrimSpace(c.SpecURL); u != "" {
		return u
	}
	return fileSource(c.SpecFile)
}

// VersionList returns the configured versions, or a single default version
// built from Spec.
func (c Config) VersionList() []Version {
	if len(c.Versions) > 0 {
		out := make([]Version, len(c.Versions))
		copy(out, c.Versions)
		return out
	}
	spec := c.Spec()
	if spec == "" {
		return nil
	}
	return []Version{{Name: DefaultVersionName, URL: spec}}
}

func (c Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, v := range c.Versions {
		name := strings.TrimSpace(v.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("versions[%d]: name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("versions[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
		if v.Source() == "" {
			errs = append(errs, fmt.Errorf("versions[%d]: url or file is required", i))
		}
	}
	if p := c.RoutePrefix; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("route_prefix must start with '/': %q", p))
	}
	return errors.Join(errs...)
}

func fileSource(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "@" + path
}
