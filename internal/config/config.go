// Package config loads the settings shared by the pagesweep command and
// server from a YAML or JSON file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	yaml "gopkg.in/yaml.v3"

	"github.com/tsawler/pagesweep"
)

// Defaults.
const (
	DefaultMaxInputSize = "512 MiB"
	DefaultOutputPrefix = "cleaned_"
	DefaultAddr         = ":8080"
	DefaultRateLimit    = 60
)

// Config is the file and environment configuration.
type Config struct {
	// MaxInputSize accepts byte counts with units, e.g. "64 MiB" or "10MB".
	MaxInputSize string `yaml:"maxInputSize" json:"maxInputSize"`
	AllowEmpty   bool   `yaml:"allowEmpty" json:"allowEmpty"`
	Producer     string `yaml:"producer" json:"producer"`
	MaxFormDepth int    `yaml:"maxFormDepth" json:"maxFormDepth"`

	Output struct {
		Prefix string `yaml:"prefix" json:"prefix"`
		Dir    string `yaml:"dir" json:"dir"`
	} `yaml:"output" json:"output"`

	HTTP struct {
		Addr           string   `yaml:"addr" json:"addr"`
		RateLimit      int      `yaml:"rateLimit" json:"rateLimit"` // requests per minute per client
		AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins"`
	} `yaml:"http" json:"http"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.MaxInputSize = DefaultMaxInputSize
	c.Producer = "pagesweep"
	c.Output.Prefix = DefaultOutputPrefix
	c.HTTP.Addr = DefaultAddr
	c.HTTP.RateLimit = DefaultRateLimit
	c.HTTP.AllowedOrigins = []string{"*"}
	return c
}

// Load reads a YAML or JSON file over the defaults. The format follows the
// extension; other extensions are tried as YAML, then JSON.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			if jerr := json.Unmarshal(b, &c); jerr != nil {
				return c, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return c, c.Validate()
}

// LookupFunc is the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays PAGESWEEP_* variables (and PORT) found through lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("PAGESWEEP_MAX_INPUT_SIZE"); ok && v != "" {
		c.MaxInputSize = v
	}
	if v, ok := lookup("PAGESWEEP_PRODUCER"); ok && v != "" {
		c.Producer = v
	}
	if v, ok := lookup("PAGESWEEP_ALLOW_EMPTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PAGESWEEP_ALLOW_EMPTY: %w", err)
		}
		c.AllowEmpty = b
	}
	if v, ok := lookup("PAGESWEEP_OUTPUT_DIR"); ok && v != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.HTTP.Addr = ":" + v
	}
	if v, ok := lookup("PAGESWEEP_ADDR"); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("PAGESWEEP_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PAGESWEEP_RATE_LIMIT: %w", err)
		}
		c.HTTP.RateLimit = n
	}
	if v, ok := lookup("PAGESWEEP_CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.HTTP.AllowedOrigins = origins
	}
	return c.Validate()
}

// Validate checks the values that cannot be used as given.
func (c Config) Validate() error {
	if _, err := c.MaxInputBytes(); err != nil {
		return err
	}
	if c.MaxFormDepth < 0 {
		return fmt.Errorf("maxFormDepth must not be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rateLimit must not be negative")
	}
	return nil
}

// MaxInputBytes parses MaxInputSize.
func (c Config) MaxInputBytes() (int64, error) {
	s := c.MaxInputSize
	if s == "" {
		s = DefaultMaxInputSize
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("maxInputSize %q: %w", c.MaxInputSize, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("maxInputSize %q out of range", c.MaxInputSize)
	}
	return int64(n), nil
}

// Options converts the configuration into library options. AllowEmpty off
// means an all-blank document is rejected.
func (c Config) Options() []pagesweep.Option {
	var opts []pagesweep.Option
	if n, err := c.MaxInputBytes(); err == nil {
		opts = append(opts, pagesweep.WithMaxInputSize(n))
	}
	if !c.AllowEmpty {
		opts = append(opts, pagesweep.WithRejectEmptyOutput())
	}
	if c.Producer != "" {
		opts = append(opts, pagesweep.WithProducer(c.Producer))
	}
	if c.MaxFormDepth > 0 {
		opts = append(opts, pagesweep.WithMaxFormDepth(c.MaxFormDepth))
	}
	return opts
}

// OutputName returns the file name of the cleaned copy of input.
func (c Config) OutputName(input string) string {
	prefix := c.Output.Prefix
	if prefix == "" {
		prefix = DefaultOutputPrefix
	}
	base := filepath.Base(input)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document.pdf"
	}
	return prefix + base
}
