package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	RootDirectories  []string `json:"root_directories" yaml:"root_directories"`
	BuildOnSave      bool     `json:"build_on_save" yaml:"build_on_save"`
	DiagnosticsDelay Duration `json:"diagnostics_delay" yaml:"diagnostics_delay"`
	Workers          int      `json:"workers" yaml:"workers"`
	Watch            bool     `json:"watch" yaml:"watch"`
	IndexOnStartup   bool     `json:"index_on_startup" yaml:"index_on_startup"`
	MetricsAddress   string   `json:"metrics_address" yaml:"metrics_address"`
	GraphAddress     string   `json:"graph_address" yaml:"graph_address"`
}

var defaultConfig = Config{
	RootDirectories:  []string{},
	DiagnosticsDelay: Duration(300 * time.Millisecond),
	Workers:          4,
	GraphAddress:     "127.0.0.1:0",
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := defaultConfig
	cfg.RootDirectories = []string{}
	return cfg
}

// Load overlays the fields present in v, typically editor initialization
// options, on top of the defaults.
func Load(v any) (Config, error) {
	return Overlay(Default(), v)
}

// Overlay replaces the fields of base that are present in v. Settings
// nested under a "texlsp" section are unwrapped first.
func Overlay(base Config, v any) (Config, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	var section struct {
		Texlsp json.RawMessage `json:"texlsp"`
	}
	if err := json.Unmarshal(data, &section); err == nil && len(section.Texlsp) > 0 {
		data = section.Texlsp
	}

	cfg := base
	cfg.RootDirectories = append([]string(nil), base.RootDirectories...)
	// only fields present in v will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	return cfg, cfg.Validate()
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	return cfg, cfg.Validate()
}

// LoadFromYAML reads YAML from r into a Config.
func LoadFromYAML(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	return cfg, cfg.Validate()
}

// LoadFile reads a JSON file when the name ends in .json and YAML otherwise.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(bytes.NewReader(data))
	}
	return LoadFromYAML(bytes.NewReader(data))
}

func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}
	if c.DiagnosticsDelay < 0 {
		return fmt.Errorf("%w: negative diagnostics_delay %s", ErrInvalid, c.DiagnosticsDelay)
	}
	for _, dir := range c.RootDirectories {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%w: empty root directory", ErrInvalid)
		}
	}
	return nil
}

// Duration accepts a Go duration string ("300ms") or a number of
// milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return d.parse(n.String())
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: duration %s", ErrInvalid, data)
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: duration must be a scalar", ErrInvalid)
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(ms * float64(time.Millisecond))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalid, s)
	}
	*d = Duration(v)
	return nil
}
