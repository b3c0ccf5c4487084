// Package config loads the program configuration: an embedded YAML template
// supplies defaults and an optional file overrides them.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"github.com/psilva261/lqueryfs/anim"
	"github.com/psilva261/lqueryfs/lquery"
	"github.com/psilva261/lqueryfs/runner"
	"github.com/rupor-github/gencfg"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	AnimationConfig struct {
		Duration string `yaml:"duration" validate:"required"`
		Easing   string `yaml:"easing" validate:"required"`
	}

	AjaxConfig struct {
		Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
		DataType string        `yaml:"data_type" validate:"oneof=json xml html script text"`
	}

	RunnerConfig struct {
		Origin      string        `yaml:"origin" validate:"omitempty,url"`
		ExecTimeout time.Duration `yaml:"exec_timeout" validate:"gt=0"`
		Quiet       time.Duration `yaml:"quiet" validate:"gt=0"`
	}

	ServerConfig struct {
		Listen string `yaml:"listen" validate:"required,hostname_port"`
	}

	NinePConfig struct {
		Service string `yaml:"service" validate:"required"`
		Source  string `yaml:"source"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Animation AnimationConfig `yaml:"animation"`
		Ajax      AjaxConfig      `yaml:"ajax"`
		Runner    RunnerConfig    `yaml:"runner"`
		Server    ServerConfig    `yaml:"server"`
		NineP     NinePConfig     `yaml:"ninep"`
		Logging   LoggingConfig   `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields defined above are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if _, err := anim.ParseMillis(cfg.Animation.Duration); err != nil {
			return nil, fmt.Errorf("animation: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration expands the template for defaults, overlays the file at
// path if one is given and validates the result.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns the expanded template.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Defaults are the lQuery defaults the configuration describes.
func (cfg *Config) Defaults() lquery.Defaults {
	return lquery.Defaults{
		Duration:    anim.Spec(cfg.Animation.Duration),
		Easing:      cfg.Animation.Easing,
		AjaxTimeout: cfg.Ajax.Timeout,
		DataType:    cfg.Ajax.DataType,
	}
}

// RunnerOptions translates the runner section.
func (cfg *Config) RunnerOptions() []runner.Option {
	return []runner.Option{
		runner.WithOrigin(cfg.Runner.Origin),
		runner.WithTimeout(cfg.Runner.ExecTimeout),
		runner.WithQuiet(cfg.Runner.Quiet),
		runner.WithDefaults(cfg.Defaults()),
	}
}
