// Package config loads the shell's YAML configuration file.
package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"psh/internal/env"
	"psh/internal/logger"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	DirName           = "psh"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	Prompt   string `json:"prompt" validate:"required"`
	Color    string `json:"color" validate:"oneof=always auto never"`
	LogLevel string `json:"log_level" validate:"oneof=off error warn info debug trace"`
	LogFile  string `json:"log_file"`

	Plugins []string `json:"plugins" validate:"dive,required"`

	MaxPipelineStages int `json:"max_pipeline_stages" validate:"gte=1,lte=16"`
	JobLabelWidth     int `json:"job_label_width" validate:"gte=0"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	return validate.Struct(c)
}

// Level is the parsed log_level.
func (c *Configuration) Level() logger.Level {
	lvl, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.Warn
	}
	return lvl
}

// Default returns the built-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// DefaultPath is $XDG_CONFIG_HOME/psh/config.yaml, falling back to
// $HOME/.config. It is empty when neither variable is set.
func DefaultPath(e env.Environment) string {
	if dir := env.Getenv(e, "XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, DirName, ConfigurationName)
	}
	if home := env.Getenv(e, "HOME"); home != "" {
		return filepath.Join(home, ".config", DirName, ConfigurationName)
	}
	return ""
}

// Load reads the configuration at path. Fields the file leaves out keep
// their default values, and a missing file yields the defaults. An empty
// path also yields the defaults.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	out := Default()
	if path == "" {
		return out, nil
	}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out, nil
	case err != nil:
		return nil, err
	}

	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
