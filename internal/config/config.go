// Package config loads repository build settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sassoftware/debpkgr/internal/models"
	"gopkg.in/yaml.v3"
)

// File represents the structure of a repository configuration file.
type File struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Distribution  string   `yaml:"distribution"`
	Suite         string   `yaml:"suite"`
	Origin        string   `yaml:"origin"`
	Label         string   `yaml:"label"`
	Version       string   `yaml:"version"`
	Component     string   `yaml:"component"`
	Architectures []string `yaml:"architectures"`
	Compressions  []string `yaml:"compressions"`
	Workers       int      `yaml:"workers"`
	ErrorPolicy   string   `yaml:"errorPolicy"`
	PoolMode      string   `yaml:"poolMode"`

	Signing *SigningDTO `yaml:"signing"`
}

// SigningDTO represents the signing section of the configuration.
type SigningDTO struct {
	Command       string            `yaml:"command"`
	KeyID         string            `yaml:"keyId"`
	Timeout       string            `yaml:"timeout"`
	VerifyKeyring string            `yaml:"verifyKeyring"`
	Extra         map[string]string `yaml:"extra"`
}

// Defaults returns the settings used when no file is given.
func Defaults() *File {
	return &File{
		Distribution:  "stable",
		Component:     "main",
		Architectures: []string{"amd64"},
		Compressions:  []string{models.CompressionGzip},
		ErrorPolicy:   string(models.FailFast),
		PoolMode:      string(models.PoolCopy),
	}
}

// Load reads a configuration file. Fields the file leaves out keep the
// values from Defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, configError(path, fmt.Errorf("failed to read config file: %w", err))
	}
	f, err := Parse(data)
	if err != nil {
		return nil, configError(path, err)
	}
	return f, nil
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return f, nil
}

// Descriptor converts the file into a normalized, validated
// RepositoryDescriptor.
func (f *File) Descriptor() (*models.RepositoryDescriptor, error) {
	d := &models.RepositoryDescriptor{
		Name:          f.Name,
		Description:   f.Description,
		Distribution:  f.Distribution,
		Suite:         f.Suite,
		Origin:        f.Origin,
		Label:         f.Label,
		Version:       f.Version,
		Component:     f.Component,
		Architectures: f.Architectures,
		Compressions:  f.Compressions,
		Workers:       f.Workers,
		ErrorPolicy:   models.ErrorPolicy(f.ErrorPolicy),
		PoolMode:      models.PoolMode(f.PoolMode),
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// SignOptions converts the signing section. It returns nil when signing
// is not configured. Signing settings without a command are rejected.
func (f *File) SignOptions() (*models.SignOptions, error) {
	s := f.Signing
	if s == nil {
		return nil, nil
	}
	if s.Command == "" {
		if s.KeyID != "" || s.Timeout != "" || s.VerifyKeyring != "" || len(s.Extra) > 0 {
			return nil, configError("", fmt.Errorf("signing options given without a signing command"))
		}
		return nil, nil
	}

	opts := &models.SignOptions{
		Command:       s.Command,
		KeyID:         s.KeyID,
		VerifyKeyring: s.VerifyKeyring,
		Extra:         s.Extra,
	}
	if s.Timeout != "" {
		timeout, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, configError("", fmt.Errorf("invalid signing timeout %q: %w", s.Timeout, err))
		}
		if timeout <= 0 {
			return nil, configError("", fmt.Errorf("signing timeout must be positive"))
		}
		opts.Timeout = timeout
	}
	return opts, nil
}

func configError(path string, err error) error {
	return models.NewError(models.ErrConfig, models.StageConfig, path, err)
}
