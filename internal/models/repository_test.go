package models

import (
	"testing"
	"time"
)

func TestDescriptorNormalize(t *testing.T) {
	d := &RepositoryDescriptor{Distribution: "stable", Architectures: []string{"amd64"}}
	d.Normalize()

	checks := map[string][2]string{
		"Name":        {d.Name, "stable"},
		"Suite":       {d.Suite, "stable"},
		"Origin":      {d.Origin, "Stable"},
		"Label":       {d.Label, "Stable"},
		"Description": {d.Description, "Stable"},
		"Version":     {d.Version, "1.0"},
		"Component":   {d.Component, "main"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if len(d.Compressions) != 1 || d.Compressions[0] != CompressionGzip {
		t.Errorf("Compressions = %v", d.Compressions)
	}
	if d.ErrorPolicy != FailFast {
		t.Errorf("ErrorPolicy = %q", d.ErrorPolicy)
	}
	if d.PoolMode != PoolCopy {
		t.Errorf("PoolMode = %q", d.PoolMode)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestDescriptorNormalizeKeepsExplicitValues(t *testing.T) {
	d := &RepositoryDescriptor{
		Distribution:  "bookworm",
		Suite:         "stable",
		Origin:        "Example",
		Compressions:  []string{},
		Architectures: []string{"arm64"},
	}
	d.Normalize()

	if d.Suite != "stable" || d.Origin != "Example" || d.Label != "Example" {
		t.Errorf("explicit values overwritten: %+v", d)
	}
	if len(d.Compressions) != 0 {
		t.Errorf("empty compression list replaced: %v", d.Compressions)
	}
}

func TestDescriptorValidate(t *testing.T) {
	valid := func() *RepositoryDescriptor {
		d := &RepositoryDescriptor{Distribution: "stable", Architectures: []string{"amd64", "i386"}}
		d.Normalize()
		return d
	}

	tests := []struct {
		name   string
		mutate func(*RepositoryDescriptor)
	}{
		{"bad distribution", func(d *RepositoryDescriptor) { d.Distribution = "../etc" }},
		{"bad component", func(d *RepositoryDescriptor) { d.Component = "main/contrib" }},
		{"no architectures", func(d *RepositoryDescriptor) { d.Architectures = nil }},
		{"declared all", func(d *RepositoryDescriptor) { d.Architectures = []string{"all"} }},
		{"uppercase arch", func(d *RepositoryDescriptor) { d.Architectures = []string{"AMD64"} }},
		{"duplicate arch", func(d *RepositoryDescriptor) { d.Architectures = []string{"amd64", "amd64"} }},
		{"unknown compression", func(d *RepositoryDescriptor) { d.Compressions = []string{"lz4"} }},
		{"negative workers", func(d *RepositoryDescriptor) { d.Workers = -1 }},
		{"unknown policy", func(d *RepositoryDescriptor) { d.ErrorPolicy = "ignore" }},
		{"unknown pool mode", func(d *RepositoryDescriptor) { d.PoolMode = "hardlink" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline descriptor invalid: %v", err)
	}
	all := valid()
	all.Compressions = IndexCompressions
	all.PoolMode = PoolSymlink
	if err := all.Validate(); err != nil {
		t.Fatalf("every compression and symlink mode should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := d.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !IsType(err, ErrConfig) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestSignOptionsTimeout(t *testing.T) {
	if got := (&SignOptions{}).EffectiveTimeout(); got != DefaultSignTimeout {
		t.Errorf("EffectiveTimeout() = %s", got)
	}
	if got := (&SignOptions{Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("EffectiveTimeout() = %s", got)
	}
}
