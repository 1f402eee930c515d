package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "straylight")
	var s sample
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\nlimit: 3\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "straylight" || s.Limit != 3 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	var s sample
	if err := Load(writeFile(t, "limit: -1\n"), &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoadWithDefaults_FallsBack(t *testing.T) {
	def := writeFile(t, "name: default\n")
	var s sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), def, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q, want default", s.Name)
	}

	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), "", &s); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
