package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Port    int      `yaml:"port" json:"port"`
	Debug   bool     `yaml:"debug" json:"debug"`
	Tags    []string `yaml:"tags" json:"tags"`
	Nested  nested   `yaml:"nested" json:"nested"`
	private string
}

type nested struct {
	Value string `yaml:"value" json:"value"`
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
name: taskwell
port: 8080
debug: true
tags:
  - a
  - b
nested:
  value: deep
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Name != "taskwell" || cfg.Port != 8080 || !cfg.Debug {
		t.Errorf("Load() = %+v", cfg)
	}
	if len(cfg.Tags) != 2 || cfg.Nested.Value != "deep" {
		t.Errorf("Load() nested/slice = %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeTempFile(t, "config.json", `{"name":"taskwell","port":9090}`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != "taskwell" || cfg.Port != 9090 {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load("/nonexistent/config.yaml", &cfg); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TW_TEST_NAME", "from-env")
	t.Setenv("TW_TEST_PORT", "7070")
	t.Setenv("TW_TEST_DEBUG", "true")
	t.Setenv("TW_TEST_TAGS", "x, y, z")
	t.Setenv("TW_TEST_NESTED_VALUE", "deep-env")

	cfg := testConfig{Name: "original", Port: 1}
	if err := ApplyEnvOverrides("TW_TEST", &cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}

	if cfg.Name != "from-env" {
		t.Errorf("Name = %s, want from-env", cfg.Name)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if len(cfg.Tags) != 3 || cfg.Tags[1] != "y" {
		t.Errorf("Tags = %v", cfg.Tags)
	}
	if cfg.Nested.Value != "deep-env" {
		t.Errorf("Nested.Value = %s, want deep-env", cfg.Nested.Value)
	}
}

func TestApplyEnvOverrides_InvalidTarget(t *testing.T) {
	var notAStruct int
	if err := ApplyEnvOverrides("TW", &notAStruct); err == nil {
		t.Error("ApplyEnvOverrides() on non-struct should fail")
	}
	if err := ApplyEnvOverrides("TW", testConfig{}); err == nil {
		t.Error("ApplyEnvOverrides() on non-pointer should fail")
	}
}

func TestValidators(t *testing.T) {
	cfg := testConfig{Name: "x", Port: 8080}

	if err := Validate(&cfg, RequiredFields("Name", "Port")); err != nil {
		t.Errorf("RequiredFields satisfied, got error: %v", err)
	}
	if err := Validate(&cfg, RequiredFields("Tags")); err == nil {
		t.Error("RequiredFields should flag empty slice")
	}
	if err := Validate(&cfg, RequiredFields("Nested.Value")); err == nil {
		t.Error("RequiredFields should flag empty nested field")
	}

	if err := Validate(&cfg, RangeValidator("Port", 1, 65535)); err != nil {
		t.Errorf("RangeValidator in range, got error: %v", err)
	}
	if err := Validate(&cfg, RangeValidator("Port", 1, 100)); err == nil {
		t.Error("RangeValidator should flag out-of-range value")
	}

	if err := Validate(&cfg, OneOfValidator("Name", "x", "y")); err != nil {
		t.Errorf("OneOfValidator allowed value, got error: %v", err)
	}
	if err := Validate(&cfg, OneOfValidator("Name", "a", "b")); err == nil {
		t.Error("OneOfValidator should flag disallowed value")
	}
}

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	// No file: pure defaults
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Pool.Workers != 4 {
		t.Errorf("default Pool.Workers = %d, want 4", cfg.Pool.Workers)
	}
	if cfg.Gateway.Auth.Mode != "none" {
		t.Errorf("default Auth.Mode = %s, want none", cfg.Gateway.Auth.Mode)
	}

	// File overrides defaults
	path := writeTempFile(t, "taskwell.yaml", `
pool:
  workers: 8
journal:
  driver: sqlite3
  dsn: ":memory:"
`)
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Pool.Workers != 8 {
		t.Errorf("Pool.Workers = %d, want 8", cfg.Pool.Workers)
	}
	if cfg.Journal.Driver != "sqlite3" {
		t.Errorf("Journal.Driver = %s, want sqlite3", cfg.Journal.Driver)
	}

	// Env overrides file
	t.Setenv("TASKWELL_POOL_WORKERS", "16")
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Pool.Workers != 16 {
		t.Errorf("Pool.Workers = %d, want 16 (env override)", cfg.Pool.Workers)
	}
}

func TestLoadFile_AuthSchema(t *testing.T) {
	path := writeTempFile(t, "auth.yaml", `
gateway:
  auth:
    mode: jwt
    jwt_secret: s3cret
    jwt_issuer: taskwell
    jwt_leeway_seconds: 30
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Gateway.Auth.Mode != "jwt" {
		t.Errorf("Auth.Mode = %s, want jwt", cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.Auth.JWTLeewaySeconds != 30 {
		t.Errorf("Auth.JWTLeewaySeconds = %d, want 30", cfg.Gateway.Auth.JWTLeewaySeconds)
	}
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() of a supplied missing path should fail")
	}
}

func TestLoadFile_RejectsInvalidModes(t *testing.T) {
	path := writeTempFile(t, "bad.yaml", `
gateway:
  auth:
    mode: carrier-pigeon
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unknown auth mode")
	}

	path = writeTempFile(t, "bad2.yaml", `
journal:
  driver: oracle
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unknown journal driver")
	}
}
