package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8000
log:
  log_level: "debug"
  log_dir: "/tmp/logs"
  log_file: "test.log"
web:
  enabled: true
  port: 8081
upload:
  url: "http://localhost:8081/api/attach"
  field_name: "picture"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithDotEnv(false).WithPath(configFile)
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg := result.Config
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Upload.FieldName != "picture" {
		t.Errorf("expected upload field name picture, got %s", cfg.Upload.FieldName)
	}
	if result.Path != configFile {
		t.Errorf("expected path %s, got %s", configFile, result.Path)
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml"))

	// Missing pinned file is an error; missing search-path file falls back.
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for pinned missing file")
	}

	oldWd, _ := os.Getwd()
	tmp := t.TempDir()
	os.Chdir(tmp)
	defer os.Chdir(oldWd)

	result, err := NewLoader().WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if result.Path != "defaults" {
		t.Errorf("expected defaults path, got %s", result.Path)
	}
	if result.Config.Upload.Method != "POST" {
		t.Errorf("expected default method POST, got %s", result.Config.Upload.Method)
	}
	if result.Config.Upload.FieldName != "image" {
		t.Errorf("expected default field name image, got %s", result.Config.Upload.FieldName)
	}
	if result.Config.Attach.Dedupe.TTL != 24*time.Hour {
		t.Errorf("unexpected default dedupe TTL %v", result.Config.Attach.Dedupe.TTL)
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	oldWd, _ := os.Getwd()
	os.Chdir(t.TempDir())
	defer os.Chdir(oldWd)

	t.Setenv("INKWELL_WEB_PORT", "9090")
	t.Setenv("INKWELL_UPLOAD_URL", "http://upstream/attach")

	result, err := NewLoader().WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if result.Config.Web.Port != 9090 {
		t.Errorf("expected web port override 9090, got %d", result.Config.Web.Port)
	}
	if result.Config.Upload.URL != "http://upstream/attach" {
		t.Errorf("expected upload url override, got %s", result.Config.Upload.URL)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Server: ServerConfig{Port: 8000},
				Web:    WebConfig{Port: 8081},
			},
			wantErr: false,
		},
		{
			name: "invalid server port",
			config: &Config{
				Server: ServerConfig{Port: 70000},
				Web:    WebConfig{Port: 8081},
			},
			wantErr: true,
		},
		{
			name: "invalid web port",
			config: &Config{
				Server: ServerConfig{Port: 8000},
				Web:    WebConfig{Port: 70000},
			},
			wantErr: true,
		},
		{
			name: "unknown paste policy",
			config: &Config{
				Server: ServerConfig{Port: 8000},
				Web:    WebConfig{Port: 8081},
				Upload: UploadConfig{PastePolicy: "defer"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
