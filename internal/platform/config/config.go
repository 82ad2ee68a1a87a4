package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
	Upload   UploadConfig   `yaml:"upload"`
	Security SecurityConfig `yaml:"security"`
	Database DatabaseConfig `yaml:"database"`
	Attach   AttachConfig   `yaml:"attach"`
}

// ServerConfig configures the websocket editor relay.
type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// WebConfig configures the HTTP surface (attach sink, status, static files).
type WebConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Port       int    `yaml:"port"`
	StaticDir  string `yaml:"static_dir"`
	PublicURL  string `yaml:"public_url"`
	AuthSecret string `yaml:"auth_secret"`
}

// UploadConfig carries the orchestrator defaults handed to new editor
// sessions. Empty URL means pasted and dropped images fall back to inline
// base64 payloads.
type UploadConfig struct {
	URL             string            `yaml:"url"`
	Method          string            `yaml:"method"`
	FieldName       string            `yaml:"field_name"`
	WithCredentials bool              `yaml:"with_credentials"`
	Headers         map[string]string `yaml:"headers"`
	CSRFToken       string            `yaml:"csrf_token"`
	CSRFHash        string            `yaml:"csrf_hash"`
	PastePolicy     string            `yaml:"paste_policy"`
}

// SecurityConfig bounds what the image validation pipeline accepts.
type SecurityConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	MaxPixels         int64    `yaml:"max_pixels"`
	MaxWidth          int      `yaml:"max_width"`
	MaxHeight         int      `yaml:"max_height"`
	AllowedFormats    []string `yaml:"allowed_formats"`
	EnableDeepScan    bool     `yaml:"enable_deep_scan"`
	ValidationTimeout string   `yaml:"validation_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AttachConfig configures where received uploads live and how repeats are
// deduplicated.
type AttachConfig struct {
	Store  StoreConfig  `yaml:"store"`
	Dedupe DedupeConfig `yaml:"dedupe"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Dir    string      `yaml:"dir"`
	Minio  MinioConfig `yaml:"minio,omitempty"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type DedupeConfig struct {
	Driver string            `yaml:"driver"`
	TTL    time.Duration     `yaml:"ttl"`
	Redis  RedisDedupeStore  `yaml:"redis,omitempty"`
	Memory MemoryDedupeStore `yaml:"memory,omitempty"`
}

type RedisDedupeStore struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type MemoryDedupeStore struct {
	Cleanup time.Duration `yaml:"cleanup"`
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
			Path: "/editor",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			Port:      8080,
			StaticDir: "./web",
			PublicURL: "http://localhost:8080",
		},
		Upload: UploadConfig{
			Method:      "POST",
			FieldName:   "image",
			PastePolicy: "upload",
		},
		Security: SecurityConfig{
			MaxFileSize:       5 * 1024 * 1024,
			MaxPixels:         16777216,
			MaxWidth:          4096,
			MaxHeight:         4096,
			AllowedFormats:    []string{"jpeg", "jpg", "png", "webp", "gif"},
			EnableDeepScan:    true,
			ValidationTimeout: "10s",
		},
		Database: DatabaseConfig{
			Path: "data/inkwell.db",
		},
		Attach: AttachConfig{
			Store: StoreConfig{
				Driver: "disk",
				Dir:    "data/attachments",
			},
			Dedupe: DedupeConfig{
				Driver: "memory",
				TTL:    24 * time.Hour,
				Memory: MemoryDedupeStore{Cleanup: 10 * time.Minute},
			},
		},
	}
}
