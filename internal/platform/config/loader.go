package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"inkwell-server-go/internal/platform/errors"
)

// Loader reads configuration from a yaml file, layering dotenv and
// environment overrides on top of the built-in defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader with dotenv enabled and the default search path.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load resolves the config file, unmarshals it over the defaults, applies
// environment overrides, and validates the result. A missing file is not an
// error; the defaults are returned with path "defaults".
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using process environment")
		}
	}

	cfg := Default()
	path := l.resolvePath()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.load", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.load", "failed to parse config file", err)
		}
	} else {
		path = "defaults"
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if env := os.Getenv("INKWELL_CONFIG"); env != "" {
		return env
	}
	for _, candidate := range []string{".config.yaml", "config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyEnvOverrides layers a small set of deploy-time variables over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INKWELL_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("INKWELL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INKWELL_UPLOAD_URL"); v != "" {
		cfg.Upload.URL = v
	}
	if v := os.Getenv("INKWELL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INKWELL_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("INKWELL_AUTH_SECRET"); v != "" {
		cfg.Web.AuthSecret = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "config.validate",
			fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
		return errors.New(errors.KindConfig, "config.validate",
			fmt.Sprintf("web port %d out of range", cfg.Web.Port))
	}
	switch cfg.Upload.PastePolicy {
	case "", "upload", "inline":
	default:
		return errors.New(errors.KindConfig, "config.validate",
			fmt.Sprintf("unknown paste policy %q", cfg.Upload.PastePolicy))
	}
	return nil
}
