// Package config resolves server and pipeline settings from an optional
// atlas.yml file plus environment variables. Environment wins over the
// file, the file wins over built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port      string   `yaml:"port"`
	Env       string   `yaml:"env"`
	OutRoot   string   `yaml:"out_root"`
	ReposRoot string   `yaml:"repos_root"`
	StatePath string   `yaml:"state_path"`
	Workers   int      `yaml:"workers"`
	MaxDepth  int      `yaml:"max_depth"`
	Gitignore bool     `yaml:"gitignore"`
	Timeout   Duration `yaml:"timeout"`

	Database DatabaseConfig `yaml:"database"`
	Artifact ArtifactConfig `yaml:"artifact"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CanUseS3 reports whether enough of the S3 settings are present to build
// a client. Enabled alone is not enough; incomplete credentials fall back
// to local storage.
func (c ArtifactConfig) CanUseS3() bool {
	return c.Enabled &&
		strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Duration parses yaml values like "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func Default() Config {
	return Config{
		Port:      ":8080",
		Env:       "local",
		OutRoot:   "output",
		ReposRoot: "repos",
		StatePath: "state/runs.json",
		Workers:   0,
		MaxDepth:  -1,
		Gitignore: true,
		Timeout:   Duration(10 * time.Minute),
	}
}

// Load reads path (or atlas.yml next to the binary when path is empty),
// then applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = firstNonEmpty(strings.TrimSpace(os.Getenv("ATLAS_CONFIG")), "atlas.yml")
	}
	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(&cfg)
	if strings.EqualFold(strings.TrimSpace(cfg.Env), "local") {
		applyLocalDefaults(&cfg)
	}
	cfg.Port = normalizePort(cfg.Port)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_OUT_ROOT")); v != "" {
		cfg.OutRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_REPOS_ROOT")); v != "" {
		cfg.ReposRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_STATE_PATH")); v != "" {
		cfg.StatePath = v
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_MAX_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_GITIGNORE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gitignore = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = Duration(d)
		}
	}
	if v := strings.TrimSpace(os.Getenv("ATLAS_PG_DSN")); v != "" {
		cfg.Database.DSN = v
	}

	if v := strings.TrimSpace(os.Getenv("ATLAS_S3_ENDPOINT")); v != "" {
		cfg.Artifact.Endpoint = v
		cfg.Artifact.Enabled = true
	}
	cfg.Artifact.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("ATLAS_S3_REGION")), cfg.Artifact.Region, "us-east-1")
	cfg.Artifact.AccessKey = firstNonEmpty(
		strings.TrimSpace(os.Getenv("ATLAS_S3_ACCESS_KEY")),
		strings.TrimSpace(os.Getenv("MINIO_ROOT_USER")),
		cfg.Artifact.AccessKey,
	)
	cfg.Artifact.SecretKey = firstNonEmpty(
		strings.TrimSpace(os.Getenv("ATLAS_S3_SECRET_KEY")),
		strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD")),
		cfg.Artifact.SecretKey,
	)
	cfg.Artifact.Bucket = firstNonEmpty(strings.TrimSpace(os.Getenv("ATLAS_S3_BUCKET")), cfg.Artifact.Bucket, "codeatlas-artifacts")
	if v := strings.TrimSpace(os.Getenv("ATLAS_S3_USE_SSL")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Artifact.UseSSL = b
		}
	}
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
