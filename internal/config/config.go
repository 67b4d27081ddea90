package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level expense-tracker.yaml configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	GCP        GCPConfig        `yaml:"gcp"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Auth       AuthConfig       `yaml:"auth"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Notion     NotionConfig     `yaml:"notion"`
	Locale     LocaleConfig     `yaml:"locale"`
	Storage    StorageConfig    `yaml:"storage"`
	Wizard     WizardConfig     `yaml:"wizard"`
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// GCPConfig locates the BigQuery dataset and GCS bucket.
// An empty bucket switches uploads to the local directory store.
type GCPConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Bucket  string `yaml:"bucket"`
}

type ExtractionConfig struct {
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	Secret        string        `yaml:"secret"`
	Issuer        string        `yaml:"issuer"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	WhitelistFile string        `yaml:"whitelist_file"`
	RolesFile     string        `yaml:"roles_file"`
}

type JobsConfig struct {
	Buffer  int `yaml:"buffer"`
	Workers int `yaml:"workers"`
}

// NotionConfig enables exporting persisted batches when both fields are set.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
}

type StorageConfig struct {
	LocalDir        string `yaml:"local_dir"`
	PreferencesFile string `yaml:"preferences_file"`
}

type WizardConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Default returns a Config with the values used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadBytes: 20 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		GCP: GCPConfig{
			Dataset: "finance",
		},
		Extraction: ExtractionConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer:        "expense-tracker",
			TokenTTL:      12 * time.Hour,
			WhitelistFile: "data/whitelist.json",
			RolesFile:     "data/roles.yaml",
		},
		Jobs: JobsConfig{
			Buffer:  100,
			Workers: 5,
		},
		Locale: LocaleConfig{
			Default: "en",
		},
		Storage: StorageConfig{
			LocalDir:        "data/uploads",
			PreferencesFile: "data/preferences.json",
		},
		Wizard: WizardConfig{
			IdleTimeout: 2 * time.Hour,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path skips the
// file. Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"PORT":               &c.Server.Port,
		"GCP_PROJECT":        &c.GCP.Project,
		"BQ_DATASET":         &c.GCP.Dataset,
		"GCS_BUCKET":         &c.GCP.Bucket,
		"GEMINI_MODEL":       &c.Extraction.Model,
		"AUTH_SECRET":        &c.Auth.Secret,
		"NOTION_TOKEN":       &c.Notion.Token,
		"NOTION_DATABASE_ID": &c.Notion.DatabaseID,
		"LOG_LEVEL":          &c.Log.Level,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("JOB_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing JOB_WORKERS: %w", err)
		}
		c.Jobs.Workers = n
	}
	return nil
}

// Validate reports configuration that the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	} else if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must be at least 32 bytes"))
	}
	if c.Jobs.Workers <= 0 {
		errs = append(errs, fmt.Errorf("jobs.workers must be positive, got %d", c.Jobs.Workers))
	}
	if c.Jobs.Buffer < 0 {
		errs = append(errs, fmt.Errorf("jobs.buffer must not be negative, got %d", c.Jobs.Buffer))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	return errors.Join(errs...)
}

// NotionEnabled reports whether batch export to Notion is configured.
func (c *Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
