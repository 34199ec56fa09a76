package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/irfansharif/blog/pkg/docstore"
)

const defaultConfigTmpl = `# Blog configuration file.

# Identities allowed to delete articles. Empty means the built-in
# administrator identity.
admins = []

# Collection the article list is read from.
read_collection = %q

# Collection new articles are written to, and deleted from. {uid} expands to
# the signed in identity.
write_collection = %q

# How long status messages stay on screen.
status_timeout = "3s"

# Directory for the embedded document store.
data_dir = %q

# Log file and level (debug, info, warn, error).
log_file = %q
log_level = "info"
`

const (
	DefaultReadCollection  = "articles"
	DefaultWriteCollection = "artifacts/{uid}/public/data/articles"
	DefaultStatusTimeout   = 3 * time.Second

	// EnvServiceConfig holds the JSON document service configuration.
	EnvServiceConfig = "BLOG_SERVICE_CONFIG"
	// EnvInitialAuthToken holds an optional one-time custom token.
	EnvInitialAuthToken = "BLOG_INITIAL_AUTH_TOKEN"
)

type Config struct {
	Admins          []string      `toml:"admins"`
	ReadCollection  string        `toml:"read_collection"`
	WriteCollection string        `toml:"write_collection"`
	StatusTimeout   time.Duration `toml:"status_timeout"`
	DataDir         string        `toml:"data_dir"`
	LogFile         string        `toml:"log_file"`
	LogLevel        string        `toml:"log_level"`
}

// Dir returns the blog configuration directory (~/.blog).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".blog"), nil
}

// Path returns the path to the blog config file.
func Path() string {
	dir, _ := Dir()
	return filepath.Join(dir, "blog.toml")
}

// Load reads the config from ~/.blog/blog.toml, creating a default config
// file if one doesn't exist.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	path := filepath.Join(dir, "blog.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Config{}, fmt.Errorf("could not create config directory: %w", err)
		}
		contents := fmt.Sprintf(defaultConfigTmpl,
			DefaultReadCollection, DefaultWriteCollection,
			filepath.Join(dir, "data"), filepath.Join(dir, "blog.log"))
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			return Config{}, fmt.Errorf("could not write default config: %w", err)
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse %s: %w", path, err)
	}
	if err := cfg.setDefaults(dir); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) setDefaults(dir string) error {
	if c.ReadCollection == "" {
		c.ReadCollection = DefaultReadCollection
	}
	if c.WriteCollection == "" {
		c.WriteCollection = DefaultWriteCollection
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = DefaultStatusTimeout
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(dir, "data")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dir, "blog.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	var err error
	if c.DataDir, err = expandHome(c.DataDir); err != nil {
		return err
	}
	c.LogFile, err = expandHome(c.LogFile)
	return err
}

func (c *Config) validate() error {
	if _, err := docstore.CollectionPath(c.ReadCollection); err != nil {
		return fmt.Errorf("read_collection: %w", err)
	}
	if _, err := docstore.CollectionPath(WritePath(c.WriteCollection, "uid")); err != nil {
		return fmt.Errorf("write_collection: %w", err)
	}
	return nil
}

// expandHome expands a leading ~/ in p.
func expandHome(p string) (string, error) {
	if len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}

// WritePath expands {uid} in a write collection template.
func WritePath(tmpl, uid string) string {
	return strings.ReplaceAll(tmpl, "{uid}", uid)
}

// Service is the document service configuration, provided as JSON in
// BLOG_SERVICE_CONFIG.
type Service struct {
	APIKey       string `json:"apiKey"`
	ProjectID    string `json:"projectId"`
	Backend      string `json:"backend"`
	DSN          string `json:"dsn"`
	PollInterval string `json:"pollInterval"`
}

// Backends understood by the blog client.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options converts the service configuration into docstore options. The
// sqlite backend defaults to a database file in dataDir.
func (s Service) Options(dataDir string) (docstore.Options, error) {
	opts := docstore.Options{
		APIKey:    s.APIKey,
		ProjectID: s.ProjectID,
		DSN:       s.DSN,
	}
	if opts.ProjectID == "" {
		opts.ProjectID = "default"
	}
	if s.PollInterval != "" {
		d, err := time.ParseDuration(s.PollInterval)
		if err != nil {
			return docstore.Options{}, fmt.Errorf("pollInterval: %w", err)
		}
		opts.PollInterval = d
	}
	if opts.DSN == "" && s.BackendName() == BackendSQLite {
		opts.DSN = filepath.Join(dataDir, "blog.db")
	}
	return opts, nil
}

// BackendName returns the configured backend, defaulting to sqlite.
func (s Service) BackendName() string {
	if s.Backend == "" {
		return BackendSQLite
	}
	return s.Backend
}

// Env is the environment-provided part of the configuration.
type Env struct {
	Service          Service
	InitialAuthToken string
}

// LoadEnv loads .env from the working directory, if present, and reads the
// service configuration and initial auth token from the environment. A
// missing service configuration is not an error here: callers decide what
// a config without an api key means.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	env := Env{InitialAuthToken: os.Getenv(EnvInitialAuthToken)}
	raw := strings.TrimSpace(os.Getenv(EnvServiceConfig))
	if raw == "" {
		return env, nil
	}
	if err := json.Unmarshal([]byte(raw), &env.Service); err != nil {
		return Env{}, fmt.Errorf("could not parse %s: %w", EnvServiceConfig, err)
	}
	return env, nil
}
