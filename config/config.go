// Package config loads botboard settings from a yaml file, the environment and flags,
// in increasing order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"
	"gopkg.in/yaml.v3"
)

// StoreKind selects the blob backend.
type StoreKind string

const (
	StoreHTTP   StoreKind = "http"
	StoreS3     StoreKind = "s3"
	StoreSQLite StoreKind = "sqlite"
	StoreMemory StoreKind = "memory"
)

const (
	defaultAddr       = ":8080"
	defaultPrefix     = "kosdaqpi/"
	defaultMaxHistory = 5000
	defaultSQLitePath = "botboard.db"
	defaultMonitorURL = "http://localhost:8080"
	defaultRefresh    = 15 * time.Second
	defaultTimezone   = "Asia/Seoul"
	defaultCertCache  = "cert-cache"
)

// RefreshChoices are the auto-refresh intervals the dashboards offer; 0 is off.
var RefreshChoices = []time.Duration{0, 5 * time.Second, 10 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second}

// Env var names.
const (
	EnvIngestToken = "DASHBOARD_INGEST_TOKEN"
	EnvBlobToken   = "BLOB_READ_WRITE_TOKEN"
	EnvBlobAccess  = "BLOB_ACCESS"
	EnvAddr        = "BOTBOARD_ADDR"
	EnvDashboard   = "DASHBOARD_URL"
)

type StoreConfig struct {
	Kind     StoreKind
	Prefix   string
	Access   blob.Access
	URL      string
	Token    string
	Bucket   string
	Region   string
	Endpoint string
	Path     string
}

type InfluxConfig struct {
	URL      string
	User     string
	Password string
	Database string
}

// Enabled reports whether snapshots should be mirrored to InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

type TLSConfig struct {
	Domains  []string
	CacheDir string
}

type MonitorConfig struct {
	URL     string
	Refresh time.Duration
}

// Config is the validated configuration.
type Config struct {
	Addr        string
	Store       StoreConfig
	IngestToken string
	MaxHistory  int
	JournalDir  string
	Location    *time.Location
	Influx      InfluxConfig
	TLS         TLSConfig
	Monitor     MonitorConfig
}

// ConfigTmp is the raw yaml document. Every field is optional.
type ConfigTmp struct {
	Addr          string         `yaml:"addr,omitempty"`
	Store         StoreConfigTmp `yaml:"store,omitempty"`
	IngestToken   string         `yaml:"ingest_token,omitempty"`
	MaxHistoryStr string         `yaml:"max_history,omitempty"`
	JournalDir    string         `yaml:"journal_dir,omitempty"`
	Timezone      string         `yaml:"timezone,omitempty"`
	Influx        InfluxTmp      `yaml:"influx,omitempty"`
	TLS           TLSTmp         `yaml:"tls,omitempty"`
	Monitor       MonitorTmp     `yaml:"monitor,omitempty"`
}

type StoreConfigTmp struct {
	Kind     string `yaml:"kind,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Access   string `yaml:"access,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

type InfluxTmp struct {
	URL      string `yaml:"url,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

type TLSTmp struct {
	Domains  []string `yaml:"domains,omitempty"`
	CacheDir string   `yaml:"cache_dir,omitempty"`
}

type MonitorTmp struct {
	URL        string `yaml:"url,omitempty"`
	RefreshStr string `yaml:"refresh,omitempty"`
}

// Load reads the yaml file at path (skipped when empty), applies environment variables
// through getenv and then the non-empty fields of overrides, and parses the result.
func Load(path string, getenv func(string) string, overrides ConfigTmp) (Config, error) {
	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	tmp.applyEnv(getenv)
	tmp.merge(overrides)

	return tmp.Parse()
}

func (c *ConfigTmp) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.IngestToken, EnvIngestToken)
	set(&c.Store.Token, EnvBlobToken)
	set(&c.Store.Access, EnvBlobAccess)
	set(&c.Addr, EnvAddr)
	set(&c.Monitor.URL, EnvDashboard)
}

func (c *ConfigTmp) merge(o ConfigTmp) {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&c.Addr, o.Addr)
	pick(&c.Store.Kind, o.Store.Kind)
	pick(&c.Store.Prefix, o.Store.Prefix)
	pick(&c.Store.Access, o.Store.Access)
	pick(&c.Store.URL, o.Store.URL)
	pick(&c.Store.Token, o.Store.Token)
	pick(&c.Store.Bucket, o.Store.Bucket)
	pick(&c.Store.Region, o.Store.Region)
	pick(&c.Store.Endpoint, o.Store.Endpoint)
	pick(&c.Store.Path, o.Store.Path)
	pick(&c.IngestToken, o.IngestToken)
	pick(&c.MaxHistoryStr, o.MaxHistoryStr)
	pick(&c.JournalDir, o.JournalDir)
	pick(&c.Timezone, o.Timezone)
	pick(&c.Influx.URL, o.Influx.URL)
	pick(&c.Influx.User, o.Influx.User)
	pick(&c.Influx.Password, o.Influx.Password)
	pick(&c.Influx.Database, o.Influx.Database)
	pick(&c.TLS.CacheDir, o.TLS.CacheDir)
	pick(&c.Monitor.URL, o.Monitor.URL)
	pick(&c.Monitor.RefreshStr, o.Monitor.RefreshStr)
	if len(o.TLS.Domains) > 0 {
		c.TLS.Domains = o.TLS.Domains
	}
}

// Parse validates the raw document and fills in defaults.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		Addr:        c.Addr,
		IngestToken: c.IngestToken,
		JournalDir:  c.JournalDir,
		Influx: InfluxConfig{
			URL:      c.Influx.URL,
			User:     c.Influx.User,
			Password: c.Influx.Password,
			Database: c.Influx.Database,
		},
		TLS: TLSConfig{
			Domains:  c.TLS.Domains,
			CacheDir: c.TLS.CacheDir,
		},
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if len(cfg.TLS.Domains) > 0 && cfg.TLS.CacheDir == "" {
		cfg.TLS.CacheDir = defaultCertCache
	}

	store, err := c.Store.parse()
	if err != nil {
		return Config{}, err
	}
	cfg.Store = store

	if c.MaxHistoryStr == "" {
		cfg.MaxHistory = defaultMaxHistory
	} else {
		n, err := strconv.Atoi(c.MaxHistoryStr)
		if err != nil || n <= 0 || n > defaultMaxHistory {
			return Config{}, errors.Errorf("incorrect 'max_history' param in yaml config (must be between 1 and %d): %q", defaultMaxHistory, c.MaxHistoryStr)
		}
		cfg.MaxHistory = n
	}

	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'timezone' param in yaml config")
	}

	if cfg.Influx.Enabled() && cfg.Influx.Database == "" {
		return Config{}, errors.New("'influx.database' is required when 'influx.url' is set")
	}

	cfg.Monitor.URL = c.Monitor.URL
	if cfg.Monitor.URL == "" {
		cfg.Monitor.URL = defaultMonitorURL
	}
	cfg.Monitor.Refresh = defaultRefresh
	if c.Monitor.RefreshStr != "" {
		d, err := ParseRefresh(c.Monitor.RefreshStr)
		if err != nil {
			return Config{}, err
		}
		cfg.Monitor.Refresh = d
	}

	return cfg, nil
}

func (s StoreConfigTmp) parse() (StoreConfig, error) {
	out := StoreConfig{
		Kind:     StoreKind(strings.ToLower(s.Kind)),
		Prefix:   s.Prefix,
		URL:      s.URL,
		Token:    s.Token,
		Bucket:   s.Bucket,
		Region:   s.Region,
		Endpoint: s.Endpoint,
		Path:     s.Path,
	}
	if out.Kind == "" {
		out.Kind = StoreHTTP
	}
	if out.Prefix == "" {
		out.Prefix = defaultPrefix
	}

	access, err := blob.ParseAccess(s.Access)
	if err != nil {
		return StoreConfig{}, errors.Wrap(err, "incorrect 'store.access' param")
	}
	out.Access = access

	switch out.Kind {
	case StoreSQLite:
		if out.Path == "" {
			out.Path = defaultSQLitePath
		}
	case StoreHTTP, StoreS3, StoreMemory:
	default:
		return StoreConfig{}, errors.Errorf("unknown store kind %q (want http, s3, sqlite or memory)", s.Kind)
	}
	return out, nil
}

// Validate checks the credentials the selected backend needs. Only commands that open
// the store call it, so monitor and push work without blob credentials.
func (s StoreConfig) Validate() error {
	switch s.Kind {
	case StoreHTTP:
		if s.Token == "" {
			return errors.Errorf("store kind %q needs a token (%s or 'store.token')", s.Kind, EnvBlobToken)
		}
	case StoreS3:
		if s.Bucket == "" {
			return errors.New("store kind \"s3\" needs 'store.bucket'")
		}
	}
	return nil
}

// ParseRefresh parses a refresh interval: "off", "0" or a duration such as "15s".
// Bare numbers are seconds.
func ParseRefresh(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "off" || s == "0" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, errors.Errorf("refresh interval must not be negative: %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("incorrect refresh interval %q (e.g. off, 15s, 1m)", s)
	}
	if d < 0 {
		return 0, errors.Errorf("refresh interval must not be negative: %q", s)
	}
	return d, nil
}

// Marshal renders the raw document as yaml.
func (c ConfigTmp) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "generate yaml")
	}
	return data, nil
}
