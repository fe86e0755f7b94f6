package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/minjunminji/ubcxlsxtoics/internal/holiday"
	"github.com/minjunminji/ubcxlsxtoics/internal/ics"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
)

// EnvPrefix scopes environment overrides. A double underscore separates
// nesting levels, so UBCICS_WATCH__INPUT sets watch.input.
const EnvPrefix = "UBCICS_"

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/Vancouver"
	defaultUIDDomain   = "ubc-xlsx-to-ics"
	defaultMaxUploadMB = 10
	defaultSchedule    = "*/15 * * * *"
	defaultLogLevel    = "info"
)

// HolidayConfig is an extra excluded date or date range.
type HolidayConfig struct {
	Name  string `koanf:"name" yaml:"name" json:"name"`
	Start string `koanf:"start" yaml:"start" json:"start"`
	// End is inclusive. Empty means a single day.
	End string `koanf:"end" yaml:"end,omitempty" json:"end,omitempty"`
}

// FeedConfig is an ICS subscription whose events become excluded dates.
type FeedConfig struct {
	ID   string `koanf:"id" yaml:"id" json:"id"`
	Name string `koanf:"name" yaml:"name" json:"name"`
	URL  string `koanf:"url" yaml:"url" json:"url"`
}

// WatchConfig drives the scheduled re-conversion of a local export.
type WatchConfig struct {
	Input    string `koanf:"input" yaml:"input" json:"input"`
	Output   string `koanf:"output" yaml:"output" json:"output"`
	Schedule string `koanf:"schedule" yaml:"schedule" json:"schedule"`
}

// BasicAuthConfig enables HTTP Basic Auth on every endpoint except /health
// when both fields are set.
type BasicAuthConfig struct {
	Username string `koanf:"username" yaml:"username" json:"username"`
	Password string `koanf:"password" yaml:"password" json:"-"`
}

func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web API.
	Listen string `koanf:"listen" yaml:"listen" json:"listen"`

	// Timezone is the IANA zone course times are expressed in.
	Timezone string `koanf:"timezone" yaml:"timezone" json:"timezone"`

	// UIDDomain is appended to generated event UIDs.
	UIDDomain string `koanf:"uid_domain" yaml:"uid_domain" json:"uid_domain"`

	// SkipBreaks adds Winter Break and Reading Week to the excluded dates.
	SkipBreaks bool `koanf:"skip_breaks" yaml:"skip_breaks" json:"skip_breaks"`

	Holidays     []HolidayConfig `koanf:"holidays" yaml:"holidays" json:"holidays"`
	HolidayFeeds []FeedConfig    `koanf:"holiday_feeds" yaml:"holiday_feeds" json:"holiday_feeds"`

	// CacheDir stores the last good body of each holiday feed.
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir" json:"cache_dir"`

	MaxUploadMB int `koanf:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`

	Watch     WatchConfig     `koanf:"watch" yaml:"watch" json:"watch"`
	BasicAuth BasicAuthConfig `koanf:"basic_auth" yaml:"basic_auth" json:"basic_auth"`
	LogLevel  string          `koanf:"log_level" yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		UIDDomain:    defaultUIDDomain,
		Holidays:     []HolidayConfig{},
		HolidayFeeds: []FeedConfig{},
		CacheDir:     filepath.Join(os.TempDir(), "ubcics-feed-cache"),
		MaxUploadMB:  defaultMaxUploadMB,
		Watch:        WatchConfig{Schedule: defaultSchedule},
		LogLevel:     defaultLogLevel,
	}
}

// Normalize fills in zero values so partially-filled files still work.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.UIDDomain == "" {
		c.UIDDomain = d.UIDDomain
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = d.MaxUploadMB
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = d.Watch.Schedule
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Holidays == nil {
		c.Holidays = []HolidayConfig{}
	}
	if c.HolidayFeeds == nil {
		c.HolidayFeeds = []FeedConfig{}
	}
}

// Validate reports settings that would fail later at conversion time.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.HolidayPeriods(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.HolidayFeeds))
	for i, f := range c.HolidayFeeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("holiday_feeds[%d]: url is empty", i)
		}
		id := f.sourceID(i)
		if seen[id] {
			return fmt.Errorf("holiday_feeds[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HolidayPeriods returns the configured exclusions, including the term
// breaks when SkipBreaks is set.
func (c *Config) HolidayPeriods() ([]holiday.Period, error) {
	var out []holiday.Period
	if c.SkipBreaks {
		out = append(out, holiday.Breaks()...)
	}
	for i, h := range c.Holidays {
		name := h.Name
		if name == "" {
			name = fmt.Sprintf("holiday %d", i+1)
		}
		p, err := holiday.ParsePeriod(name, h.Start, h.End)
		if err != nil {
			return nil, fmt.Errorf("holidays[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Policy is the built-in table plus HolidayPeriods and extra.
func (c *Config) Policy(extra ...holiday.Period) (*holiday.Policy, error) {
	periods, err := c.HolidayPeriods()
	if err != nil {
		return nil, err
	}
	return holiday.Default().With(append(periods, extra...)...), nil
}

// FeedSources maps HolidayFeeds to fetcher sources.
func (c *Config) FeedSources() []ics.Source {
	out := make([]ics.Source, 0, len(c.HolidayFeeds))
	for i, f := range c.HolidayFeeds {
		out = append(out, ics.Source{ID: f.sourceID(i), URL: f.URL})
	}
	return out
}

func (f FeedConfig) sourceID(i int) string {
	switch {
	case f.ID != "":
		return f.ID
	case f.Name != "":
		return f.Name
	default:
		return fmt.Sprintf("feed-%d", i+1)
	}
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load layers defaults, the YAML file at path (optional) and UBCICS_*
// environment variables, in that order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
			appLog.Info("config file not found, using defaults and environment", "path", path)
		} else {
			appLog.Debug("loaded configuration", "path", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

// Init writes a default config to path unless a file is already there.
func Init(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ubcics-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
