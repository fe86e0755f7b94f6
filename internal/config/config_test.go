package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjunminji/ubcxlsxtoics/internal/ics"
)

const sampleYAML = `
listen: ":9000"
timezone: America/Toronto
skip_breaks: true
holidays:
  - name: Thanksgiving
    start: "2025-10-13"
  - name: Midterm Break
    start: "2025-11-10"
    end: "2025-11-12"
holiday_feeds:
  - id: ubc-dates
    url: https://example.edu/dates.ics
  - name: faculty
    url: https://example.edu/faculty.ics
watch:
  input: /data/export.xlsx
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want.Listen, cfg.Listen)
	assert.Equal(t, "America/Vancouver", cfg.Timezone)
	assert.Equal(t, "ubc-xlsx-to-ics", cfg.UIDDomain)
	assert.Equal(t, 10, cfg.MaxUploadMB)
	assert.Equal(t, "*/15 * * * *", cfg.Watch.Schedule)
	assert.False(t, cfg.SkipBreaks)
	assert.False(t, cfg.BasicAuth.Enabled())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	t.Setenv("UBCICS_WATCH__OUTPUT", "/data/courses.ics")
	t.Setenv("UBCICS_UID_DOMAIN", "example.edu")
	t.Setenv("UBCICS_MAX_UPLOAD_MB", "25")

	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "America/Toronto", cfg.Timezone)
	assert.True(t, cfg.SkipBreaks)
	assert.Equal(t, "/data/export.xlsx", cfg.Watch.Input)
	assert.Equal(t, "/data/courses.ics", cfg.Watch.Output)
	assert.Equal(t, "*/15 * * * *", cfg.Watch.Schedule)
	assert.Equal(t, "example.edu", cfg.UIDDomain)
	assert.Equal(t, int64(25<<20), cfg.MaxUploadBytes())
	require.Len(t, cfg.Holidays, 2)
	assert.Equal(t, "2025-11-12", cfg.Holidays[1].End)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []ics.Source{
		{ID: "ubc-dates", URL: "https://example.edu/dates.ics"},
		{ID: "faculty", URL: "https://example.edu/faculty.ics"},
	}, cfg.FeedSources())
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	_, err := Load(writeFile(t, "listen: [unclosed"))
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	p, err := cfg.Policy()
	require.NoError(t, err)

	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }
	assert.True(t, p.IsExcluded(d(2025, 9, 1)), "built-in Labour Day")
	assert.True(t, p.IsExcluded(d(2025, 10, 13)))
	assert.True(t, p.IsExcluded(d(2025, 11, 11)))
	assert.True(t, p.IsExcluded(d(2026, 2, 18)), "reading week via skip_breaks")
	assert.False(t, p.IsExcluded(d(2025, 11, 13)))

	cfg.SkipBreaks = false
	p, err = cfg.Policy()
	require.NoError(t, err)
	assert.False(t, p.IsExcluded(d(2026, 2, 18)))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Holidays = []HolidayConfig{{Name: "bad", Start: "2025-10-13", End: "2025-10-01"}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.HolidayFeeds = []FeedConfig{{ID: "a", URL: "https://x"}, {ID: "a", URL: "https://y"}}
	assert.Error(t, cfg.Validate())

	cfg.HolidayFeeds = []FeedConfig{{ID: "a"}}
	assert.Error(t, cfg.Validate())
}

func TestSaveAndInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Init(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = Init(path)
	assert.Error(t, err)

	cfg.SkipBreaks = true
	cfg.BasicAuth = BasicAuthConfig{Username: "admin", Password: "hunter2"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.SkipBreaks)
	assert.True(t, loaded.BasicAuth.Enabled())
	assert.Equal(t, "hunter2", loaded.BasicAuth.Password)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
