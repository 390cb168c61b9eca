package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 180, cfg.Retention.CompressDays)
	assert.Equal(t, 365, cfg.Retention.CleanupDays)
	assert.Equal(t, 85.0, cfg.Disk.WarningPercent)
	assert.Equal(t, 95.0, cfg.Disk.CriticalPercent)
	assert.Equal(t, "02:00", cfg.RetentionTime)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http_port: "8080"
timezone: UTC
retention:
  compress_days: 30
  cleanup_days: 60
shift_schedule:
  monday:
    - shift: X
      close_at: "12:00"
      purge_at: "12:30"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.Retention.CompressDays)
	assert.Equal(t, 60, cfg.Retention.CleanupDays)

	triggers := cfg.TriggersFor(time.Monday)
	require.Len(t, triggers, 1)
	assert.Equal(t, "X", triggers[0].Shift)
	assert.Equal(t, "12:00", triggers[0].CloseAt)
}

func TestDefaultSchedule_WeekdayAndWeekend(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	weekday := cfg.TriggersFor(time.Wednesday)
	require.Len(t, weekday, 2)
	assert.Equal(t, "A", weekday[0].Shift)
	assert.False(t, weekday[0].WindowPreviousDay)
	assert.Equal(t, "B", weekday[1].Shift)
	assert.True(t, weekday[1].WindowPreviousDay, "the night shift window is the previous day")

	weekend := cfg.TriggersFor(time.Sunday)
	require.Len(t, weekend, 1)
	assert.Equal(t, "C", weekend[0].Shift)
}

func TestValidate_Rejections(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	bad := *base
	bad.Timezone = "Not/AZone"
	assert.Error(t, bad.Validate())

	bad = *base
	bad.Retention.CleanupDays = 10
	bad.Retention.CompressDays = 20
	assert.Error(t, bad.Validate())

	bad = *base
	bad.RetentionTime = "25:99"
	assert.Error(t, bad.Validate())

	bad = *base
	bad.ShiftSchedule = map[string][]ShiftTrigger{
		"monday": {{Shift: "A", CloseAt: "nope", PurgeAt: "19:00"}},
	}
	assert.Error(t, bad.Validate())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("18:30")
	require.NoError(t, err)
	assert.Equal(t, 18, c.Hour)
	assert.Equal(t, 30, c.Minute)

	_, err = ParseClock("24:00")
	assert.Error(t, err)
	_, err = ParseClock("garbage")
	assert.Error(t, err)
}

func TestClockMatches(t *testing.T) {
	c := Clock{Hour: 6, Minute: 30}
	loc := time.UTC
	assert.True(t, c.Matches(time.Date(2026, 3, 10, 6, 30, 45, 0, loc)), "matches for the whole minute")
	assert.False(t, c.Matches(time.Date(2026, 3, 10, 6, 31, 0, 0, loc)))
	assert.False(t, c.Matches(time.Date(2026, 3, 10, 18, 30, 0, 0, loc)))
}
