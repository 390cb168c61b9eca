package storage

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jigtrack/repository/models"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(root, "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ReportFile{}))

	m, err := NewManager(db, cmtlog.NewNopLogger(),
		filepath.Join(root, "reports"), filepath.Join(root, "archived"), time.UTC)
	require.NoError(t, err)
	return m
}

// writeReport drops a file into the reports dir and indexes it with the
// given age in days.
func writeReport(t *testing.T, m *Manager, name string, ageDays int) models.ReportFile {
	t.Helper()
	path := filepath.Join(m.reportsDir, name)
	require.NoError(t, os.WriteFile(path, []byte("report body for "+name), 0o644))

	ts := time.Now().UTC().AddDate(0, 0, -ageDays)
	require.NoError(t, m.Index(name, path, ts, int64(len(name))))

	var rec models.ReportFile
	require.NoError(t, m.db.Where("file_name = ?", name).First(&rec).Error)
	return rec
}

func TestRenderValidation(t *testing.T) {
	m := newTestManager(t)

	v := &models.Validation{
		ID: 7, Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Shift: "A", Outcome: models.OutcomeOK, Quantity: 2,
	}
	jig := &models.Jig{JigNumber: "JIG-1", QRCode: "QR-1"}
	tech := &models.Technician{Name: "Alice", EmployeeNo: "EMP-1"}

	path, err := m.RenderValidation(v, jig, tech)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "VALIDATION REPORT #7")
	assert.Contains(t, string(body), "JIG-1 (QR-1)")
	assert.Contains(t, string(body), "Alice [EMP-1]")

	files, err := m.ListReports(0, 10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 2026, files[0].Year)
	assert.Equal(t, 3, files[0].Month)
}

func TestCompressOldReports(t *testing.T) {
	m := newTestManager(t)

	old := writeReport(t, m, "old_report.txt", 200)
	writeReport(t, m, "recent_report.txt", 10)

	compressed, err := m.CompressOldReports(180)
	require.NoError(t, err)
	assert.Equal(t, 1, compressed)

	// Original removed, archive holds the entry, index points inside it.
	assert.NoFileExists(t, filepath.Join(m.reportsDir, "old_report.txt"))
	assert.FileExists(t, filepath.Join(m.reportsDir, "recent_report.txt"))

	archiveName := filepath.Join(m.archiveDir,
		time.Now().UTC().AddDate(0, 0, -200).Format("reports_2006_01.zip"))
	reader, err := zip.OpenReader(archiveName)
	require.NoError(t, err)
	defer reader.Close()
	require.Len(t, reader.File, 1)
	assert.Equal(t, "old_report.txt", reader.File[0].Name)

	var rec models.ReportFile
	require.NoError(t, m.db.First(&rec, "report_file_id = ?", old.ID).Error)
	assert.Contains(t, rec.FilePath, ".zip")

	// A second pass has nothing left to do.
	compressed, err = m.CompressOldReports(180)
	require.NoError(t, err)
	assert.Equal(t, 0, compressed)
}

func TestCompressOldReports_ZipInFileName(t *testing.T) {
	m := newTestManager(t)

	// A ".zip" substring in the report name must not exempt it.
	writeReport(t, m, "jig.zipline-004.txt", 200)

	compressed, err := m.CompressOldReports(180)
	require.NoError(t, err)
	assert.Equal(t, 1, compressed)
	assert.NoFileExists(t, filepath.Join(m.reportsDir, "jig.zipline-004.txt"))
}

func TestCompressOldReports_AppendsToExistingArchive(t *testing.T) {
	m := newTestManager(t)

	writeReport(t, m, "first.txt", 200)
	_, err := m.CompressOldReports(180)
	require.NoError(t, err)

	writeReport(t, m, "second.txt", 200)
	compressed, err := m.CompressOldReports(180)
	require.NoError(t, err)
	assert.Equal(t, 1, compressed)

	archiveName := filepath.Join(m.archiveDir,
		time.Now().UTC().AddDate(0, 0, -200).Format("reports_2006_01.zip"))
	reader, err := zip.OpenReader(archiveName)
	require.NoError(t, err)
	defer reader.Close()
	assert.Len(t, reader.File, 2)
}

func TestCleanupOldReports(t *testing.T) {
	m := newTestManager(t)

	writeReport(t, m, "ancient.txt", 400)
	writeReport(t, m, "fresh.txt", 5)

	removed, err := m.CleanupOldReports(365)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, filepath.Join(m.reportsDir, "ancient.txt"))
	assert.FileExists(t, filepath.Join(m.reportsDir, "fresh.txt"))

	var count int64
	require.NoError(t, m.db.Model(&models.ReportFile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Idempotent.
	removed, err = m.CleanupOldReports(365)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCleanupOrphanedFiles(t *testing.T) {
	m := newTestManager(t)

	writeReport(t, m, "indexed.txt", 1)
	require.NoError(t, os.WriteFile(filepath.Join(m.reportsDir, "orphan.txt"), []byte("stray"), 0o644))

	removed, err := m.CleanupOrphanedFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, filepath.Join(m.reportsDir, "orphan.txt"))
	assert.FileExists(t, filepath.Join(m.reportsDir, "indexed.txt"))
}

func TestStatus(t *testing.T) {
	m := newTestManager(t)

	writeReport(t, m, "a.txt", 30)
	writeReport(t, m, "b.txt", 10)

	status, err := m.Status(85)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.IndexedFiles)
	assert.NotNil(t, status.OldestReport)
	assert.Greater(t, status.DiskTotalMB, uint64(0))
}

func TestDiskUsage(t *testing.T) {
	usage, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, usage.TotalBytes, uint64(0))
	assert.GreaterOrEqual(t, usage.UsedPercent, 0.0)
	assert.LessOrEqual(t, usage.UsedPercent, 100.0)
}
