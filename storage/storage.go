package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jigtrack/repository/models"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"gorm.io/gorm"
)

// Manager owns the report file tree and its database index. Reports live
// under ReportsDir; monthly archives under ArchiveDir.
type Manager struct {
	db         *gorm.DB
	logger     cmtlog.Logger
	reportsDir string
	archiveDir string
	loc        *time.Location
}

// NewManager creates a Manager and ensures both directories exist.
func NewManager(db *gorm.DB, logger cmtlog.Logger, reportsDir, archiveDir string, loc *time.Location) (*Manager, error) {
	for _, dir := range []string{reportsDir, archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Manager{
		db:         db,
		logger:     logger,
		reportsDir: reportsDir,
		archiveDir: archiveDir,
		loc:        loc,
	}, nil
}

// RenderValidation writes a plain-text validation report into the reports
// tree and registers it in the index. It satisfies the repository's
// ReportRenderer hook.
func (m *Manager) RenderValidation(v *models.Validation, jig *models.Jig, tech *models.Technician) (string, error) {
	ts := v.Timestamp.In(m.loc)
	name := fmt.Sprintf("validation_%d_%s.txt", v.ID, ts.Format("20060102_150405"))
	path := filepath.Join(m.reportsDir, name)

	jigLabel := "unassigned"
	if jig != nil {
		jigLabel = fmt.Sprintf("%s (%s)", jig.JigNumber, jig.QRCode)
	}
	techLabel := "unknown"
	if tech != nil {
		techLabel = fmt.Sprintf("%s [%s]", tech.Name, tech.EmployeeNo)
	}

	body := fmt.Sprintf(
		"VALIDATION REPORT #%d\nTimestamp: %s\nJig: %s\nTechnician: %s\nShift: %s\nOutcome: %s\nQuantity: %d\nComment: %s\n",
		v.ID, ts.Format(time.RFC3339), jigLabel, techLabel, v.Shift, v.Outcome, v.Quantity, v.Comment,
	)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", name, err)
	}

	if err := m.Index(name, path, ts, int64(len(body))); err != nil {
		return "", err
	}
	return path, nil
}

// Index records a file in the report_files table.
func (m *Manager) Index(fileName, filePath string, ts time.Time, size int64) error {
	record := models.ReportFile{
		FileName:  fileName,
		FilePath:  filePath,
		Timestamp: ts,
		Year:      ts.Year(),
		Month:     int(ts.Month()),
		SizeBytes: size,
	}
	if err := m.db.Create(&record).Error; err != nil {
		return fmt.Errorf("index report %s: %w", fileName, err)
	}
	return nil
}

// ListReports returns index rows, newest first.
func (m *Manager) ListReports(offset, limit int) ([]models.ReportFile, error) {
	var files []models.ReportFile
	err := m.db.Order("timestamp DESC").Offset(offset).Limit(limit).Find(&files).Error
	return files, err
}

// Status summarizes the report tree for the status endpoint.
type Status struct {
	IndexedFiles  int64      `json:"indexed_files"`
	IndexedBytes  int64      `json:"indexed_bytes"`
	OldestReport  *time.Time `json:"oldest_report,omitempty"`
	DiskUsedPct   float64    `json:"disk_used_pct"`
	DiskTotalMB   uint64     `json:"disk_total_mb"`
	DiskFreeMB    uint64     `json:"disk_free_mb"`
	UnderPressure bool       `json:"under_pressure"`
}

// Status reports index counts plus disk occupancy of the reports volume.
func (m *Manager) Status(warningPercent float64) (*Status, error) {
	st := &Status{}
	if err := m.db.Model(&models.ReportFile{}).Count(&st.IndexedFiles).Error; err != nil {
		return nil, err
	}
	var totals struct{ Bytes int64 }
	if err := m.db.Model(&models.ReportFile{}).
		Select("COALESCE(SUM(size_bytes), 0) as bytes").Scan(&totals).Error; err != nil {
		return nil, err
	}
	st.IndexedBytes = totals.Bytes

	if st.IndexedFiles > 0 {
		var oldest models.ReportFile
		if err := m.db.Order("timestamp ASC").First(&oldest).Error; err == nil {
			t := oldest.Timestamp
			st.OldestReport = &t
		}
	}

	usage, err := DiskUsage(m.reportsDir)
	if err != nil {
		m.logger.Error("Disk usage probe failed", "dir", m.reportsDir, "err", err)
		return st, nil
	}
	st.DiskUsedPct = usage.UsedPercent
	st.DiskTotalMB = usage.TotalBytes / (1024 * 1024)
	st.DiskFreeMB = usage.FreeBytes / (1024 * 1024)
	st.UnderPressure = usage.UsedPercent >= warningPercent
	return st, nil
}
