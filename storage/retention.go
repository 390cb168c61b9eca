package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"jigtrack/repository/models"
)

// CompressOldReports moves report files older than keepDays into monthly zip
// archives under the archive directory. Each file lands in the zip for its
// report month, the original is removed, and the index row's path is updated
// to point inside the archive. A failure on one file is logged and the batch
// continues.
func (m *Manager) CompressOldReports(keepDays int) (int, error) {
	cutoff := time.Now().In(m.loc).AddDate(0, 0, -keepDays)

	var candidates []models.ReportFile
	err := m.db.Where("timestamp < ? AND file_path NOT LIKE ?", cutoff, filepath.Join(m.archiveDir, "%")).
		Order("year, month").Find(&candidates).Error
	if err != nil {
		return 0, fmt.Errorf("list compression candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	byMonth := make(map[string][]models.ReportFile)
	for _, f := range candidates {
		key := fmt.Sprintf("reports_%04d_%02d.zip", f.Year, f.Month)
		byMonth[key] = append(byMonth[key], f)
	}

	compressed := 0
	for archiveName, files := range byMonth {
		archivePath := filepath.Join(m.archiveDir, archiveName)
		added, err := m.appendToArchive(archivePath, files)
		if err != nil {
			m.logger.Error("Monthly archive update failed", "archive", archiveName, "err", err)
			continue
		}
		compressed += added
	}
	m.logger.Info("Report compression pass finished", "candidates", len(candidates), "compressed", compressed)
	return compressed, nil
}

// appendToArchive adds files to a zip archive, creating it if absent. The
// zip format has no in-place append, so the archive is rewritten through a
// temp file and atomically renamed.
func (m *Manager) appendToArchive(archivePath string, files []models.ReportFile) (int, error) {
	tmpPath := archivePath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmpPath)

	writer := zip.NewWriter(out)
	existing := make(map[string]bool)

	if prev, err := zip.OpenReader(archivePath); err == nil {
		for _, entry := range prev.File {
			existing[entry.Name] = true
			if err := writer.Copy(entry); err != nil {
				prev.Close()
				writer.Close()
				out.Close()
				return 0, fmt.Errorf("carry over %s: %w", entry.Name, err)
			}
		}
		prev.Close()
	}

	added := 0
	var done []models.ReportFile
	for _, f := range files {
		if existing[f.FileName] {
			done = append(done, f)
			continue
		}
		if err := addFileEntry(writer, f.FilePath, f.FileName); err != nil {
			m.logger.Error("Skipping report during compression", "file", f.FileName, "err", err)
			continue
		}
		added++
		done = append(done, f)
	}

	if err := writer.Close(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return 0, err
	}

	for _, f := range done {
		newPath := archivePath + string(filepath.Separator) + f.FileName
		if err := m.db.Model(&models.ReportFile{}).Where("report_file_id = ?", f.ID).
			Update("file_path", newPath).Error; err != nil {
			m.logger.Error("Index update failed after compression", "file", f.FileName, "err", err)
			continue
		}
		if err := os.Remove(f.FilePath); err != nil && !os.IsNotExist(err) {
			m.logger.Error("Original report removal failed", "file", f.FilePath, "err", err)
		}
	}
	return added, nil
}

func addFileEntry(writer *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// CleanupOldReports deletes report files older than keepDays along with
// their index rows. Files already inside an archive lose only the index row;
// the monthly zip itself is removed once every member is past retention.
func (m *Manager) CleanupOldReports(keepDays int) (int, error) {
	cutoff := time.Now().In(m.loc).AddDate(0, 0, -keepDays)

	var expired []models.ReportFile
	if err := m.db.Where("timestamp < ?", cutoff).Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("list expired reports: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	removed := 0
	for _, f := range expired {
		if !isArchiveMember(f.FilePath) {
			if err := os.Remove(f.FilePath); err != nil && !os.IsNotExist(err) {
				m.logger.Error("Expired report removal failed", "file", f.FilePath, "err", err)
				continue
			}
		}
		if err := m.db.Delete(&models.ReportFile{}, "report_file_id = ?", f.ID).Error; err != nil {
			m.logger.Error("Index row removal failed", "file", f.FileName, "err", err)
			continue
		}
		removed++
	}

	m.removeEmptyArchives(cutoff)
	m.logger.Info("Report cleanup pass finished", "expired", len(expired), "removed", removed)
	return removed, nil
}

// removeEmptyArchives deletes monthly zips whose month is entirely past the
// cutoff and which no index row references anymore.
func (m *Manager) removeEmptyArchives(cutoff time.Time) {
	entries, err := os.ReadDir(m.archiveDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zip" {
			continue
		}
		var year, month int
		if _, err := fmt.Sscanf(entry.Name(), "reports_%d_%d.zip", &year, &month); err != nil {
			continue
		}
		monthEnd := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, m.loc).AddDate(0, 1, 0)
		if !monthEnd.Before(cutoff) {
			continue
		}
		archivePath := filepath.Join(m.archiveDir, entry.Name())
		var remaining int64
		if err := m.db.Model(&models.ReportFile{}).
			Where("file_path LIKE ?", archivePath+"%").Count(&remaining).Error; err != nil || remaining > 0 {
			continue
		}
		if err := os.Remove(archivePath); err != nil {
			m.logger.Error("Archive removal failed", "archive", entry.Name(), "err", err)
		}
	}
}

// CleanupOrphanedFiles removes files in the reports directory that no index
// row references.
func (m *Manager) CleanupOrphanedFiles() (int, error) {
	var indexed []models.ReportFile
	if err := m.db.Find(&indexed).Error; err != nil {
		return 0, fmt.Errorf("load report index: %w", err)
	}
	known := make(map[string]bool, len(indexed))
	for _, f := range indexed {
		known[filepath.Clean(f.FilePath)] = true
	}

	removed := 0
	entries, err := os.ReadDir(m.reportsDir)
	if err != nil {
		return 0, fmt.Errorf("read reports dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Clean(filepath.Join(m.reportsDir, entry.Name()))
		if known[path] {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.logger.Error("Orphan removal failed", "file", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("Orphaned report files purged", "count", removed)
	}
	return removed, nil
}

func isArchiveMember(path string) bool {
	dir := filepath.Dir(path)
	return filepath.Ext(dir) == ".zip"
}
