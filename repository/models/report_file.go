package models

import "time"

// ReportFile indexes a generated report artifact on disk. The retention
// scheduler compresses old entries into monthly archives and eventually
// deletes them together with their index rows.
type ReportFile struct {
	ID        uint      `gorm:"column:report_file_id;primaryKey"`
	FileName  string    `gorm:"column:file_name;type:varchar(255);index;not null"`
	FilePath  string    `gorm:"column:file_path;type:varchar(500);not null"`
	Timestamp time.Time `gorm:"column:timestamp;index;not null"`
	Year      int       `gorm:"column:year;not null"`
	Month     int       `gorm:"column:month;not null"`
	SizeBytes int64     `gorm:"column:size_bytes;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
