package models

import "time"

// NGReport states. A jig may have at most one report in an open state
// (pending or in_repair) at any time.
const (
	NGStatusPending       = "pending"
	NGStatusInRepair      = "in_repair"
	NGStatusRepaired      = "repaired"
	NGStatusFalsePositive = "false_positive"
	NGStatusDiscarded     = "discarded"
)

// NGReport is the defect ticket quarantining a jig until repaired,
// discarded, or dismissed as a false positive
type NGReport struct {
	ID           uint        `gorm:"column:ng_report_id;primaryKey"`
	JigID        uint        `gorm:"column:jig_id;index;not null"`
	Jig          *Jig        `gorm:"foreignKey:JigID"`
	TechnicianID uint        `gorm:"column:technician_id;index;not null"`
	Technician   *Technician `gorm:"foreignKey:TechnicianID"`

	FlaggedAt time.Time `gorm:"column:flagged_at;not null"`
	Reason    string    `gorm:"column:reason;type:text;not null"`
	Category  string    `gorm:"column:category;type:varchar(50);default:'technical failure'"`
	Priority  string    `gorm:"column:priority;type:varchar(20);default:'medium'"` // low, medium, high, critical
	Status    string    `gorm:"column:status;type:varchar(20);default:'pending';index"`

	RepairedAt   *time.Time  `gorm:"column:repaired_at"`
	RepairTechID *uint       `gorm:"column:repair_tech_id"`
	RepairTech   *Technician `gorm:"foreignKey:RepairTechID"`
	RepairNotes  string      `gorm:"column:repair_notes;type:text"`
	ReportedBy   string      `gorm:"column:reported_by;type:varchar(100)"`

	// PhotoEvidence holds base64 image data attached when the defect is
	// flagged; cleared when the report closes as repaired or false_positive.
	PhotoEvidence *string `gorm:"column:photo_evidence;type:text"`

	Synced    bool      `gorm:"column:synced;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Open reports whether the report still quarantines its jig.
func (r *NGReport) Open() bool {
	return r.Status == NGStatusPending || r.Status == NGStatusInRepair
}
