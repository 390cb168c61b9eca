package models

import "time"

// Jig status values. Status transitions are driven only by the validation
// intake and the NG lifecycle.
const (
	JigStatusActive      = "active"
	JigStatusUnderRepair = "under_repair"
)

// Jig represents a production test fixture tracked by QR code
type Jig struct {
	ID           uint   `gorm:"column:jig_id;primaryKey"`
	QRCode       string `gorm:"column:qr_code;type:varchar(50);uniqueIndex;not null"`
	JigNumber    string `gorm:"column:jig_number;type:varchar(20);not null"`
	Type         string `gorm:"column:type;type:varchar(20);not null"` // manual, semiautomatic
	CurrentModel string `gorm:"column:current_model;type:varchar(100)"`
	Status       string `gorm:"column:status;type:varchar(20);default:'active'"`

	// Last-validation snapshot, informational only. Updated on every
	// submission regardless of outcome.
	LastValidationAt     *time.Time `gorm:"column:last_validation_at"`
	LastValidationShift  string     `gorm:"column:last_validation_shift;type:varchar(20)"`
	LastValidationTechID *uint      `gorm:"column:last_validation_tech_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Validations []Validation `gorm:"foreignKey:JigID"`
	Repairs     []Repair     `gorm:"foreignKey:JigID"`
	NGReports   []NGReport   `gorm:"foreignKey:JigID"`
}

// Repair is the repair-tracking note opened alongside an NG validation
type Repair struct {
	ID             uint        `gorm:"column:repair_id;primaryKey"`
	JigID          uint        `gorm:"column:jig_id;index;not null"`
	Jig            *Jig        `gorm:"foreignKey:JigID"`
	TechnicianID   uint        `gorm:"column:technician_id;index;not null"`
	Technician     *Technician `gorm:"foreignKey:TechnicianID"`
	Timestamp      time.Time   `gorm:"column:timestamp;not null"`
	Description    string      `gorm:"column:description;type:text;not null"`
	PreviousStatus string      `gorm:"column:previous_status;type:varchar(20);not null"`
	NewStatus      string      `gorm:"column:new_status;type:varchar(20);not null"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
}
