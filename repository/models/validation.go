package models

import "time"

// Validation outcomes. NO_VALIDATED is stamped by the shift closeout on
// validations still incomplete when the shift ends.
const (
	OutcomeOK          = "OK"
	OutcomeNG          = "NG"
	OutcomeNoValidated = "NO_VALIDATED"
)

// Validation is an immutable inspection event. JigID is nullable: a
// validation may be a pure assignment record with no jig attached yet.
type Validation struct {
	ID           uint        `gorm:"column:validation_id;primaryKey"`
	JigID        *uint       `gorm:"column:jig_id;index"`
	Jig          *Jig        `gorm:"foreignKey:JigID"`
	TechnicianID uint        `gorm:"column:technician_id;index;not null"`
	Technician   *Technician `gorm:"foreignKey:TechnicianID"`

	// AssignedTechID supports the assignment workflow: a validation may be
	// assigned to a technician before being carried out.
	AssignedTechID *uint       `gorm:"column:assigned_tech_id;index"`
	AssignedTech   *Technician `gorm:"foreignKey:AssignedTechID"`

	Timestamp time.Time `gorm:"column:timestamp;index;not null"`
	Shift     string    `gorm:"column:shift;type:varchar(20);index;not null"`
	Outcome   string    `gorm:"column:outcome;type:varchar(20);not null"`
	Comment   string    `gorm:"column:comment;type:text"`
	Quantity  int       `gorm:"column:qty;default:1"`
	Completed bool      `gorm:"column:completed;default:false"`
	Synced    bool      `gorm:"column:synced;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
