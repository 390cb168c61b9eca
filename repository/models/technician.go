package models

import "time"

// Technician represents the operators who perform validations and repairs
type Technician struct {
	ID           uint      `gorm:"column:technician_id;primaryKey"`
	Username     string    `gorm:"column:username;type:varchar(50);uniqueIndex;not null"`
	Name         string    `gorm:"column:name;type:varchar(100);not null"`
	EmployeeNo   string    `gorm:"column:employee_no;type:varchar(20);uniqueIndex;not null"`
	CurrentShift string    `gorm:"column:current_shift;type:varchar(20);default:'A'"`
	Role         string    `gorm:"column:role;type:varchar(50);default:'technician'"`
	Active       bool      `gorm:"column:active;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Validations []Validation `gorm:"foreignKey:TechnicianID"`
}
