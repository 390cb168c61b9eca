package models

import "time"

// Adapter status values. Decommissioning never cascades to historical
// validation rows.
const (
	AdapterStatusActive         = "active"
	AdapterStatusDecommissioned = "decommissioned"
)

// Connector status values.
const (
	ConnectorStatusOK      = "OK"
	ConnectorStatusNG      = "NG"
	ConnectorStatusPending = "PENDING"
)

// Adapter represents a pluggable fixture attachment with named connectors
type Adapter struct {
	ID            uint   `gorm:"column:adapter_id;primaryKey"`
	QRCode        string `gorm:"column:qr_code;type:varchar(50);uniqueIndex;not null"`
	AdapterNumber string `gorm:"column:adapter_number;type:varchar(20);not null"`
	Model         string `gorm:"column:model;type:varchar(100);index;not null"`
	Status        string `gorm:"column:status;type:varchar(20);default:'active';index"`

	// DualConnector marks the 51+41 pin hardware variant.
	DualConnector bool `gorm:"column:dual_connector;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships. The adapter exclusively owns its connectors.
	Connectors  []Connector         `gorm:"foreignKey:AdapterID;constraint:OnDelete:CASCADE"`
	Validations []AdapterValidation `gorm:"foreignKey:AdapterID"`
}

// Connector is a named physical port on an adapter
type Connector struct {
	ID        uint     `gorm:"column:connector_id;primaryKey"`
	AdapterID uint     `gorm:"column:adapter_id;index;not null"`
	Adapter   *Adapter `gorm:"foreignKey:AdapterID"`
	Name      string   `gorm:"column:name;type:varchar(50);index;not null"`
	Status    string   `gorm:"column:status;type:varchar(20);default:'PENDING'"`

	// NG metadata, cleared when the connector transitions back to OK.
	NGFlaggedAt  *time.Time  `gorm:"column:ng_flagged_at"`
	NGTechID     *uint       `gorm:"column:ng_tech_id"`
	NGTech       *Technician `gorm:"foreignKey:NGTechID"`
	NGReportedBy string      `gorm:"column:ng_reported_by;type:varchar(100)"`
	NGComment    string      `gorm:"column:ng_comment;type:text"`

	// Last-validation provenance.
	LastValidatedAt      *time.Time  `gorm:"column:last_validated_at"`
	LastValidationTechID *uint       `gorm:"column:last_validation_tech_id"`
	LastValidationTech   *Technician `gorm:"foreignKey:LastValidationTechID"`
	LastValidationLine   string      `gorm:"column:last_validation_line;type:varchar(50)"`
	LastValidationShift  string      `gorm:"column:last_validation_shift;type:varchar(20)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// AdapterValidation is a batch validation event covering every connector of
// one adapter
type AdapterValidation struct {
	ID           uint        `gorm:"column:adapter_validation_id;primaryKey"`
	AdapterID    uint        `gorm:"column:adapter_id;index;not null"`
	Adapter      *Adapter    `gorm:"foreignKey:AdapterID"`
	TechnicianID uint        `gorm:"column:technician_id;index;not null"`
	Technician   *Technician `gorm:"foreignKey:TechnicianID"`

	Timestamp      time.Time `gorm:"column:timestamp;not null"`
	Shift          string    `gorm:"column:shift;type:varchar(20);not null"`
	OverallOutcome string    `gorm:"column:overall_outcome;type:varchar(10);not null"`
	Comment        string    `gorm:"column:comment;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`

	ConnectorResults []ConnectorValidation `gorm:"foreignKey:AdapterValidationID"`
}

// ConnectorValidation is one connector's result within a batch validation
type ConnectorValidation struct {
	ID                  uint       `gorm:"column:connector_validation_id;primaryKey"`
	AdapterValidationID uint       `gorm:"column:adapter_validation_id;index;not null"`
	ConnectorID         uint       `gorm:"column:connector_id;index;not null"`
	Connector           *Connector `gorm:"foreignKey:ConnectorID"`
	Outcome             string     `gorm:"column:outcome;type:varchar(10);not null"`
	Comment             string     `gorm:"column:comment;type:text"`
}
