package repository

import (
	"errors"
	"fmt"

	"jigtrack/repository/models"

	"gorm.io/gorm"
)

// CreateTechnician registers an operator account.
func (r *Repository) CreateTechnician(username, name, employeeNo, role string) (*models.Technician, *RepositoryError) {
	tech := models.Technician{
		Username:   username,
		Name:       name,
		EmployeeNo: employeeNo,
		Role:       role,
		Active:     true,
	}
	rerr := r.withSequenceRecovery("technicians", func() *RepositoryError {
		if err := r.db.Create(&tech).Error; err != nil {
			return databaseError(err)
		}
		return nil
	})
	if rerr != nil {
		if rerr.Code == PgErrUniqueViolation {
			return nil, &RepositoryError{
				Code:    CodeConflict,
				Message: "Technician already exists",
				Detail:  fmt.Sprintf("username %s or employee number %s is taken", username, employeeNo),
			}
		}
		return nil, rerr
	}
	return &tech, nil
}

// GetTechnicianByID looks an operator up by primary key.
func (r *Repository) GetTechnicianByID(id uint) (*models.Technician, *RepositoryError) {
	var tech models.Technician
	err := r.db.First(&tech, "technician_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Technician not found",
				fmt.Sprintf("technician with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}
	return &tech, nil
}

// GetTechnicianByUsername looks an operator up by login name.
func (r *Repository) GetTechnicianByUsername(username string) (*models.Technician, *RepositoryError) {
	var tech models.Technician
	err := r.db.Where("username = ?", username).First(&tech).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Technician not found",
				fmt.Sprintf("technician %s does not exist", username))
		}
		return nil, databaseError(err)
	}
	return &tech, nil
}

// ListTechnicians returns active operators.
func (r *Repository) ListTechnicians() ([]models.Technician, *RepositoryError) {
	var techs []models.Technician
	if err := r.db.Where("active = ?", true).Order("name").Find(&techs).Error; err != nil {
		return nil, databaseError(err)
	}
	return techs, nil
}

// SetTechnicianShift records the shift an operator is currently working.
func (r *Repository) SetTechnicianShift(id uint, shift string) (*models.Technician, *RepositoryError) {
	tech, rerr := r.GetTechnicianByID(id)
	if rerr != nil {
		return nil, rerr
	}
	tech.CurrentShift = shift
	if err := r.db.Save(tech).Error; err != nil {
		return nil, databaseError(err)
	}
	return tech, nil
}
