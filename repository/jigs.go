package repository

import (
	"errors"
	"fmt"

	"jigtrack/cache"
	"jigtrack/repository/models"

	"gorm.io/gorm"
)

// Actor is the authenticated identity performing an operation. Admin is a
// capability flag resolved at the API boundary; core logic never re-checks
// identities by name.
type Actor struct {
	TechnicianID uint
	Name         string
	Admin        bool
}

// EquipmentView is the denormalized jig detail served from cache.
type EquipmentView struct {
	Jig         models.Jig          `json:"jig"`
	Validations []models.Validation `json:"validations"`
	Repairs     []models.Repair     `json:"repairs"`
	NGReports   []models.NGReport   `json:"ng_reports"`
}

// CreateJig registers a new jig. QR codes are unique.
func (r *Repository) CreateJig(jig *models.Jig) (*models.Jig, *RepositoryError) {
	var existing models.Jig
	err := r.db.Where("qr_code = ?", jig.QRCode).First(&existing).Error
	if err == nil {
		return nil, &RepositoryError{
			Code:    CodeConflict,
			Message: "QR code already exists",
			Detail:  fmt.Sprintf("jig with QR code %s already registered", jig.QRCode),
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, databaseError(err)
	}

	if jig.Status == "" {
		jig.Status = models.JigStatusActive
	}
	rerr := r.withSequenceRecovery("jigs", func() *RepositoryError {
		if err := r.db.Create(jig).Error; err != nil {
			return databaseError(err)
		}
		return nil
	})
	if rerr != nil {
		return nil, rerr
	}
	return jig, nil
}

// GetJigByID loads a single jig.
func (r *Repository) GetJigByID(id uint) (*models.Jig, *RepositoryError) {
	var jig models.Jig
	err := r.db.First(&jig, "jig_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Jig not found",
				fmt.Sprintf("jig with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}
	return &jig, nil
}

// GetEquipmentView returns the jig detail view for a QR code, transparently
// cache-backed.
func (r *Repository) GetEquipmentView(qrCode string) (*EquipmentView, *RepositoryError) {
	key := cache.JigKey(qrCode)
	if r.cache != nil {
		var view EquipmentView
		if r.cache.Get(key, &view) {
			return &view, nil
		}
	}

	var jig models.Jig
	err := r.db.Where("qr_code = ?", qrCode).First(&jig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Jig not found",
				fmt.Sprintf("jig with QR code %s does not exist", qrCode))
		}
		return nil, databaseError(err)
	}

	view := EquipmentView{Jig: jig}
	if err := r.db.Where("jig_id = ?", jig.ID).Order("timestamp DESC").Find(&view.Validations).Error; err != nil {
		return nil, databaseError(err)
	}
	if err := r.db.Where("jig_id = ?", jig.ID).Order("timestamp DESC").Find(&view.Repairs).Error; err != nil {
		return nil, databaseError(err)
	}
	if err := r.db.Where("jig_id = ?", jig.ID).Preload("Technician").Order("flagged_at DESC").Find(&view.NGReports).Error; err != nil {
		return nil, databaseError(err)
	}

	if r.cache != nil {
		r.cache.Set(key, &view)
	}
	return &view, nil
}

// ListJigs returns jigs with offset pagination.
func (r *Repository) ListJigs(offset, limit int) ([]models.Jig, *RepositoryError) {
	var jigs []models.Jig
	if err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&jigs).Error; err != nil {
		return nil, databaseError(err)
	}
	return jigs, nil
}

// UpdateJig updates a jig's descriptive fields.
func (r *Repository) UpdateJig(id uint, jigNumber, jigType, currentModel string) (*models.Jig, *RepositoryError) {
	jig, rerr := r.GetJigByID(id)
	if rerr != nil {
		return nil, rerr
	}
	if jigNumber != "" {
		jig.JigNumber = jigNumber
	}
	if jigType != "" {
		jig.Type = jigType
	}
	if currentModel != "" {
		jig.CurrentModel = currentModel
	}
	if err := r.db.Save(jig).Error; err != nil {
		return nil, databaseError(err)
	}
	r.invalidate(cache.JigKey(jig.QRCode))
	return jig, nil
}

// DeleteJig performs the administrative bulk wipe of a jig and all its
// history. Requires the admin capability. Sequences of the purged tables are
// recovered after the delete.
func (r *Repository) DeleteJig(id uint, actor Actor) *RepositoryError {
	if !actor.Admin {
		return &RepositoryError{
			Code:    CodeInvalidState,
			Message: "Administrative capability required",
			Detail:  "deleting a jig and its history requires the admin capability",
		}
	}

	jig, rerr := r.GetJigByID(id)
	if rerr != nil {
		return rerr
	}

	dbTx := r.db.Begin()
	for _, del := range []struct {
		table string
		model interface{}
	}{
		{"validations", &models.Validation{}},
		{"repairs", &models.Repair{}},
		{"ng_reports", &models.NGReport{}},
	} {
		if err := dbTx.Where("jig_id = ?", id).Delete(del.model).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}
		if err := r.resetSequence(dbTx, del.table); err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}
	}
	if err := dbTx.Delete(&models.Jig{}, "jig_id = ?", id).Error; err != nil {
		dbTx.Rollback()
		return databaseError(err)
	}
	if err := dbTx.Commit().Error; err != nil {
		return commitError(err)
	}

	r.invalidate(cache.JigKey(jig.QRCode))
	r.logger.Info("Jig and history deleted", "jig_id", id, "qr_code", jig.QRCode, "actor", actor.Name)
	return nil
}
