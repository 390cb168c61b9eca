package repository

import (
	"errors"
	"fmt"
	"time"

	"jigtrack/cache"
	"jigtrack/repository/models"

	"gorm.io/gorm"
)

// SubmitValidationInput carries one pass/fail submission. JigID is optional:
// a validation without a jig is a pure assignment record. Timestamp, when
// supplied by the client, is reinterpreted into the canonical clock zone.
type SubmitValidationInput struct {
	JigID          *uint
	Actor          Actor
	AssignedTechID *uint
	Shift          string
	Outcome        string
	Comment        string
	Quantity       int
	Timestamp      *time.Time
	Completed      bool
}

// SubmitValidation records an inspection. Two identical submissions create
// two rows; repeated physical inspections are expected. When the outcome is
// NG and a jig is attached, a defect ticket is opened and the jig
// quarantined in the same transaction.
func (r *Repository) SubmitValidation(in SubmitValidationInput) (*models.Validation, *RepositoryError) {
	var validation *models.Validation
	var jigQR string

	rerr := r.withSequenceRecovery("validations", func() *RepositoryError {
		validation = nil
		dbTx := r.db.Begin()

		var jig *models.Jig
		if in.JigID != nil {
			jig = &models.Jig{}
			err := dbTx.First(jig, "jig_id = ?", *in.JigID).Error
			if err != nil {
				dbTx.Rollback()
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFoundError(CodeEquipmentNotFound, "Jig not found",
						fmt.Sprintf("jig with id %d does not exist", *in.JigID))
				}
				return databaseError(err)
			}

			var open models.NGReport
			err = dbTx.Where("jig_id = ? AND status IN ?", jig.ID,
				[]string{models.NGStatusPending, models.NGStatusInRepair}).First(&open).Error
			if err == nil {
				dbTx.Rollback()
				return quarantinedError(&open)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				dbTx.Rollback()
				return databaseError(err)
			}
			jigQR = jig.QRCode
		}

		ts := r.now()
		if in.Timestamp != nil {
			ts = r.canonicalTime(*in.Timestamp)
		}
		qty := in.Quantity
		if qty <= 0 {
			qty = 1
		}

		v := models.Validation{
			JigID:          in.JigID,
			TechnicianID:   in.Actor.TechnicianID,
			AssignedTechID: in.AssignedTechID,
			Timestamp:      ts,
			Shift:          in.Shift,
			Outcome:        in.Outcome,
			Comment:        in.Comment,
			Quantity:       qty,
			Completed:      in.Completed,
		}
		if err := dbTx.Create(&v).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}

		if jig != nil {
			if in.Outcome == models.OutcomeNG {
				comment := in.Comment
				if comment == "" {
					comment = "No comment"
				}
				report := models.NGReport{
					JigID:        jig.ID,
					TechnicianID: in.Actor.TechnicianID,
					FlaggedAt:    ts,
					Reason:       comment,
					Status:       models.NGStatusPending,
					ReportedBy:   in.Actor.Name,
				}
				if err := dbTx.Create(&report).Error; err != nil {
					dbTx.Rollback()
					return databaseError(err)
				}

				repair := models.Repair{
					JigID:          jig.ID,
					TechnicianID:   in.Actor.TechnicianID,
					Timestamp:      ts,
					Description:    fmt.Sprintf("Repair required: %s", comment),
					PreviousStatus: jig.Status,
					NewStatus:      models.JigStatusUnderRepair,
				}
				if err := dbTx.Create(&repair).Error; err != nil {
					dbTx.Rollback()
					return databaseError(err)
				}

				jig.Status = models.JigStatusUnderRepair
			}

			// Informational snapshot, updated on every submission.
			jig.LastValidationAt = &ts
			jig.LastValidationShift = in.Shift
			techID := in.Actor.TechnicianID
			jig.LastValidationTechID = &techID
			if err := dbTx.Save(jig).Error; err != nil {
				dbTx.Rollback()
				return databaseError(err)
			}
		}

		if err := dbTx.Commit().Error; err != nil {
			return commitError(err)
		}
		validation = &v
		return nil
	})
	if rerr != nil {
		return nil, rerr
	}

	if jigQR != "" {
		r.invalidate(cache.JigKey(jigQR))
	}

	r.runValidationHooks(validation)
	return validation, nil
}

// runValidationHooks renders the report artifact and sends the outcome
// notice. Both are best-effort; a timeout or rendering error never rolls
// back the committed validation.
func (r *Repository) runValidationHooks(v *models.Validation) {
	if v == nil || (r.renderer == nil && r.notifier == nil) {
		return
	}

	var tech models.Technician
	if err := r.db.First(&tech, "technician_id = ?", v.TechnicianID).Error; err != nil {
		r.logger.Error("Report hook: technician lookup failed", "validation_id", v.ID, "err", err)
		return
	}

	if r.renderer != nil {
		var jig *models.Jig
		if v.JigID != nil {
			jig, _ = r.GetJigByID(*v.JigID)
		}
		path, err := r.renderer.RenderValidation(v, jig, &tech)
		if err != nil {
			r.logger.Error("Report rendering failed", "validation_id", v.ID, "err", err)
		} else {
			r.logger.Info("Validation report rendered", "validation_id", v.ID, "path", path)
		}
	}

	if r.notifier != nil {
		if err := r.notifier.SendNotice(&tech, v.Outcome); err != nil {
			r.logger.Error("Outcome notice failed", "validation_id", v.ID, "err", err)
		}
	}

	if err := r.db.Model(&models.Validation{}).Where("validation_id = ?", v.ID).Update("synced", true).Error; err != nil {
		r.logger.Error("Failed to mark validation synced", "validation_id", v.ID, "err", err)
	}
}

// ListValidations returns validations with optional jig and shift filters.
func (r *Repository) ListValidations(jigID *uint, shift string, offset, limit int) ([]models.Validation, *RepositoryError) {
	query := r.db.Model(&models.Validation{})
	if jigID != nil {
		query = query.Where("jig_id = ?", *jigID)
	}
	if shift != "" {
		query = query.Where("shift = ?", shift)
	}
	var validations []models.Validation
	if err := query.Offset(offset).Limit(limit).Order("timestamp DESC").Find(&validations).Error; err != nil {
		return nil, databaseError(err)
	}
	return validations, nil
}

// CloseOutShift marks every still-incomplete validation in the shift's date
// window as NO_VALIDATED. Returns the number of rows finalized.
func (r *Repository) CloseOutShift(shift string, windowStart, windowEnd time.Time) (int64, *RepositoryError) {
	res := r.db.Model(&models.Validation{}).
		Where("shift = ? AND timestamp >= ? AND timestamp < ? AND completed = ?", shift, windowStart, windowEnd, false).
		Updates(map[string]interface{}{"outcome": models.OutcomeNoValidated, "completed": true})
	if res.Error != nil {
		return 0, databaseError(res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeShiftValidations deletes every validation row in the shift's date
// window, complete or not, assigned or not, and recovers the sequence.
// Finding zero rows is not an error; the purge is idempotent.
func (r *Repository) PurgeShiftValidations(shift string, windowStart, windowEnd time.Time) (int64, *RepositoryError) {
	dbTx := r.db.Begin()
	res := dbTx.Where("shift = ? AND timestamp >= ? AND timestamp < ?", shift, windowStart, windowEnd).
		Delete(&models.Validation{})
	if res.Error != nil {
		dbTx.Rollback()
		return 0, databaseError(res.Error)
	}
	if err := r.resetSequence(dbTx, "validations"); err != nil {
		dbTx.Rollback()
		return 0, databaseError(err)
	}
	if err := dbTx.Commit().Error; err != nil {
		return 0, commitError(err)
	}
	return res.RowsAffected, nil
}
