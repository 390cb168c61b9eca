package repository

import (
	"errors"
	"fmt"

	"jigtrack/cache"
	"jigtrack/repository/models"

	"gorm.io/gorm"
)

// ngTransitions is the allowed NG report state machine. Terminal states have
// no outgoing edges.
var ngTransitions = map[string][]string{
	models.NGStatusPending:  {models.NGStatusInRepair, models.NGStatusRepaired, models.NGStatusFalsePositive, models.NGStatusDiscarded},
	models.NGStatusInRepair: {models.NGStatusRepaired, models.NGStatusFalsePositive},
}

func transitionAllowed(from, to string) bool {
	for _, next := range ngTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OpenNGReportInput carries a manually filed defect ticket.
type OpenNGReportInput struct {
	JigID         uint
	Actor         Actor
	Reason        string
	Category      string
	Priority      string
	PhotoEvidence *string
}

// OpenNGReport files a defect ticket against a jig and quarantines it. At
// most one open report may exist per jig.
func (r *Repository) OpenNGReport(in OpenNGReportInput) (*models.NGReport, *RepositoryError) {
	var report *models.NGReport
	var jigQR string

	rerr := r.withSequenceRecovery("ng_reports", func() *RepositoryError {
		dbTx := r.db.Begin()

		var jig models.Jig
		err := dbTx.First(&jig, "jig_id = ?", in.JigID).Error
		if err != nil {
			dbTx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError(CodeEquipmentNotFound, "Jig not found",
					fmt.Sprintf("jig with id %d does not exist", in.JigID))
			}
			return databaseError(err)
		}

		var existing models.NGReport
		err = dbTx.Where("jig_id = ? AND status IN ?", in.JigID,
			[]string{models.NGStatusPending, models.NGStatusInRepair}).First(&existing).Error
		if err == nil {
			dbTx.Rollback()
			return &RepositoryError{
				Code:    CodeDuplicateOpenReport,
				Message: "An open NG report already exists for this jig",
				Detail:  fmt.Sprintf("report %d is %s", existing.ID, existing.Status),
				Report:  &existing,
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			dbTx.Rollback()
			return databaseError(err)
		}

		rep := models.NGReport{
			JigID:         in.JigID,
			TechnicianID:  in.Actor.TechnicianID,
			FlaggedAt:     r.now(),
			Reason:        in.Reason,
			Category:      in.Category,
			Priority:      in.Priority,
			Status:        models.NGStatusPending,
			ReportedBy:    in.Actor.Name,
			PhotoEvidence: in.PhotoEvidence,
		}
		if rep.Category == "" {
			rep.Category = "technical failure"
		}
		if rep.Priority == "" {
			rep.Priority = "medium"
		}
		if err := dbTx.Create(&rep).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}

		jig.Status = models.JigStatusUnderRepair
		if err := dbTx.Save(&jig).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}

		if err := dbTx.Commit().Error; err != nil {
			return commitError(err)
		}
		report = &rep
		jigQR = jig.QRCode
		return nil
	})
	if rerr != nil {
		return nil, rerr
	}

	r.invalidate(cache.JigKey(jigQR))
	return report, nil
}

// TransitionNGReport moves a report through the repair workflow. Closing as
// repaired or false_positive reactivates the jig and clears photo evidence;
// false_positive records no repair timestamp.
func (r *Repository) TransitionNGReport(id uint, newStatus string, actor Actor, notes string) (*models.NGReport, *RepositoryError) {
	dbTx := r.db.Begin()

	var report models.NGReport
	err := dbTx.First(&report, "ng_report_id = ?", id).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "NG report not found",
				fmt.Sprintf("NG report with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}

	if !transitionAllowed(report.Status, newStatus) {
		dbTx.Rollback()
		return nil, invalidTransitionError(report.Status, newStatus)
	}

	report.Status = newStatus
	if notes != "" {
		report.RepairNotes = notes
	}

	reactivate := newStatus == models.NGStatusRepaired || newStatus == models.NGStatusFalsePositive
	if reactivate {
		report.PhotoEvidence = nil
		techID := actor.TechnicianID
		report.RepairTechID = &techID
		if newStatus == models.NGStatusRepaired {
			now := r.now()
			report.RepairedAt = &now
		}
	}

	if err := dbTx.Save(&report).Error; err != nil {
		dbTx.Rollback()
		return nil, databaseError(err)
	}

	var jigQR string
	if reactivate {
		var jig models.Jig
		if err := dbTx.First(&jig, "jig_id = ?", report.JigID).Error; err != nil {
			dbTx.Rollback()
			return nil, databaseError(err)
		}
		jig.Status = models.JigStatusActive
		if err := dbTx.Save(&jig).Error; err != nil {
			dbTx.Rollback()
			return nil, databaseError(err)
		}
		jigQR = jig.QRCode
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	if jigQR != "" {
		r.invalidate(cache.JigKey(jigQR))
	}
	r.logger.Info("NG report transitioned", "ng_report_id", id, "status", newStatus, "actor", actor.Name)
	return &report, nil
}

// DeleteNGReport removes a report. Only discarded reports may be deleted.
func (r *Repository) DeleteNGReport(id uint) *RepositoryError {
	var report models.NGReport
	err := r.db.First(&report, "ng_report_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(CodeEquipmentNotFound, "NG report not found",
				fmt.Sprintf("NG report with id %d does not exist", id))
		}
		return databaseError(err)
	}
	if report.Status != models.NGStatusDiscarded {
		return &RepositoryError{
			Code:    CodeInvalidState,
			Message: "Only discarded NG reports can be deleted",
			Detail:  fmt.Sprintf("report %d is %s", id, report.Status),
		}
	}
	if err := r.db.Delete(&report).Error; err != nil {
		return databaseError(err)
	}
	return nil
}

// ListNGReports returns reports with optional status and category filters.
func (r *Repository) ListNGReports(status, category string, offset, limit int) ([]models.NGReport, *RepositoryError) {
	query := r.db.Model(&models.NGReport{}).Preload("Technician").Preload("Jig")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var reports []models.NGReport
	if err := query.Offset(offset).Limit(limit).Order("flagged_at DESC").Find(&reports).Error; err != nil {
		return nil, databaseError(err)
	}
	return reports, nil
}

// NGStats summarizes defect tickets by status.
func (r *Repository) NGStats() (map[string]int64, *RepositoryError) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.NGReport{}).
		Select("status, count(ng_report_id) as count").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, databaseError(err)
	}
	stats := map[string]int64{
		"total":                       0,
		models.NGStatusPending:       0,
		models.NGStatusInRepair:      0,
		models.NGStatusRepaired:      0,
		models.NGStatusFalsePositive: 0,
		models.NGStatusDiscarded:     0,
	}
	for _, r := range rows {
		stats["total"] += r.Count
		stats[r.Status] = r.Count
	}
	return stats, nil
}
