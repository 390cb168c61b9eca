package repository

import (
	"errors"
	"fmt"
	"time"

	"jigtrack/cache"
	"jigtrack/config"
	"jigtrack/repository/models"

	"gorm.io/gorm"
)

// CreateAdapterInput provisions an adapter. When Connectors is empty the
// fixed per-model connector set applies; an unknown model with no explicit
// connectors is a hard error, never a silent guess.
type CreateAdapterInput struct {
	QRCode        string
	AdapterNumber string
	Model         string
	Connectors    []string
}

// CreateAdapter registers an adapter and its connector children.
func (r *Repository) CreateAdapter(in CreateAdapterInput) (*models.Adapter, *RepositoryError) {
	var existing models.Adapter
	err := r.db.Where("qr_code = ?", in.QRCode).First(&existing).Error
	if err == nil {
		return nil, &RepositoryError{
			Code:    CodeConflict,
			Message: "QR code already exists",
			Detail:  fmt.Sprintf("adapter with QR code %s already registered", in.QRCode),
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, databaseError(err)
	}

	names := in.Connectors
	if len(names) == 0 {
		names = config.ConnectorSet(in.Model)
	}
	if len(names) == 0 {
		return nil, &RepositoryError{
			Code:    CodeInvalidState,
			Message: "No connector set for model",
			Detail:  fmt.Sprintf("model %s has no known connector set; specify connectors explicitly", in.Model),
		}
	}

	var adapter models.Adapter
	rerr := r.withSequenceRecovery("adapters", func() *RepositoryError {
		dbTx := r.db.Begin()
		adapter = models.Adapter{
			QRCode:        in.QRCode,
			AdapterNumber: in.AdapterNumber,
			Model:         in.Model,
			Status:        models.AdapterStatusActive,
		}
		if err := dbTx.Create(&adapter).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}
		for _, name := range names {
			connector := models.Connector{
				AdapterID: adapter.ID,
				Name:      name,
				Status:    models.ConnectorStatusPending,
			}
			if err := dbTx.Create(&connector).Error; err != nil {
				dbTx.Rollback()
				return databaseError(err)
			}
		}
		if err := dbTx.Commit().Error; err != nil {
			return commitError(err)
		}
		return nil
	})
	if rerr != nil {
		return nil, rerr
	}

	if err := r.db.Preload("Connectors").First(&adapter, "adapter_id = ?", adapter.ID).Error; err != nil {
		return nil, databaseError(err)
	}
	return &adapter, nil
}

// GetAdapterByQR returns an adapter with its connectors, cache-backed.
func (r *Repository) GetAdapterByQR(qrCode string) (*models.Adapter, *RepositoryError) {
	key := cache.AdapterKey(qrCode)
	if r.cache != nil {
		var cached models.Adapter
		if r.cache.Get(key, &cached) {
			return &cached, nil
		}
	}

	var adapter models.Adapter
	err := r.db.Preload("Connectors").Where("qr_code = ?", qrCode).First(&adapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Adapter not found",
				fmt.Sprintf("adapter with QR code %s does not exist", qrCode))
		}
		return nil, databaseError(err)
	}

	if r.cache != nil {
		r.cache.Set(key, &adapter)
	}
	return &adapter, nil
}

// ListAdapters returns adapters filtered by model and status.
func (r *Repository) ListAdapters(model, status string, offset, limit int, withConnectors bool) ([]models.Adapter, *RepositoryError) {
	query := r.db.Model(&models.Adapter{})
	if withConnectors {
		query = query.Preload("Connectors")
	}
	if model != "" {
		query = query.Where("model LIKE ?", "%"+model+"%")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var adapters []models.Adapter
	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&adapters).Error; err != nil {
		return nil, databaseError(err)
	}
	return adapters, nil
}

// UpdateAdapter changes an adapter's descriptive fields. Connectors are not
// reprovisioned on a model change; the physical ports stay what they are.
func (r *Repository) UpdateAdapter(id uint, adapterNumber, model string) (*models.Adapter, *RepositoryError) {
	var adapter models.Adapter
	err := r.db.First(&adapter, "adapter_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Adapter not found",
				fmt.Sprintf("adapter with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}
	if adapterNumber != "" {
		adapter.AdapterNumber = adapterNumber
	}
	if model != "" {
		adapter.Model = model
	}
	if err := r.db.Save(&adapter).Error; err != nil {
		return nil, databaseError(err)
	}
	r.invalidate(cache.AdapterKey(adapter.QRCode))
	return &adapter, nil
}

// DecommissionAdapter takes an adapter out of service. Historical validation
// rows are left intact; only the status changes.
func (r *Repository) DecommissionAdapter(id uint) (*models.Adapter, *RepositoryError) {
	var adapter models.Adapter
	err := r.db.First(&adapter, "adapter_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Adapter not found",
				fmt.Sprintf("adapter with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}
	adapter.Status = models.AdapterStatusDecommissioned
	if err := r.db.Save(&adapter).Error; err != nil {
		return nil, databaseError(err)
	}
	r.invalidate(cache.AdapterKey(adapter.QRCode))
	return &adapter, nil
}

// ToggleDualConnector flips the 51+41 pin hardware variant flag.
func (r *Repository) ToggleDualConnector(id uint) (*models.Adapter, *RepositoryError) {
	var adapter models.Adapter
	err := r.db.First(&adapter, "adapter_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Adapter not found",
				fmt.Sprintf("adapter with id %d does not exist", id))
		}
		return nil, databaseError(err)
	}
	adapter.DualConnector = !adapter.DualConnector
	if err := r.db.Save(&adapter).Error; err != nil {
		return nil, databaseError(err)
	}
	r.invalidate(cache.AdapterKey(adapter.QRCode))
	return &adapter, nil
}

// applyConnectorStatus mutates one connector row in place. The NG free-text
// comment is stored only on the connector the caller directly addressed.
func applyConnectorStatus(conn *models.Connector, newStatus string, actor Actor, comment string, at time.Time, addressed bool) {
	previous := conn.Status
	conn.Status = newStatus
	conn.LastValidatedAt = &at
	techID := actor.TechnicianID
	conn.LastValidationTechID = &techID

	switch newStatus {
	case models.ConnectorStatusNG:
		conn.NGFlaggedAt = &at
		conn.NGTechID = &techID
		conn.NGReportedBy = actor.Name
		if addressed {
			conn.NGComment = comment
		}
	case models.ConnectorStatusOK:
		if previous == models.ConnectorStatusNG {
			conn.NGFlaggedAt = nil
			conn.NGTechID = nil
			conn.NGReportedBy = ""
			conn.NGComment = ""
		}
	}
}

// SetConnectorStatus updates a connector's status and, on shared-pin adapter
// models, applies the identical status to its hardware-paired connector in
// the same transaction.
func (r *Repository) SetConnectorStatus(connectorID uint, newStatus string, actor Actor, comment string) ([]models.Connector, *RepositoryError) {
	if newStatus != models.ConnectorStatusOK && newStatus != models.ConnectorStatusNG {
		return nil, &RepositoryError{
			Code:    CodeInvalidState,
			Message: "Connector status must be OK or NG",
			Detail:  fmt.Sprintf("got %q", newStatus),
		}
	}

	dbTx := r.db.Begin()

	var conn models.Connector
	err := dbTx.First(&conn, "connector_id = ?", connectorID).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeConnectorNotFound, "Connector not found",
				fmt.Sprintf("connector with id %d does not exist", connectorID))
		}
		return nil, databaseError(err)
	}

	var adapter models.Adapter
	if err := dbTx.First(&adapter, "adapter_id = ?", conn.AdapterID).Error; err != nil {
		dbTx.Rollback()
		return nil, databaseError(err)
	}

	now := r.now()
	applyConnectorStatus(&conn, newStatus, actor, comment, now, true)
	if err := dbTx.Save(&conn).Error; err != nil {
		dbTx.Rollback()
		return nil, databaseError(err)
	}
	touched := []models.Connector{conn}

	if pairedName, ok := config.PairedConnector(adapter.Model, conn.Name); ok {
		var paired models.Connector
		err := dbTx.Where("adapter_id = ? AND name = ?", conn.AdapterID, pairedName).First(&paired).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			dbTx.Rollback()
			return nil, databaseError(err)
		}
		if err == nil {
			applyConnectorStatus(&paired, newStatus, actor, comment, now, false)
			if err := dbTx.Save(&paired).Error; err != nil {
				dbTx.Rollback()
				return nil, databaseError(err)
			}
			touched = append(touched, paired)
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	r.invalidate(cache.AdapterKey(adapter.QRCode))
	r.logger.Info("Connector status updated", "connector_id", connectorID, "status", newStatus,
		"propagated", len(touched) > 1, "actor", actor.Name)
	return touched, nil
}

// BulkMarkResult reports a bulk OK sweep: ids updated, ids not found, and
// ids whose update could not be written. Every input id lands in exactly
// one of the three.
type BulkMarkResult struct {
	Updated []uint `json:"updated"`
	Missing []uint `json:"missing"`
	Failed  []uint `json:"failed,omitempty"`
}

// BulkMarkConnectorsOK marks a batch of connectors OK with line/shift/time
// provenance, clearing stale NG metadata. Each connector is updated in its
// own transaction; a missing id is reported, not fatal to the rest.
func (r *Repository) BulkMarkConnectorsOK(connectorIDs []uint, actor Actor, line, shift string, asOf *time.Time) (*BulkMarkResult, *RepositoryError) {
	if len(connectorIDs) == 0 {
		return nil, &RepositoryError{
			Code:    CodeInvalidState,
			Message: "No connectors to update",
			Detail:  "connector id list is empty",
		}
	}

	at := r.now()
	if asOf != nil {
		at = r.canonicalTime(*asOf)
	}

	result := &BulkMarkResult{}
	adapterQRs := make(map[string]bool)

	for _, id := range connectorIDs {
		var conn models.Connector
		err := r.db.Preload("Adapter").First(&conn, "connector_id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Missing = append(result.Missing, id)
				continue
			}
			return nil, databaseError(err)
		}

		qr := ""
		if conn.Adapter != nil {
			qr = conn.Adapter.QRCode
		}
		conn.Adapter = nil

		dbTx := r.db.Begin()
		applyConnectorStatus(&conn, models.ConnectorStatusOK, actor, "", at, true)
		if line != "" {
			conn.LastValidationLine = line
		}
		if shift != "" {
			conn.LastValidationShift = shift
		}
		if err := dbTx.Save(&conn).Error; err != nil {
			dbTx.Rollback()
			r.logger.Error("Bulk OK sweep: connector update failed", "connector_id", id, "err", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := dbTx.Commit().Error; err != nil {
			r.logger.Error("Bulk OK sweep: commit failed", "connector_id", id, "err", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Updated = append(result.Updated, id)
		if qr != "" {
			adapterQRs[qr] = true
		}
	}

	for qr := range adapterQRs {
		r.invalidate(cache.AdapterKey(qr))
	}
	return result, nil
}

// SubmitAdapterValidationInput is a batch validation covering every
// connector of one adapter.
type SubmitAdapterValidationInput struct {
	AdapterID      uint
	Actor          Actor
	Shift          string
	OverallOutcome string
	Comment        string
	Connectors     []ConnectorResult
}

// ConnectorResult is one connector's outcome within the batch.
type ConnectorResult struct {
	ConnectorID uint
	Outcome     string
	Comment     string
}

// SubmitAdapterValidation records a batch validation. Every connector of the
// adapter must be covered. Connector NG metadata follows the same rules as
// SetConnectorStatus but without pair propagation: the batch addresses every
// connector explicitly.
func (r *Repository) SubmitAdapterValidation(in SubmitAdapterValidationInput) (*models.AdapterValidation, *RepositoryError) {
	var adapter models.Adapter
	err := r.db.Preload("Connectors").First(&adapter, "adapter_id = ?", in.AdapterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeEquipmentNotFound, "Adapter not found",
				fmt.Sprintf("adapter with id %d does not exist", in.AdapterID))
		}
		return nil, databaseError(err)
	}

	owned := make(map[uint]*models.Connector, len(adapter.Connectors))
	for i := range adapter.Connectors {
		owned[adapter.Connectors[i].ID] = &adapter.Connectors[i]
	}
	covered := make(map[uint]bool, len(in.Connectors))
	for _, res := range in.Connectors {
		if res.Outcome != models.ConnectorStatusOK && res.Outcome != models.ConnectorStatusNG {
			return nil, &RepositoryError{
				Code:    CodeInvalidState,
				Message: "Connector outcome must be OK or NG",
				Detail:  fmt.Sprintf("connector %d: got %q", res.ConnectorID, res.Outcome),
			}
		}
		covered[res.ConnectorID] = true
	}
	if len(covered) != len(owned) {
		return nil, &RepositoryError{
			Code:    CodeInvalidState,
			Message: "Every connector of the adapter must be validated",
			Detail:  fmt.Sprintf("adapter has %d connectors, validation covers %d", len(owned), len(covered)),
		}
	}
	for id := range covered {
		if _, ok := owned[id]; !ok {
			return nil, notFoundError(CodeConnectorNotFound, "Connector not found",
				fmt.Sprintf("connector %d does not belong to adapter %d", id, in.AdapterID))
		}
	}

	now := r.now()
	var validation models.AdapterValidation

	rerr := r.withSequenceRecovery("adapter_validations", func() *RepositoryError {
		dbTx := r.db.Begin()
		validation = models.AdapterValidation{
			AdapterID:      in.AdapterID,
			TechnicianID:   in.Actor.TechnicianID,
			Timestamp:      now,
			Shift:          in.Shift,
			OverallOutcome: in.OverallOutcome,
			Comment:        in.Comment,
		}
		if err := dbTx.Create(&validation).Error; err != nil {
			dbTx.Rollback()
			return databaseError(err)
		}

		for _, res := range in.Connectors {
			detail := models.ConnectorValidation{
				AdapterValidationID: validation.ID,
				ConnectorID:         res.ConnectorID,
				Outcome:             res.Outcome,
				Comment:             res.Comment,
			}
			if err := dbTx.Create(&detail).Error; err != nil {
				dbTx.Rollback()
				return databaseError(err)
			}

			conn := owned[res.ConnectorID]
			applyConnectorStatus(conn, res.Outcome, in.Actor, res.Comment, now, true)
			if in.Shift != "" {
				conn.LastValidationShift = in.Shift
			}
			if err := dbTx.Save(conn).Error; err != nil {
				dbTx.Rollback()
				return databaseError(err)
			}
		}

		if err := dbTx.Commit().Error; err != nil {
			return commitError(err)
		}
		return nil
	})
	if rerr != nil {
		return nil, rerr
	}

	r.invalidate(cache.AdapterKey(adapter.QRCode))
	return &validation, nil
}

// ConnectorStats summarizes connector availability across active adapters.
type ConnectorStats struct {
	TotalAdapters int64                 `json:"total_adapters"`
	TotalOK       int64                 `json:"total_ok"`
	TotalNG       int64                 `json:"total_ng"`
	Connectors    []ConnectorStatsEntry `json:"connectors"`
}

// ConnectorStatsEntry is the per-connector-name availability line.
type ConnectorStatsEntry struct {
	Name         string  `json:"name"`
	OK           int64   `json:"ok"`
	NG           int64   `json:"ng"`
	Total        int64   `json:"total"`
	Availability float64 `json:"availability"`
}

// GetConnectorStats computes the connector inventory for active adapters,
// optionally filtered by model.
func (r *Repository) GetConnectorStats(model string) (*ConnectorStats, *RepositoryError) {
	adapterQuery := r.db.Model(&models.Adapter{}).Where("status = ?", models.AdapterStatusActive)
	if model != "" {
		adapterQuery = adapterQuery.Where("model = ?", model)
	}
	var totalAdapters int64
	if err := adapterQuery.Count(&totalAdapters).Error; err != nil {
		return nil, databaseError(err)
	}

	type row struct {
		Name   string
		Status string
		Count  int64
	}
	query := r.db.Model(&models.Connector{}).
		Select("connectors.name, connectors.status, count(connectors.connector_id) as count").
		Joins("JOIN adapters ON adapters.adapter_id = connectors.adapter_id").
		Where("adapters.status = ?", models.AdapterStatusActive)
	if model != "" {
		query = query.Where("adapters.model = ?", model)
	}
	var rows []row
	if err := query.Group("connectors.name, connectors.status").Scan(&rows).Error; err != nil {
		return nil, databaseError(err)
	}

	byName := make(map[string]*ConnectorStatsEntry)
	stats := &ConnectorStats{TotalAdapters: totalAdapters}
	for _, rw := range rows {
		entry, ok := byName[rw.Name]
		if !ok {
			entry = &ConnectorStatsEntry{Name: rw.Name}
			byName[rw.Name] = entry
		}
		switch rw.Status {
		case models.ConnectorStatusOK:
			entry.OK += rw.Count
			stats.TotalOK += rw.Count
		case models.ConnectorStatusNG:
			entry.NG += rw.Count
			stats.TotalNG += rw.Count
		}
	}
	for _, entry := range byName {
		entry.Total = entry.OK + entry.NG
		if entry.Total > 0 {
			entry.Availability = float64(entry.OK) / float64(entry.Total) * 100
		}
		stats.Connectors = append(stats.Connectors, *entry)
	}
	return stats, nil
}
