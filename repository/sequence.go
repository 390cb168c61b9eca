package repository

import "gorm.io/gorm"

// Primary-key sequence recovery. After a bulk delete the monotonic generator
// can trail behind max(id) on restore or out-of-band inserts, making every
// subsequent insert fail with a unique violation on the table's pkey. The
// guard runs structurally after every bulk delete and reactively when an
// insert fails with a collision naming the table's primary key.

// tableSequences maps every table using a serial primary key to its key
// column.
var tableSequences = map[string]string{
	"technicians":           "technician_id",
	"jigs":                  "jig_id",
	"validations":           "validation_id",
	"repairs":               "repair_id",
	"ng_reports":            "ng_report_id",
	"adapters":              "adapter_id",
	"connectors":            "connector_id",
	"adapter_validations":   "adapter_validation_id",
	"connector_validations": "connector_validation_id",
	"report_files":          "report_file_id",
}

// resetSequence recomputes the table's generator from max(id)+1. No-op on
// dialects without sequences.
func (r *Repository) resetSequence(tx *gorm.DB, table string) error {
	pk, ok := tableSequences[table]
	if !ok {
		return nil
	}
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SELECT setval(pg_get_serial_sequence(?, ?), COALESCE((SELECT MAX("+pk+") FROM "+table+"), 0) + 1, false)",
		table, pk,
	).Error
}

// withSequenceRecovery runs op once and, if it failed with a primary-key
// collision on table, recovers the sequence and retries exactly once. A
// second failure is surfaced to the caller.
func (r *Repository) withSequenceRecovery(table string, op func() *RepositoryError) *RepositoryError {
	rerr := op()
	if rerr == nil || !rerr.pkCollision(table) {
		return rerr
	}
	r.logger.Error("Primary key collision detected, recovering sequence", "table", table)
	if err := r.resetSequence(r.db, table); err != nil {
		r.logger.Error("Sequence recovery failed", "table", table, "err", err)
		return databaseError(err)
	}
	r.logger.Info("Sequence recovered, retrying insert once", "table", table)
	return op()
}
