package repository

import (
	"errors"
	"fmt"

	"jigtrack/repository/models"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes as constants
const (
	// Class 23 — Integrity Constraint Violation
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrCheckViolation      = "23514" // check_violation
	PgErrNotNullViolation    = "23502" // not_null_violation

	// Class 40 — Transaction Rollback
	PgErrTransactionRollback = "40000" // transaction_rollback
	PgErrSerializationFail   = "40001" // serialization_failure

	// Class 53 — Insufficient Resources
	PgErrInsufficientResources = "53000" // insufficient_resources
	PgErrDiskFull              = "53100" // disk_full
)

// Repository error codes surfaced to the calling layer.
const (
	CodeEquipmentNotFound    = "EQUIPMENT_NOT_FOUND"
	CodeConnectorNotFound    = "CONNECTOR_NOT_FOUND"
	CodeEquipmentQuarantined = "EQUIPMENT_QUARANTINED"
	CodeDuplicateOpenReport  = "DUPLICATE_OPEN_REPORT"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidState         = "INVALID_STATE"
	CodeConflict             = "CONFLICT"
	CodeDatabaseError        = "DATABASE_ERROR"
	CodeCommitFailed         = "COMMIT_FAILED"
)

// RepositoryError represents an error in the repository layer. Report is
// populated for EQUIPMENT_QUARANTINED so callers can surface the blocking
// defect ticket.
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
	Report  *models.NGReport

	cause error
}

func (e *RepositoryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RepositoryError) Unwrap() error {
	return e.cause
}

func notFoundError(code, message, detail string) *RepositoryError {
	return &RepositoryError{Code: code, Message: message, Detail: detail}
}

func quarantinedError(report *models.NGReport) *RepositoryError {
	return &RepositoryError{
		Code:    CodeEquipmentQuarantined,
		Message: "Jig is flagged NG and requires repair before validation",
		Detail:  fmt.Sprintf("open NG report %d: %s", report.ID, report.Reason),
		Report:  report,
	}
}

func invalidTransitionError(from, to string) *RepositoryError {
	return &RepositoryError{
		Code:    CodeInvalidTransition,
		Message: "Illegal NG report status change",
		Detail:  fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func databaseError(err error) *RepositoryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &RepositoryError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			cause:   err,
		}
	}
	return &RepositoryError{
		Code:    CodeDatabaseError,
		Message: "Database error occurred",
		Detail:  err.Error(),
		cause:   err,
	}
}

func commitError(err error) *RepositoryError {
	return &RepositoryError{
		Code:    CodeCommitFailed,
		Message: "Failed to commit transaction",
		Detail:  err.Error(),
		cause:   err,
	}
}

// isPKCollision reports whether err is a unique violation on the given
// table's primary key constraint. This is the signal the reactive sequence
// guard keys on.
func isPKCollision(err error, table string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == PgErrUniqueViolation && pgErr.ConstraintName == table+"_pkey"
}

// pkCollision reports whether the repository error originated from a primary
// key collision on table.
func (e *RepositoryError) pkCollision(table string) bool {
	return e.cause != nil && isPKCollision(e.cause, table)
}
