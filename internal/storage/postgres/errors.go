package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

const (
	codeExclusionViolation = "23P01"
	codeLockNotAvailable   = "55P03"
	codeSerialization      = "40001"
	codeDeadlock           = "40P01"

	leaveOverlapConstraint = "leave_periods_no_overlap"
)

// translate maps driver errors onto scheduling kinds. Anything unrecognised
// is wrapped and left for the service to report as internal.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.Wrap(scheduling.KindNotFound, err, op+": not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			if pgErr.ConstraintName == leaveOverlapConstraint {
				return scheduling.Wrap(scheduling.KindLeaveConflict, err, "leave overlaps an existing leave period")
			}
			return scheduling.Wrap(scheduling.KindSlotConflict, err, "window is no longer available")
		case codeLockNotAvailable, codeSerialization, codeDeadlock:
			return scheduling.Wrap(scheduling.KindTemporarilyUnavailable, err, "provider calendar is busy, retry")
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
