package postgres

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// Querier is the pgx query surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB abstracts the pgx pool for testing.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the PostgreSQL scheduling store.
type Store struct {
	queries
	db DB
}

var _ scheduling.Store = (*Store)(nil)

func NewStore(db DB) *Store {
	if db == nil {
		panic("postgres: db cannot be nil")
	}
	return &Store{queries: queries{q: db}, db: db}
}

// WithProviderLock opens a transaction, bounds lock waits with lock_timeout
// and takes pg_advisory_xact_lock on the provider. The lock is released when
// the transaction ends, on every path.
func (s *Store) WithProviderLock(ctx context.Context, providerID uuid.UUID, timeout time.Duration, fn func(tx scheduling.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return translate("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		return translate("set lock timeout", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(providerID)); err != nil {
		return translate("provider lock", err)
	}
	if err := fn(&txStore{queries: queries{q: tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate("commit", err)
	}
	return nil
}

// UpsertProvider stores a provider and replaces its channel fees.
func (s *Store) UpsertProvider(ctx context.Context, p scheduling.Provider) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return translate("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO providers (id, display_name, time_zone, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, time_zone = EXCLUDED.time_zone, active = EXCLUDED.active`,
		p.ID, p.DisplayName, p.TimeZone, p.Active)
	if err != nil {
		return translate("upsert provider", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM provider_channels WHERE provider_id = $1`, p.ID); err != nil {
		return translate("clear provider channels", err)
	}
	for ch, fee := range p.Fees {
		if _, err := tx.Exec(ctx, `INSERT INTO provider_channels (provider_id, channel, fee_cents) VALUES ($1, $2, $3)`,
			p.ID, string(ch), fee); err != nil {
			return translate("insert provider channel", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return translate("commit", err)
	}
	return nil
}

// lockKey folds a provider id into the bigint advisory lock space.
func lockKey(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}

type txStore struct {
	queries
	tx pgx.Tx
}

func (t *txStore) InsertBooking(ctx context.Context, b *scheduling.Booking) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO bookings (id, provider_id, subject_id, channel, start_at, end_at, status, urgency, notes,
			requested_fee_cents, cancellation_fee_cents, reschedule_fee_cents, rescheduled_from_id, superseded_by_id,
			created_at, updated_at, responded_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.ProviderID, b.SubjectID, string(b.Channel), b.StartAt, b.EndAt, string(b.Status), string(b.Urgency), b.Notes,
		b.RequestedFee, b.CancellationFee, b.RescheduleFee, b.RescheduledFromID, b.SupersededByID,
		b.CreatedAt, b.UpdatedAt, b.RespondedAt, b.CancelledAt)
	return translate("insert booking", err)
}

func (t *txStore) UpdateBooking(ctx context.Context, b *scheduling.Booking) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE bookings
		SET status = $2, cancellation_fee_cents = $3, reschedule_fee_cents = $4, superseded_by_id = $5,
			updated_at = $6, responded_at = $7, cancelled_at = $8
		WHERE id = $1`,
		b.ID, string(b.Status), b.CancellationFee, b.RescheduleFee, b.SupersededByID,
		b.UpdatedAt, b.RespondedAt, b.CancelledAt)
	if err != nil {
		return translate("update booking", err)
	}
	if ct.RowsAffected() == 0 {
		return scheduling.Errorf(scheduling.KindNotFound, "booking %s not found", b.ID)
	}
	return nil
}

func (t *txStore) AppendHistory(ctx context.Context, h scheduling.HistoryEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO booking_history (id, booking_id, previous_status, new_status, reason, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.BookingID, string(h.PreviousStatus), string(h.NewStatus), h.Reason, h.ActorID, h.At)
	return translate("append history", err)
}

func (t *txStore) InsertLeave(ctx context.Context, l *scheduling.LeavePeriod) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO leave_periods (id, provider_id, start_at, end_at, reason, cascade_cancel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.ProviderID, l.StartAt, l.EndAt, l.Reason, l.CascadeCancel, l.CreatedAt)
	return translate("insert leave", err)
}

func (t *txStore) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	ct, err := t.q.Exec(ctx, `DELETE FROM leave_periods WHERE id = $1`, id)
	if err != nil {
		return translate("delete leave", err)
	}
	if ct.RowsAffected() == 0 {
		return scheduling.Errorf(scheduling.KindNotFound, "leave %s not found", id)
	}
	return nil
}

func (t *txStore) SaveRule(ctx context.Context, r *scheduling.AvailabilityRule) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO availability_rules (id, provider_id, channel, recurring, weekday, rule_date, start_minute, end_minute,
			slot_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET channel = EXCLUDED.channel, recurring = EXCLUDED.recurring, weekday = EXCLUDED.weekday,
			rule_date = EXCLUDED.rule_date, start_minute = EXCLUDED.start_minute, end_minute = EXCLUDED.end_minute,
			slot_minutes = EXCLUDED.slot_minutes, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`,
		r.ID, r.ProviderID, string(r.Channel), r.Recurring, int(r.Weekday), r.Date, int(r.StartTime), int(r.EndTime),
		r.SlotMinutes, r.Active, r.CreatedAt, r.UpdatedAt)
	return translate("save rule", err)
}

func (t *txStore) Enqueue(ctx context.Context, env events.Envelope) error {
	return events.InsertEnvelope(ctx, t.tx, env)
}
