package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/pkg/database"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const bookingColumns = `
	id, reference, turf_id, day, slot_ids, status, amount,
	customer_name, customer_phone, order_id, payment_ref,
	needs_reconciliation, reconcile_reason, reconcile_payment_ref,
	created_at, confirmed_at, released_at, updated_at`

// PostgresBookingRepository implements BookingRepository and
// PricingRepository on PostgreSQL. Slot changes lock the date's slot_days
// row with SELECT ... FOR UPDATE for the length of one transaction.
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

func (r *PostgresBookingRepository) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	return storageErr(op, database.WithTx(ctx, r.pool, fn))
}

func (r *PostgresBookingRepository) GetSlotState(ctx context.Context, turfID string, date domain.Date) (*domain.DayLedger, error) {
	l, err := readDay(ctx, r.pool, turfID, date, false)
	if err != nil {
		return nil, storageErr("get slot state", err)
	}
	return l, nil
}

func (r *PostgresBookingRepository) Reserve(ctx context.Context, b *domain.Booking, now time.Time, ttl time.Duration) error {
	return r.withTx(ctx, "reserve", func(tx pgx.Tx) error {
		l, err := lockDay(ctx, tx, b.TurfID, b.Date, now)
		if err != nil {
			return err
		}
		if err := domain.ApplyReserve(l, b, now, ttl); err != nil {
			return err
		}
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		return saveDay(ctx, tx, l)
	})
}

// transition locks the booking row and then its date's ledger, applies fn
// and persists what the transition reports. A flagged booking commits even
// when fn returns an error.
func (r *PostgresBookingRepository) transition(ctx context.Context, op, id string, now time.Time, fn func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error)) (*domain.Booking, domain.Transition, error) {
	var (
		b        *domain.Booking
		tr       domain.Transition
		applyErr error
	)

	err := r.withTx(ctx, op, func(tx pgx.Tx) error {
		var err error
		b, err = getBooking(ctx, tx, `WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		l, err := lockDay(ctx, tx, b.TurfID, b.Date, now)
		if err != nil {
			return err
		}

		tr, applyErr = fn(l, b)
		switch tr {
		case domain.TransitionApplied:
			if err := updateBooking(ctx, tx, b); err != nil {
				return err
			}
			return saveDay(ctx, tx, l)
		case domain.TransitionFlagged:
			return updateBooking(ctx, tx, b)
		}
		return nil
	})
	if err != nil {
		return nil, domain.TransitionNone, err
	}
	return b, tr, applyErr
}

func (r *PostgresBookingRepository) Confirm(ctx context.Context, id, paymentRef string, now time.Time, policy domain.ConfirmPolicy) (*domain.Booking, domain.Transition, error) {
	return r.transition(ctx, "confirm", id, now, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyConfirm(l, b, paymentRef, now, policy)
	})
}

func (r *PostgresBookingRepository) Release(ctx context.Context, id string, now time.Time) (*domain.Booking, domain.Transition, error) {
	return r.transition(ctx, "release", id, now, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyRelease(l, b, now), nil
	})
}

func (r *PostgresBookingRepository) AttachOrder(ctx context.Context, id, orderID string, now time.Time) (*domain.Booking, error) {
	b, err := getBooking(ctx, r.pool, `WHERE id = $1`, id)
	if err != nil {
		return nil, storageErr("attach order", err)
	}
	b.OrderID = orderID
	b.UpdatedAt = now
	if _, err := r.pool.Exec(ctx, `UPDATE bookings SET order_id = $2, updated_at = $3 WHERE id = $1`, id, orderID, now); err != nil {
		return nil, storageErr("attach order", err)
	}
	return b, nil
}

func (r *PostgresBookingRepository) Flag(ctx context.Context, id, reason, paymentRef string, now time.Time) (*domain.Booking, error) {
	b, err := getBooking(ctx, r.pool, `WHERE id = $1`, id)
	if err != nil {
		return nil, storageErr("flag", err)
	}
	b.MarkForReconciliation(reason, paymentRef, now)
	if err := updateBooking(ctx, r.pool, b); err != nil {
		return nil, storageErr("flag", err)
	}
	return b, nil
}

func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := getBooking(ctx, r.pool, `WHERE id = $1`, id)
	return b, storageErr("get booking", err)
}

func (r *PostgresBookingRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	if orderID == "" {
		return nil, domain.ErrBookingNotFound
	}
	b, err := getBooking(ctx, r.pool, `WHERE order_id = $1`, orderID)
	return b, storageErr("get booking by order", err)
}

func (r *PostgresBookingRepository) List(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error) {
	var (
		where = "WHERE TRUE"
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	if filter.TurfID != "" {
		add("turf_id", filter.TurfID)
	}
	if !filter.Date.IsZero() {
		add("day", filter.Date.String())
	}
	if filter.Phone != "" {
		add("customer_phone", filter.Phone)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	order := "ORDER BY created_at DESC, id DESC"
	if filter.Phone != "" {
		order = "ORDER BY day DESC, created_at DESC, id DESC"
	}
	args = append(args, filter.limit())
	query := fmt.Sprintf("%s LIMIT $%d", order, len(args))

	bookings, err := listBookings(ctx, r.pool, where+" "+query, args...)
	return bookings, storageErr("list bookings", err)
}

func (r *PostgresBookingRepository) LockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.updateDay(ctx, "lock slot", turfID, date, now, func(l *domain.DayLedger) bool { return l.Lock(slotID) })
}

func (r *PostgresBookingRepository) UnlockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.updateDay(ctx, "unlock slot", turfID, date, now, func(l *domain.DayLedger) bool { return l.Unlock(slotID) })
}

func (r *PostgresBookingRepository) updateDay(ctx context.Context, op, turfID string, date domain.Date, now time.Time, fn func(l *domain.DayLedger) bool) (*domain.DayLedger, error) {
	var out *domain.DayLedger
	err := r.withTx(ctx, op, func(tx pgx.Tx) error {
		l, err := lockDay(ctx, tx, turfID, date, now)
		if err != nil {
			return err
		}
		out = l
		if !fn(l) {
			return nil
		}
		l.UpdatedAt = now
		return saveDay(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresBookingRepository) ExpireStaleHolds(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]*domain.Booking, error) {
	stale, err := listBookings(ctx, r.pool, `
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, now.Add(-ttl), batchLimit(limit))
	if err != nil {
		return nil, storageErr("list stale holds", err)
	}

	var expired []*domain.Booking
	for _, s := range stale {
		b, tr, err := r.transition(ctx, "expire hold", s.ID, now, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
			return domain.ApplyExpire(l, b, now, ttl), nil
		})
		if err != nil {
			return expired, err
		}
		if tr == domain.TransitionApplied {
			expired = append(expired, b)
		}
	}
	return expired, nil
}

func (r *PostgresBookingRepository) ListReconciliationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Booking, error) {
	bookings, err := listBookings(ctx, r.pool, `
		WHERE status IN ('pending', 'expired')
		  AND order_id <> ''
		  AND NOT needs_reconciliation
		  AND created_at < $1
		  AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3`, olderThan, olderThan.Add(-reconcileLookback), batchLimit(limit))
	return bookings, storageErr("list reconciliation candidates", err)
}

// Get implements PricingRepository
func (r *PostgresBookingRepository) Get(ctx context.Context) (*domain.PricingConfig, error) {
	p := &domain.PricingConfig{}
	err := r.pool.QueryRow(ctx, `
		SELECT weekday_rate, weekend_rate, version, updated_at
		FROM pricing_config WHERE id = 1`,
	).Scan(&p.WeekdayRate, &p.WeekendRate, &p.Version, &p.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, domain.ErrPricingNotConfigured
	}
	if err != nil {
		return nil, storageErr("get pricing", err)
	}
	return p, nil
}

// Set implements PricingRepository
func (r *PostgresBookingRepository) Set(ctx context.Context, cfg domain.PricingConfig, now time.Time) (*domain.PricingConfig, error) {
	p := &domain.PricingConfig{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pricing_config (id, weekday_rate, weekend_rate, version, updated_at)
		VALUES (1, $1, $2, 1, $3)
		ON CONFLICT (id) DO UPDATE
		SET weekday_rate = EXCLUDED.weekday_rate,
		    weekend_rate = EXCLUDED.weekend_rate,
		    version      = pricing_config.version + 1,
		    updated_at   = EXCLUDED.updated_at
		RETURNING weekday_rate, weekend_rate, version, updated_at`,
		cfg.WeekdayRate, cfg.WeekendRate, now,
	).Scan(&p.WeekdayRate, &p.WeekendRate, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, storageErr("set pricing", err)
	}
	return p, nil
}

// --- row helpers ---

func readDay(ctx context.Context, q querier, turfID string, date domain.Date, forUpdate bool) (*domain.DayLedger, error) {
	query := `SELECT state, version FROM slot_days WHERE turf_id = $1 AND day = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		state   []byte
		version int64
	)
	err := q.QueryRow(ctx, query, turfID, date.String()).Scan(&state, &version)
	if database.IsNoRows(err) {
		return domain.NewDayLedger(turfID, date), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot day: %w", err)
	}

	l := &domain.DayLedger{}
	if err := json.Unmarshal(state, l); err != nil {
		return nil, fmt.Errorf("failed to decode slot day: %w", err)
	}
	l.Normalize()
	l.TurfID, l.Date, l.Version = turfID, date, version
	return l, nil
}

// lockDay makes sure the date's row exists and locks it for the transaction
func lockDay(ctx context.Context, tx pgx.Tx, turfID string, date domain.Date, now time.Time) (*domain.DayLedger, error) {
	empty, err := json.Marshal(domain.NewDayLedger(turfID, date))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO slot_days (turf_id, day, state, version, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (turf_id, day) DO NOTHING`,
		turfID, date.String(), empty, now,
	); err != nil {
		return nil, fmt.Errorf("failed to create slot day: %w", err)
	}
	return readDay(ctx, tx, turfID, date, true)
}

func saveDay(ctx context.Context, tx pgx.Tx, l *domain.DayLedger) error {
	l.Version++
	state, err := json.Marshal(l)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE slot_days SET state = $3, version = $4, updated_at = $5
		WHERE turf_id = $1 AND day = $2 AND version = $6`,
		l.TurfID, l.Date.String(), state, l.Version, l.UpdatedAt, l.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to save slot day: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrVersionConflict
	}
	return nil
}

func insertBooking(ctx context.Context, q querier, b *domain.Booking) error {
	_, err := q.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.Reference, b.TurfID, b.Date.String(), b.SlotIDs, string(b.Status), b.Amount,
		b.CustomerName, b.CustomerPhone, b.OrderID, b.PaymentRef,
		b.NeedsReconciliation, b.ReconcileReason, b.ReconcilePaymentRef,
		b.CreatedAt, b.ConfirmedAt, b.ReleasedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func updateBooking(ctx context.Context, q querier, b *domain.Booking) error {
	tag, err := q.Exec(ctx, `
		UPDATE bookings SET
			status = $2, order_id = $3, payment_ref = $4,
			needs_reconciliation = $5, reconcile_reason = $6, reconcile_payment_ref = $7,
			confirmed_at = $8, released_at = $9, updated_at = $10
		WHERE id = $1`,
		b.ID, string(b.Status), b.OrderID, b.PaymentRef,
		b.NeedsReconciliation, b.ReconcileReason, b.ReconcilePaymentRef,
		b.ConfirmedAt, b.ReleasedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var day, status string
	err := row.Scan(
		&b.ID, &b.Reference, &b.TurfID, &day, &b.SlotIDs, &status, &b.Amount,
		&b.CustomerName, &b.CustomerPhone, &b.OrderID, &b.PaymentRef,
		&b.NeedsReconciliation, &b.ReconcileReason, &b.ReconcilePaymentRef,
		&b.CreatedAt, &b.ConfirmedAt, &b.ReleasedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.Date, err = domain.ParseDate(day); err != nil {
		return nil, fmt.Errorf("corrupt booking day %q: %v", day, err)
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}

func getBooking(ctx context.Context, q querier, where string, args ...any) (*domain.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, args...))
	if database.IsNoRows(err) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func listBookings(ctx context.Context, q querier, tail string, args ...any) ([]*domain.Booking, error) {
	rows, err := q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return bookings, nil
}
