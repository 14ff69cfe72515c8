package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/turf-booking/pkg/redis"
	"github.com/prohmpiriya/turf-booking/pkg/retry"
)

//go:embed scripts/commit_day.lua
var commitDayScript string

const scriptCommitDay = "commit_day"

// Redis keys
const (
	keyPrefix       = "turf:"
	keyPricing      = keyPrefix + "pricing"
	keyPricingVer   = keyPrefix + "pricing:version"
	keyAllBookings  = keyPrefix + "bookings:all"
	keyPendingHolds = keyPrefix + "bookings:pending"
	keyAwaitingPay  = keyPrefix + "bookings:awaiting"
	maxScan         = 1000
)

func dayLedgerKey(turfID string, date domain.Date) string {
	return fmt.Sprintf("%sday:%s:%s", keyPrefix, turfID, date)
}

func bookingKey(id string) string { return keyPrefix + "booking:" + id }

func orderKey(orderID string) string { return keyPrefix + "order:" + orderID }

func dayIndexKey(turfID string, date domain.Date) string {
	return fmt.Sprintf("%sbookings:day:%s:%s", keyPrefix, turfID, date)
}

func phoneIndexKey(phone string) string { return keyPrefix + "bookings:phone:" + phone }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

// RedisBookingRepository implements BookingRepository and PricingRepository
// on Redis. Each change is a compare-and-set of the date's ledger version,
// run by commit_day.lua together with the booking writes, and retried with
// backoff when another writer got there first.
type RedisBookingRepository struct {
	client *pkgredis.Client
	retry  *retry.Config
}

// NewRedisBookingRepository creates a new RedisBookingRepository
func NewRedisBookingRepository(client *pkgredis.Client) *RedisBookingRepository {
	return &RedisBookingRepository{client: client, retry: retry.OptimisticConfig()}
}

// LoadScripts loads the Lua scripts into Redis
func (r *RedisBookingRepository) LoadScripts(ctx context.Context) error {
	if _, err := r.client.LoadScript(ctx, scriptCommitDay, commitDayScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptCommitDay, err)
	}
	return nil
}

// commit collects the writes that must land together with a ledger update
type commit struct {
	keys []string
	ops  []interface{}
}

func newCommit(ledgerKey string) *commit {
	return &commit{keys: []string{ledgerKey}}
}

// key returns the 1-based KEYS index of k, registering it on first use
func (c *commit) key(k string) int {
	for i, existing := range c.keys {
		if existing == k {
			return i + 1
		}
	}
	c.keys = append(c.keys, k)
	return len(c.keys)
}

func (c *commit) set(k string, v interface{}) {
	c.ops = append(c.ops, "SET", c.key(k), v)
}

func (c *commit) zadd(k string, s float64, member string) {
	c.ops = append(c.ops, "ZADD", c.key(k), s, member)
}

func (c *commit) zrem(k, member string) {
	c.ops = append(c.ops, "ZREM", c.key(k), member)
}

func (c *commit) del(k string) {
	c.ops = append(c.ops, "DEL", c.key(k))
}

// putBooking stages b and keeps every index consistent with its state
func (c *commit) putBooking(b *domain.Booking, previousOrderID string) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	c.set(bookingKey(b.ID), data)
	c.zadd(keyAllBookings, score(b.CreatedAt), b.ID)
	c.zadd(dayIndexKey(b.TurfID, b.Date), score(b.CreatedAt), b.ID)
	c.zadd(phoneIndexKey(b.CustomerPhone), score(b.CreatedAt), b.ID)

	if b.Status == domain.BookingStatusPending {
		c.zadd(keyPendingHolds, score(b.CreatedAt), b.ID)
	} else {
		c.zrem(keyPendingHolds, b.ID)
	}

	awaiting := b.OrderID != "" && !b.NeedsReconciliation &&
		(b.Status == domain.BookingStatusPending || b.Status == domain.BookingStatusExpired)
	if awaiting {
		c.zadd(keyAwaitingPay, score(b.CreatedAt), b.ID)
	} else {
		c.zrem(keyAwaitingPay, b.ID)
	}

	if previousOrderID != "" && previousOrderID != b.OrderID {
		c.del(orderKey(previousOrderID))
	}
	if b.OrderID != "" {
		c.set(orderKey(b.OrderID), b.ID)
	}
	return nil
}

func (r *RedisBookingRepository) exec(ctx context.Context, c *commit, expected int64, ledger []byte) (bool, error) {
	args := append([]interface{}{expected, ledger}, c.ops...)
	n, err := r.client.EvalWithFallback(ctx, scriptCommitDay, commitDayScript, c.keys, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to execute %s script: %w", scriptCommitDay, err)
	}
	return n == 1, nil
}

// mutateDay runs fn against a fresh copy of the date's ledger and commits the
// result with a version check. fn reports whether anything changed; an error
// from fn aborts without writing.
func (r *RedisBookingRepository) mutateDay(ctx context.Context, op, turfID string, date domain.Date, fn func(l *domain.DayLedger, c *commit) (bool, error)) (*domain.DayLedger, error) {
	var out *domain.DayLedger

	res := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		l, err := r.loadDay(ctx, turfID, date)
		if err != nil {
			return retry.Permanent(err)
		}
		expected := l.Version

		c := newCommit(dayLedgerKey(turfID, date))
		changed, err := fn(l, c)
		if err != nil {
			return retry.Permanent(err)
		}
		if !changed {
			out = l
			return nil
		}

		l.Version = expected + 1
		data, err := json.Marshal(l)
		if err != nil {
			return retry.Permanent(err)
		}
		ok, err := r.exec(ctx, c, expected, data)
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return retry.Retryable(domain.ErrVersionConflict)
		}
		out = l
		return nil
	})

	switch {
	case res.Err == nil:
		return out, nil
	case errors.Is(res.Err, retry.ErrContextCanceled):
		return nil, domain.StorageError(op, ctx.Err())
	case errors.Is(res.Err, retry.ErrMaxRetriesExceeded):
		return nil, domain.StorageError(op, res.LastError)
	default:
		return nil, storageErr(op, res.Err)
	}
}

func (r *RedisBookingRepository) loadDay(ctx context.Context, turfID string, date domain.Date) (*domain.DayLedger, error) {
	data, err := r.client.Get(ctx, dayLedgerKey(turfID, date)).Bytes()
	if pkgredis.IsNil(err) {
		return domain.NewDayLedger(turfID, date), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot day: %w", err)
	}

	l := &domain.DayLedger{}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("failed to decode slot day: %w", err)
	}
	l.Normalize()
	return l, nil
}

func (r *RedisBookingRepository) loadBooking(ctx context.Context, id string) (*domain.Booking, error) {
	data, err := r.client.Get(ctx, bookingKey(id)).Bytes()
	if pkgredis.IsNil(err) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	b := &domain.Booking{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	return b, nil
}

func (r *RedisBookingRepository) loadBookings(ctx context.Context, ids []string) ([]*domain.Booking, error) {
	if len(ids) == 0 {
		return []*domain.Booking{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = bookingKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}

	bookings := make([]*domain.Booking, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		b := &domain.Booking{}
		if err := json.Unmarshal([]byte(s), b); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func (r *RedisBookingRepository) GetSlotState(ctx context.Context, turfID string, date domain.Date) (*domain.DayLedger, error) {
	l, err := r.loadDay(ctx, turfID, date)
	return l, storageErr("get slot state", err)
}

func (r *RedisBookingRepository) Reserve(ctx context.Context, b *domain.Booking, now time.Time, ttl time.Duration) error {
	_, err := r.mutateDay(ctx, "reserve", b.TurfID, b.Date, func(l *domain.DayLedger, c *commit) (bool, error) {
		if err := domain.ApplyReserve(l, b, now, ttl); err != nil {
			return false, err
		}
		return true, c.putBooking(b, "")
	})
	return err
}

// transition reloads the booking inside every attempt so the booking read is
// covered by the ledger version check
func (r *RedisBookingRepository) transition(ctx context.Context, op, id string, fn func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error)) (*domain.Booking, domain.Transition, error) {
	first, err := r.loadBooking(ctx, id)
	if err != nil {
		return nil, domain.TransitionNone, storageErr(op, err)
	}

	var (
		b        *domain.Booking
		tr       domain.Transition
		applyErr error
	)
	_, err = r.mutateDay(ctx, op, first.TurfID, first.Date, func(l *domain.DayLedger, c *commit) (bool, error) {
		var err error
		if b, err = r.loadBooking(ctx, id); err != nil {
			return false, err
		}
		previousOrder := b.OrderID

		tr, applyErr = fn(l, b)
		switch tr {
		case domain.TransitionApplied, domain.TransitionFlagged:
			return true, c.putBooking(b, previousOrder)
		}
		return false, nil
	})
	if err != nil {
		return nil, domain.TransitionNone, err
	}
	return b, tr, applyErr
}

func (r *RedisBookingRepository) Confirm(ctx context.Context, id, paymentRef string, now time.Time, policy domain.ConfirmPolicy) (*domain.Booking, domain.Transition, error) {
	return r.transition(ctx, "confirm", id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyConfirm(l, b, paymentRef, now, policy)
	})
}

func (r *RedisBookingRepository) Release(ctx context.Context, id string, now time.Time) (*domain.Booking, domain.Transition, error) {
	return r.transition(ctx, "release", id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyRelease(l, b, now), nil
	})
}

func (r *RedisBookingRepository) AttachOrder(ctx context.Context, id, orderID string, now time.Time) (*domain.Booking, error) {
	b, _, err := r.transition(ctx, "attach order", id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		b.OrderID = orderID
		b.UpdatedAt = now
		return domain.TransitionFlagged, nil
	})
	return b, err
}

func (r *RedisBookingRepository) Flag(ctx context.Context, id, reason, paymentRef string, now time.Time) (*domain.Booking, error) {
	b, _, err := r.transition(ctx, "flag", id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		b.MarkForReconciliation(reason, paymentRef, now)
		return domain.TransitionFlagged, nil
	})
	return b, err
}

func (r *RedisBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := r.loadBooking(ctx, id)
	return b, storageErr("get booking", err)
}

func (r *RedisBookingRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	if orderID == "" {
		return nil, domain.ErrBookingNotFound
	}
	id, err := r.client.Get(ctx, orderKey(orderID)).Result()
	if pkgredis.IsNil(err) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, storageErr("get booking by order", err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisBookingRepository) List(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error) {
	index := keyAllBookings
	switch {
	case filter.Phone != "":
		index = phoneIndexKey(filter.Phone)
	case !filter.Date.IsZero() && filter.TurfID != "":
		index = dayIndexKey(filter.TurfID, filter.Date)
	}

	ids, err := r.client.ZRevRange(ctx, index, 0, maxScan-1).Result()
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	all, err := r.loadBookings(ctx, ids)
	if err != nil {
		return nil, storageErr("list bookings", err)
	}

	out := make([]*domain.Booking, 0, len(all))
	for _, b := range all {
		if filter.matches(b) {
			out = append(out, b)
		}
	}
	sortBookings(out, filter.Phone != "")
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (r *RedisBookingRepository) LockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.mutateDay(ctx, "lock slot", turfID, date, func(l *domain.DayLedger, c *commit) (bool, error) {
		l.UpdatedAt = now
		return l.Lock(slotID), nil
	})
}

func (r *RedisBookingRepository) UnlockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.mutateDay(ctx, "unlock slot", turfID, date, func(l *domain.DayLedger, c *commit) (bool, error) {
		l.UpdatedAt = now
		return l.Unlock(slotID), nil
	})
}

func (r *RedisBookingRepository) ExpireStaleHolds(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]*domain.Booking, error) {
	ids, err := r.client.ZRangeByScore(ctx, keyPendingHolds, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(now.Add(-ttl).UnixMilli(), 10),
		Count: int64(batchLimit(limit)),
	}).Result()
	if err != nil {
		return nil, storageErr("list stale holds", err)
	}

	var expired []*domain.Booking
	for _, id := range ids {
		b, tr, err := r.transition(ctx, "expire hold", id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
			return domain.ApplyExpire(l, b, now, ttl), nil
		})
		if domain.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return expired, err
		}
		if tr == domain.TransitionApplied {
			expired = append(expired, b)
		}
	}
	return expired, nil
}

func (r *RedisBookingRepository) ListReconciliationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Booking, error) {
	ids, err := r.client.ZRangeByScore(ctx, keyAwaitingPay, &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(olderThan.Add(-reconcileLookback).UnixMilli(), 10),
		Max:   "(" + strconv.FormatInt(olderThan.UnixMilli(), 10),
		Count: int64(batchLimit(limit)),
	}).Result()
	if err != nil {
		return nil, storageErr("list reconciliation candidates", err)
	}
	all, err := r.loadBookings(ctx, ids)
	if err != nil {
		return nil, storageErr("list reconciliation candidates", err)
	}

	out := make([]*domain.Booking, 0, len(all))
	for _, b := range all {
		if isReconcileCandidate(b, olderThan) {
			out = append(out, b)
		}
	}
	sortBookings(out, false)
	return out, nil
}

// Get implements PricingRepository
func (r *RedisBookingRepository) Get(ctx context.Context) (*domain.PricingConfig, error) {
	values, err := r.client.MGet(ctx, keyPricing, keyPricingVer).Result()
	if err != nil {
		return nil, storageErr("get pricing", err)
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, domain.ErrPricingNotConfigured
	}
	p := &domain.PricingConfig{}
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, storageErr("get pricing", err)
	}
	// the counter is authoritative; the record is written in the same MULTI
	if v, ok := values[1].(string); ok {
		if version, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.Version = version
		}
	}
	return p, nil
}

// Set implements PricingRepository. The version bump and the record write
// commit in one MULTI so racing writers cannot pair a version with stale data.
func (r *RedisBookingRepository) Set(ctx context.Context, cfg domain.PricingConfig, now time.Time) (*domain.PricingConfig, error) {
	cfg.Version = 0
	cfg.UpdatedAt = now
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var incr *redis.IntCmd
	_, err = r.client.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, keyPricingVer)
		pipe.Set(ctx, keyPricing, data, 0)
		return nil
	})
	if err != nil {
		return nil, storageErr("set pricing", err)
	}
	cfg.Version = incr.Val()
	return &cfg, nil
}
