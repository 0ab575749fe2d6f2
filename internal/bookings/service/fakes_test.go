package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wheelaway/internal/bookings/availability"
	bookingserrors "wheelaway/internal/bookings/errors"
	"wheelaway/internal/bookings/repository"
	carserrors "wheelaway/internal/cars/errors"
	mongotx "wheelaway/pkg/db/mongo"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────────────────────
// In-memory booking store
// ────────────────────────────────────────────────────────────────

type memBookingRepository struct {
	mu    sync.Mutex
	items map[string]*model.Booking
	cars  *mockCarReader

	createFunc          func(ctx context.Context, b *model.Booking) error
	findOverlappingHook func()
	markPaidErr         error
	findStaleErr        error
}

func newMemBookingRepository() *memBookingRepository {
	return &memBookingRepository{items: map[string]*model.Booking{}}
}

func blocking(b *model.Booking) bool {
	return availability.IsBlocking(b.Status)
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

func (m *memBookingRepository) put(b *model.Booking) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = primitive.NewObjectID().Hex()
	}
	m.items[b.ID] = clone(b)
	return b
}

func (m *memBookingRepository) get(id string) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.items[id]; ok {
		return clone(b)
	}
	return nil
}

func (m *memBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, b); err != nil {
			return err
		}
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	if tx := txFrom(ctx); tx != nil {
		if b.ID == "" {
			b.ID = primitive.NewObjectID().Hex()
		}
		tx.creates = append(tx.creates, clone(b))
		return nil
	}
	m.put(b)
	return nil
}

// checkID mirrors the repository, which rejects ids that are not ObjectIDs before querying.
func checkID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return nil
}

func (m *memBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if b := m.get(id); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
}

func (m *memBookingRepository) FindOverlapping(_ context.Context, carID string, start, end time.Time, exclude ...string) ([]*model.Booking, error) {
	if m.findOverlappingHook != nil {
		m.findOverlappingHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*model.Booking{}
	for _, b := range m.items {
		if b.CarID != carID || !availability.RangeOf(b).Overlaps(availability.Range{Start: start, End: end}) || contains(exclude, b.Status) {
			continue
		}
		out = append(out, clone(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *memBookingRepository) UpdateStatus(_ context.Context, id, from, to, actor string, at time.Time) (*model.Booking, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	if b.Status != from {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrStatusChanged, id)
	}
	b.Status = to
	b.UpdatedAt = at
	switch to {
	case model.BookingStatusConfirmed:
		b.ConfirmedAt = &at
	case model.BookingStatusCancelled:
		b.CancelledAt = &at
		b.CancelledBy = actor
	}
	return clone(b), nil
}

func (m *memBookingRepository) MarkPaid(_ context.Context, id string, paidAt time.Time) (*model.Booking, bool, error) {
	if m.markPaidErr != nil {
		return nil, false, m.markPaidErr
	}
	if err := checkID(id); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.items[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	if b.Status == model.BookingStatusCancelled || b.PaymentStatus != model.PaymentStatusPending {
		return clone(b), false, nil
	}
	b.PaymentStatus = model.PaymentStatusPaid
	b.PaidAt = &paidAt
	return clone(b), true, nil
}

func (m *memBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range m.items {
		if keep(b) {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page(items []*model.Booking, limit int, offset int64) []*model.Booking {
	if offset >= int64(len(items)) {
		return []*model.Booking{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (m *memBookingRepository) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return page(m.filter(func(b *model.Booking) bool { return b.UserID == userID }), limit, offset), nil
}

func (m *memBookingRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	return int64(len(m.filter(func(b *model.Booking) bool { return b.UserID == userID }))), nil
}

func (m *memBookingRepository) FindByOwner(_ context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error) {
	return page(m.filter(func(b *model.Booking) bool { return b.OwnerID == ownerID }), limit, offset), nil
}

func (m *memBookingRepository) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	return int64(len(m.filter(func(b *model.Booking) bool { return b.OwnerID == ownerID }))), nil
}

func (m *memBookingRepository) FindOpenByCar(_ context.Context, carID string, now time.Time) ([]*model.Booking, error) {
	return m.filter(func(b *model.Booking) bool {
		return b.CarID == carID && blocking(b) && b.EndDate.After(now)
	}), nil
}

func (m *memBookingRepository) CountOpenByCar(ctx context.Context, carID string, now time.Time) (int64, error) {
	open, _ := m.FindOpenByCar(ctx, carID, now)
	return int64(len(open)), nil
}

func (m *memBookingRepository) FindStalePending(_ context.Context, before time.Time, limit int) ([]*model.Booking, error) {
	if m.findStaleErr != nil {
		return nil, m.findStaleErr
	}
	stale := m.filter(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.CreatedAt.Before(before)
	})
	return page(stale, limit, 0), nil
}

// ExecuteTransaction buffers inserts until commit and, like WithTransaction,
// retries the callback on errors labelled TransientTransactionError.
func (m *memBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	for attempt := 1; ; attempt++ {
		tx := &memTx{}
		err := fn(mongo.NewSessionContext(context.WithValue(ctx, txKey{}, tx), nil))
		if err == nil {
			err = m.commit(ctx, tx)
		}
		if m.cars != nil {
			m.cars.release(tx)
		}
		if err == nil {
			return nil
		}

		var ce mongo.CommandError
		if attempt < maxTxAttempts && errors.As(err, &ce) && ce.HasErrorLabel("TransientTransactionError") {
			continue
		}
		return err
	}
}

func (m *memBookingRepository) commit(ctx context.Context, tx *memTx) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range tx.creates {
		m.items[b.ID] = clone(b)
	}
	return nil
}

var _ repository.BookingRepository = (*memBookingRepository)(nil)

const maxTxAttempts = 3

type txKey struct{}

// memTx is one attempt of a fake transaction.
type memTx struct {
	creates []*model.Booking
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

func writeConflict() error {
	return mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ────────────────────────────────────────────────────────────────
// In-memory lock and car reader
// ────────────────────────────────────────────────────────────────

// memLockRepository takes over expired locks the way the Mongo repository does.
// With bypass set every Acquire succeeds, as if each lock had lapsed.
type memLockRepository struct {
	mu     sync.Mutex
	held   map[string]*model.BookingLock
	fails  int
	bypass bool
}

func newMemLockRepository() *memLockRepository {
	return &memLockRepository{held: map[string]*model.BookingLock{}}
}

func (m *memLockRepository) Acquire(_ context.Context, carID, owner string, ttl time.Duration) (*model.BookingLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fails > 0 {
		m.fails--
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrLockHeld, carID)
	}
	now := time.Now()
	id := repository.LockID(carID)
	if cur, ok := m.held[id]; ok && !m.bypass && now.Before(cur.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrLockHeld, carID)
	}
	lock := &model.BookingLock{ID: id, Owner: owner, ExpiresAt: now.Add(ttl), CreatedAt: now}
	m.held[id] = lock
	return lock, nil
}

func (m *memLockRepository) Release(_ context.Context, lock *model.BookingLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.held[lock.ID]; ok && cur.Owner == lock.Owner {
		delete(m.held, lock.ID)
	}
	return nil
}

// mockCarReader also plays the car document as a transaction guard: a second
// transaction writing a car another one has written and not yet finished gets
// a write conflict.
type mockCarReader struct {
	mu      sync.Mutex
	cars    map[string]*model.Car
	writers map[string]*memTx
	bumps   int
}

func (m *mockCarReader) BumpBookingSeq(ctx context.Context, id string) (*model.Car, error) {
	car, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps++
	tx := txFrom(ctx)
	if tx == nil {
		return car, nil
	}
	if m.writers == nil {
		m.writers = map[string]*memTx{}
	}
	if w, ok := m.writers[id]; ok && w != tx {
		return nil, fmt.Errorf("failed to bump booking sequence: %w", writeConflict())
	}
	m.writers[id] = tx
	return car, nil
}

func (m *mockCarReader) release(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.writers {
		if w == tx {
			delete(m.writers, id)
		}
	}
}

func (m *mockCarReader) FindByID(_ context.Context, id string) (*model.Car, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", carserrors.ErrInvalidID, id)
	}
	if car, ok := m.cars[id]; ok {
		c := *car
		return &c, nil
	}
	return nil, fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
}

// ────────────────────────────────────────────────────────────────
// Recording publisher
// ────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
