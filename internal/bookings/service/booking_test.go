package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wheelaway/internal/bookings/availability"
	"wheelaway/internal/bookings/validator"
	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
	"wheelaway/pkg/sealer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"pgregory.net/rapid"
)

// ────────────────────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────────────────────

const carID = "6650f1a2b3c4d5e6f7a8b9c0"

var (
	host  = auth.Actor{UserID: "host-1", Role: auth.RoleHost}
	other = auth.Actor{UserID: "host-2", Role: auth.RoleHost}
	admin = auth.Actor{UserID: "admin-1", Role: auth.RoleAdmin}
	rider = auth.Actor{UserID: "user-1", Role: auth.RoleUser}
	alice = auth.Actor{UserID: "user-2", Role: auth.RoleUser}

	fixedNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
)

func testConfig() *config.Config {
	return &config.Config{
		BookingLockTTL: 5 * time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		Log:            logger.Discard(),
	}
}

func juneCar() *model.Car {
	return &model.Car{
		ID:            carID,
		OwnerID:       host.UserID,
		Make:          "Mahindra",
		Model:         "XUV700",
		Category:      model.CategorySUV,
		PricePerDay:   decimal.NewFromInt(1000),
		Currency:      "INR",
		AvailableFrom: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AvailableTo:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

type harness struct {
	svc       BookingService
	repo      *memBookingRepository
	locks     *memLockRepository
	cars      *mockCarReader
	publisher *recordingPublisher
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		repo:      newMemBookingRepository(),
		locks:     newMemLockRepository(),
		publisher: &recordingPublisher{},
	}
	h.cars = &mockCarReader{cars: map[string]*model.Car{carID: juneCar()}}
	h.repo.cars = h.cars
	h.svc = newService(h, testConfig(), opts...)
	return h
}

func newService(h *harness, cfg *config.Config, opts ...Option) BookingService {
	opts = append([]Option{WithPublisher(h.publisher), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewBookingService(h.repo, h.locks, h.cars, validator.NewBookingValidator(logger.Discard()), cfg, opts...)
}

func request(start, end string) *model.BookingRequest {
	return &model.BookingRequest{CarID: carID, StartDate: start, EndDate: end}
}

func (h *harness) book(t *testing.T, actor auth.Actor, start, end string) *model.Booking {
	t.Helper()
	b, err := h.svc.RequestBooking(context.Background(), request(start, end), actor)
	require.NoError(t, err)
	return b
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.AsAppError(err).Code, "error: %v", err)
}

// ────────────────────────────────────────────────────────────────
// Scenarios
// ────────────────────────────────────────────────────────────────

func TestBookingScenarios(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// 1. Fits the window, priced from the car.
	first := h.book(t, rider, "2024-06-05", "2024-06-08")
	assert.Equal(t, model.BookingStatusPending, first.Status)
	assert.Equal(t, model.PaymentStatusPending, first.PaymentStatus)
	assert.Equal(t, 3, first.Days)
	assert.True(t, first.TotalPrice.Equal(decimal.NewFromInt(3000)), "total %s", first.TotalPrice)
	assert.Equal(t, host.UserID, first.OwnerID)

	// 2. Overlaps day seven.
	_, err := h.svc.RequestBooking(ctx, request("2024-06-07", "2024-06-10"), alice)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, first.ID, apperrors.AsAppError(err).Details["booking_id"])

	// 3. Starts the day the first ends.
	h.book(t, alice, "2024-06-08", "2024-06-10")

	// 4. Before the window opens.
	_, err = h.svc.RequestBooking(ctx, request("2024-05-20", "2024-05-25"), alice)
	assertCode(t, err, apperrors.CodeOutOfWindow)

	// 5. Cancelling frees the range for an identical request.
	_, err = h.svc.Cancel(ctx, first.ID, rider)
	require.NoError(t, err)
	rebooked := h.book(t, rider, "2024-06-05", "2024-06-08")
	assert.NotEqual(t, first.ID, rebooked.ID)

	// 6. Confirming twice.
	_, err = h.svc.Confirm(ctx, rebooked.ID, host)
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, rebooked.ID, host)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	assert.Equal(t, []string{
		model.EventBookingCreated,
		model.EventBookingCreated,
		model.EventBookingCancelled,
		model.EventBookingCreated,
		model.EventBookingConfirmed,
	}, h.publisher.types())
}

func TestRequestBooking_Errors(t *testing.T) {
	tests := []struct {
		name  string
		req   *model.BookingRequest
		actor auth.Actor
		code  string
	}{
		{"missing dates", &model.BookingRequest{CarID: carID}, rider, apperrors.CodeValidation},
		{"inverted range", request("2024-06-08", "2024-06-05"), rider, apperrors.CodeInvalidRange},
		{"empty range", request("2024-06-08", "2024-06-08"), rider, apperrors.CodeInvalidRange},
		{"runs past window", request("2024-06-28", "2024-07-02"), rider, apperrors.CodeOutOfWindow},
		{"unknown car", &model.BookingRequest{CarID: "6650f1a2b3c4d5e6f7a8b9ff", StartDate: "2024-06-05", EndDate: "2024-06-08"}, rider, apperrors.CodeNotFound},
		{"own car", request("2024-06-05", "2024-06-08"), host, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.RequestBooking(context.Background(), tt.req, tt.actor)
			assertCode(t, err, tt.code)
			assert.Empty(t, h.repo.filter(func(*model.Booking) bool { return true }))
			assert.Empty(t, h.publisher.types())
		})
	}
}

func TestRequestBooking_LastDayBookable(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, rider, "2024-06-30", "2024-07-01")
	assert.Equal(t, 1, b.Days)
}

func TestRequestBooking_PublishFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("broker down")

	b := h.book(t, rider, "2024-06-05", "2024-06-08")
	assert.NotNil(t, h.repo.get(b.ID))
}

// ────────────────────────────────────────────────────────────────
// Concurrency
// ────────────────────────────────────────────────────────────────

func TestRequestBooking_ConcurrentSameRange(t *testing.T) {
	h := newHarness(t)

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			actor := auth.Actor{UserID: "racer-" + string(rune('a'+i)), Role: auth.RoleUser}
			_, errs[i] = h.svc.RequestBooking(context.Background(), request("2024-06-10", "2024-06-12"), actor)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertCode(t, err, apperrors.CodeConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.repo.filter(blocking), 1)
}

func TestRequestBooking_RetriesOnceAfterLockContention(t *testing.T) {
	h := newHarness(t)
	h.locks.fails = 1

	b := h.book(t, rider, "2024-06-05", "2024-06-08")
	assert.NotEmpty(t, b.ID)
}

func TestRequestBooking_PersistentRaceIsConflict(t *testing.T) {
	h := newHarness(t)
	attempts := 0
	h.repo.createFunc = func(context.Context, *model.Booking) error {
		attempts++
		return mongo.CommandError{Code: 112, Name: "WriteConflict"}
	}

	_, err := h.svc.RequestBooking(context.Background(), request("2024-06-05", "2024-06-08"), rider)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, 2, attempts)
}

func TestRequestBooking_DuplicateKeyIsNotARace(t *testing.T) {
	h := newHarness(t)
	attempts := 0
	h.repo.createFunc = func(context.Context, *model.Booking) error {
		attempts++
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	}

	_, err := h.svc.RequestBooking(context.Background(), request("2024-06-05", "2024-06-08"), rider)
	assertCode(t, err, apperrors.CodeInternal)
	assert.Equal(t, 1, attempts)
}

// stallFirstCreate blocks the first insert until resume is closed and reports
// through stalled once it is parked.
func stallFirstCreate(h *harness) (stalled chan struct{}, resume chan struct{}) {
	stalled, resume = make(chan struct{}), make(chan struct{})
	var once sync.Once
	h.repo.createFunc = func(context.Context, *model.Booking) error {
		first := false
		once.Do(func() { first = true })
		if first {
			close(stalled)
			<-resume
		}
		return nil
	}
	return stalled, resume
}

func TestRequestBooking_CarGuardHoldsWhenLockIsBypassed(t *testing.T) {
	h := newHarness(t)
	h.locks.bypass = true
	stalled, resume := stallFirstCreate(h)

	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, firstErr = h.svc.RequestBooking(context.Background(), request("2024-06-05", "2024-06-08"), rider)
	}()
	<-stalled

	_, err := h.svc.RequestBooking(context.Background(), request("2024-06-06", "2024-06-09"), alice)
	assertCode(t, err, apperrors.CodeConflict)

	close(resume)
	<-done
	require.NoError(t, firstErr)

	active := h.repo.filter(blocking)
	require.Len(t, active, 1)
	assert.Equal(t, rider.UserID, active[0].UserID)
}

func TestRequestBooking_LapsedLockCannotDoubleBook(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.BookingLockTTL = 50 * time.Millisecond
	h.svc = newService(h, cfg)
	stalled, resume := stallFirstCreate(h)

	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, firstErr = h.svc.RequestBooking(context.Background(), request("2024-06-05", "2024-06-08"), rider)
	}()
	<-stalled
	time.Sleep(2 * cfg.BookingLockTTL)

	// The first lock has expired and is taken over, but the first transaction
	// still holds the car document.
	_, err := h.svc.RequestBooking(context.Background(), request("2024-06-06", "2024-06-09"), alice)
	assertCode(t, err, apperrors.CodeConflict)

	close(resume)
	<-done
	// The first request ran past its lock and is not committed.
	assertCode(t, firstErr, apperrors.CodeTimeout)

	assert.Empty(t, h.repo.filter(blocking))
}

func TestRequestBooking_BumpsCarGuardInsideTransaction(t *testing.T) {
	h := newHarness(t)
	h.book(t, rider, "2024-06-05", "2024-06-08")

	assert.Equal(t, 1, h.cars.bumps)
	assert.Empty(t, h.cars.writers, "car guard released after commit")
}

func TestRequestBooking_NoDoubleBooking(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(1, 12).Draw(rt, "requests")

		for i := 0; i < n; i++ {
			offset := rapid.IntRange(0, 28).Draw(rt, "offset")
			length := rapid.IntRange(1, 5).Draw(rt, "length")
			s := base.AddDate(0, 0, offset)
			e := s.AddDate(0, 0, length)
			if e.After(base.AddDate(0, 0, 30)) {
				continue
			}

			active := h.repo.filter(blocking)
			disjoint := true
			for _, b := range active {
				if availability.RangeOf(b).Overlaps(availability.Range{Start: s, End: e}) {
					disjoint = false
				}
			}

			_, err := h.svc.RequestBooking(context.Background(),
				request(s.Format("2006-01-02"), e.Format("2006-01-02")), rider)
			if disjoint && err != nil {
				rt.Fatalf("disjoint request %s..%s rejected: %v", s, e, err)
			}
			if !disjoint && !apperrors.HasCode(err, apperrors.CodeConflict) {
				rt.Fatalf("overlapping request %s..%s got %v", s, e, err)
			}

			if rapid.Bool().Draw(rt, "cancel") && len(active) > 0 {
				victim := active[rapid.IntRange(0, len(active)-1).Draw(rt, "victim")]
				if _, err := h.svc.Cancel(context.Background(), victim.ID, host); err != nil {
					rt.Fatalf("cancel: %v", err)
				}
			}
		}

		active := h.repo.filter(blocking)
		for i := range active {
			for j := i + 1; j < len(active); j++ {
				if availability.RangeOf(active[i]).Overlaps(availability.RangeOf(active[j])) {
					rt.Fatalf("double booking: %v and %v", active[i], active[j])
				}
			}
		}
	})
}

// ────────────────────────────────────────────────────────────────
// Lifecycle
// ────────────────────────────────────────────────────────────────

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		status string
		actor  auth.Actor
		code   string
	}{
		{"owner confirms pending", model.BookingStatusPending, host, ""},
		{"admin confirms pending", model.BookingStatusPending, admin, ""},
		{"requester cannot confirm", model.BookingStatusPending, rider, apperrors.CodeForbidden},
		{"other host cannot confirm", model.BookingStatusPending, other, apperrors.CodeForbidden},
		{"already confirmed", model.BookingStatusConfirmed, host, apperrors.CodeInvalidTransition},
		{"cancelled", model.BookingStatusCancelled, host, apperrors.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID, Status: tt.status})

			got, err := h.svc.Confirm(context.Background(), b.ID, tt.actor)
			if tt.code != "" {
				assertCode(t, err, tt.code)
				assert.Equal(t, tt.status, h.repo.get(b.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.BookingStatusConfirmed, got.Status)
			assert.NotNil(t, got.ConfirmedAt)
		})
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name   string
		status string
		actor  auth.Actor
		code   string
	}{
		{"requester withdraws pending", model.BookingStatusPending, rider, ""},
		{"requester cannot cancel confirmed", model.BookingStatusConfirmed, rider, apperrors.CodeForbidden},
		{"owner cancels pending", model.BookingStatusPending, host, ""},
		{"owner cancels confirmed", model.BookingStatusConfirmed, host, ""},
		{"admin cancels confirmed", model.BookingStatusConfirmed, admin, ""},
		{"stranger", model.BookingStatusPending, alice, apperrors.CodeForbidden},
		{"already cancelled by owner", model.BookingStatusCancelled, host, apperrors.CodeInvalidTransition},
		{"already cancelled by requester", model.BookingStatusCancelled, rider, apperrors.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID, Status: tt.status})

			got, err := h.svc.Cancel(context.Background(), b.ID, tt.actor)
			if tt.code != "" {
				assertCode(t, err, tt.code)
				assert.Equal(t, tt.status, h.repo.get(b.ID).Status)
				assert.Empty(t, h.publisher.types())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.BookingStatusCancelled, got.Status)
			assert.Equal(t, tt.actor.UserID, got.CancelledBy)
			assert.Equal(t, []string{model.EventBookingCancelled}, h.publisher.types())
		})
	}
}

func TestConfirm_LosesRaceToCancel(t *testing.T) {
	h := newHarness(t)
	b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID, Status: model.BookingStatusPending})

	// Cancellation lands between the owner's read and write.
	svc := h.svc.(*bookingService)
	_, err := h.repo.UpdateStatus(context.Background(), b.ID, model.BookingStatusPending, model.BookingStatusCancelled, rider.UserID, fixedNow)
	require.NoError(t, err)

	_, err = svc.transition(context.Background(), b.ID, model.BookingStatusPending, model.BookingStatusConfirmed, host)
	assertCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, model.BookingStatusCancelled, apperrors.AsAppError(err).Details["from"])
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)
	b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID, Status: model.BookingStatusPending})

	_, err := h.svc.UpdateStatus(context.Background(), b.ID, model.BookingStatusPending, host)
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = h.svc.UpdateStatus(context.Background(), b.ID, "paid", host)
	assertCode(t, err, apperrors.CodeInvalidInput)

	got, err := h.svc.UpdateStatus(context.Background(), b.ID, model.BookingStatusConfirmed, host)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)

	got, err = h.svc.UpdateStatus(context.Background(), b.ID, model.BookingStatusCancelled, host)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
}

func TestMarkPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID,
		Status: model.BookingStatusConfirmed, PaymentStatus: model.PaymentStatusPending})

	got, err := h.svc.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
	require.NotNil(t, got.PaidAt)

	again, err := h.svc.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, got.PaidAt, again.PaidAt)
	assert.Equal(t, []string{model.EventBookingPaid}, h.publisher.types())

	cancelled := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID,
		Status: model.BookingStatusCancelled, PaymentStatus: model.PaymentStatusPending})
	_, err = h.svc.MarkPaid(ctx, cancelled.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	_, err = h.svc.MarkPaid(ctx, "6650f1a2b3c4d5e6f7a8b9ff")
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = h.svc.MarkPaid(ctx, "nope")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestExpireStalePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stale := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID,
		Status: model.BookingStatusPending, CreatedAt: fixedNow.Add(-2 * time.Hour)})
	fresh := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID,
		Status: model.BookingStatusPending, CreatedAt: fixedNow.Add(-10 * time.Minute)})
	confirmed := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID,
		Status: model.BookingStatusConfirmed, CreatedAt: fixedNow.Add(-3 * time.Hour)})

	n, err := h.svc.ExpireStalePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, model.BookingStatusCancelled, h.repo.get(stale.ID).Status)
	assert.Equal(t, model.CancelledBySystem, h.repo.get(stale.ID).CancelledBy)
	assert.Equal(t, model.BookingStatusPending, h.repo.get(fresh.ID).Status)
	assert.Equal(t, model.BookingStatusConfirmed, h.repo.get(confirmed.ID).Status)
	assert.Equal(t, []string{model.EventBookingExpired}, h.publisher.types())

	n, err = h.svc.ExpireStalePending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.repo.findStaleErr = errors.New("mongo down")
	_, err = h.svc.ExpireStalePending(ctx, time.Hour)
	assertCode(t, err, apperrors.CodeInternal)
}

// ────────────────────────────────────────────────────────────────
// Reads
// ────────────────────────────────────────────────────────────────

func TestGetByID_Access(t *testing.T) {
	h := newHarness(t)
	b := h.repo.put(&model.Booking{CarID: carID, UserID: rider.UserID, OwnerID: host.UserID, Status: model.BookingStatusPending})

	for _, actor := range []auth.Actor{rider, host, admin} {
		_, err := h.svc.GetByID(context.Background(), b.ID, actor)
		assert.NoError(t, err, actor.UserID)
	}

	_, err := h.svc.GetByID(context.Background(), b.ID, alice)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.GetByID(context.Background(), "", rider)
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestAvailability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	h.book(t, rider, "2024-06-05", "2024-06-08")
	h.book(t, alice, "2024-06-10", "2024-06-12")

	res, err := h.svc.Availability(ctx, carID, day(6), day(11))
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "conflict", res.Reason)
	assert.Len(t, res.Conflicts, 2)

	res, err = h.svc.Availability(ctx, carID, day(8), day(10))
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicts)

	res, err = h.svc.Availability(ctx, carID, day(28), day(30).AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, "out_of_window", res.Reason)

	_, err = h.svc.Availability(ctx, carID, day(8), day(8))
	assertCode(t, err, apperrors.CodeInvalidRange)

	_, err = h.svc.Availability(ctx, "6650f1a2b3c4d5e6f7a8b9ff", day(8), day(9))
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestListMineAndForOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.book(t, rider, "2024-06-05", "2024-06-08")
	h.book(t, rider, "2024-06-10", "2024-06-12")
	h.book(t, alice, "2024-06-15", "2024-06-16")

	mine, total, err := h.svc.ListMine(ctx, rider, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 1)

	owned, total, err := h.svc.ListForOwner(ctx, host, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, owned, 3)

	_, _, err = h.svc.ListForOwner(ctx, rider, 10, 0)
	assertCode(t, err, apperrors.CodeForbidden)
}

// ────────────────────────────────────────────────────────────────
// Receipts
// ────────────────────────────────────────────────────────────────

func TestReceipt(t *testing.T) {
	key, err := sealer.GenerateKey()
	require.NoError(t, err)
	s, err := sealer.New(key)
	require.NoError(t, err)

	h := newHarness(t, WithSealer(s))
	ctx := context.Background()

	b := h.book(t, rider, "2024-06-05", "2024-06-08")
	require.NotEmpty(t, b.ReceiptToken)

	receipt, err := h.svc.Receipt(ctx, b.ReceiptToken)
	require.NoError(t, err)
	assert.Equal(t, b.ID, receipt.BookingID)
	assert.True(t, receipt.TotalPrice.Equal(decimal.NewFromInt(3000)))

	owned, err := h.svc.GetByID(ctx, b.ID, host)
	require.NoError(t, err)
	assert.Empty(t, owned.ReceiptToken)

	_, err = h.svc.Receipt(ctx, "garbage")
	assertCode(t, err, apperrors.CodeNotFound)

	forged, err := s.Seal(b.ID, alice.UserID)
	require.NoError(t, err)
	_, err = h.svc.Receipt(ctx, forged)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestReceipt_Disabled(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, rider, "2024-06-05", "2024-06-08")
	assert.Empty(t, b.ReceiptToken)

	_, err := h.svc.Receipt(context.Background(), "anything")
	assertCode(t, err, apperrors.CodeUnavailable)
}
