package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	carserrors "wheelaway/internal/cars/errors"
	"wheelaway/internal/rides/validator"
	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clock  = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	driver = auth.Actor{UserID: "driver-1", Role: auth.RoleUser}
	rider  = auth.Actor{UserID: "rider-1", Role: auth.RoleUser}
	admin  = auth.Actor{UserID: "admin-1", Role: auth.RoleAdmin}
)

const ownedCarID = "665f1c2e9b1d4a0012345678"

type harness struct {
	repo *memRideRepository
	cars *mockCarReader
	svc  RideService
}

func newHarness() *harness {
	h := &harness{
		repo: newMemRideRepository(),
		cars: &mockCarReader{},
	}
	cfg := &config.Config{
		DefaultCurrency: "INR",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		Log:             logger.Discard(),
	}
	h.svc = NewRideService(h.repo, h.cars, validator.NewRideValidator(cfg.Log), cfg,
		WithClock(func() time.Time { return clock }))
	return h
}

func (h *harness) scheduled(seats int) *model.Ride {
	return h.repo.put(&model.Ride{
		DriverID:      driver.UserID,
		Source:        "Pune",
		Destination:   "Mumbai",
		DepartureTime: clock.Add(24 * time.Hour),
		Seats:         seats,
		Price:         decimal.NewFromInt(450),
		Currency:      "INR",
		Status:        model.RideStatusScheduled,
	})
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

func joinAs(userID string) auth.Actor {
	return auth.Actor{UserID: userID, Role: auth.RoleUser}
}

// ────────────────────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────────────────────

func TestCreate_DefaultsSeatsAndCurrency(t *testing.T) {
	h := newHarness()

	ride, err := h.svc.Create(context.Background(), &model.RideCreate{
		Source:        "  pune ",
		Destination:   "Mumbai",
		DepartureTime: "2026-10-19T08:00:00+05:30",
		Price:         decimal.RequireFromString("450.00"),
	}, driver)
	require.NoError(t, err)

	assert.NotEmpty(t, ride.ID)
	assert.Equal(t, driver.UserID, ride.DriverID)
	assert.Equal(t, model.DefaultRideSeats, ride.Seats)
	assert.Equal(t, 0, ride.SeatsClaimed)
	assert.Equal(t, "INR", ride.Currency)
	assert.Equal(t, model.RideStatusScheduled, ride.Status)
	assert.Equal(t, time.Date(2026, 10, 19, 2, 30, 0, 0, time.UTC), ride.DepartureTime)
	assert.Empty(t, ride.Passengers)
}

func TestCreate_Rejects(t *testing.T) {
	valid := func() *model.RideCreate {
		return &model.RideCreate{
			Source:        "Pune",
			Destination:   "Mumbai",
			DepartureTime: "2026-10-19T08:00:00Z",
			Price:         decimal.NewFromInt(450),
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.RideCreate)
		actor  auth.Actor
		code   string
	}{
		{"anonymous", func(*model.RideCreate) {}, auth.Actor{}, apperrors.CodeUnauthorized},
		{"departure in the past", func(r *model.RideCreate) { r.DepartureTime = "2026-10-18T08:59:00Z" }, driver, apperrors.CodeInvalidInput},
		{"unsupported currency", func(r *model.RideCreate) { r.Currency = "XYZ" }, driver, apperrors.CodeValidation},
		{"too many seats", func(r *model.RideCreate) { r.Seats = 12 }, driver, apperrors.CodeValidation},
		{"unknown car", func(r *model.RideCreate) { r.CarID = "665f1c2e9b1d4a00123456ff" }, driver, apperrors.CodeInvalidInput},
		{"someone else's car", func(r *model.RideCreate) { r.CarID = ownedCarID }, rider, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.cars.findFunc = func(_ context.Context, id string) (*model.Car, error) {
				if id == ownedCarID {
					return &model.Car{ID: id, OwnerID: driver.UserID}, nil
				}
				return nil, fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
			}

			req := valid()
			tt.mutate(req)
			_, err := h.svc.Create(context.Background(), req, tt.actor)
			assertCode(t, err, tt.code)
		})
	}
}

func TestCreate_WithOwnCar(t *testing.T) {
	h := newHarness()
	h.cars.findFunc = func(_ context.Context, id string) (*model.Car, error) {
		return &model.Car{ID: id, OwnerID: driver.UserID}, nil
	}

	ride, err := h.svc.Create(context.Background(), &model.RideCreate{
		Source:        "Pune",
		Destination:   "Goa",
		DepartureTime: "2026-10-20T06:00:00Z",
		Seats:         2,
		Price:         decimal.NewFromInt(900),
		CarID:         ownedCarID,
	}, driver)
	require.NoError(t, err)
	assert.Equal(t, ownedCarID, ride.CarID)
	assert.Equal(t, 2, ride.Seats)
}

// ────────────────────────────────────────────────────────────────
// Join
// ────────────────────────────────────────────────────────────────

func TestJoin_ClaimsSeat(t *testing.T) {
	h := newHarness()
	ride := h.scheduled(2)

	got, err := h.svc.Join(context.Background(), ride.ID, &model.JoinRequest{JoinLocation: "lonavala"}, rider)
	require.NoError(t, err)

	assert.Equal(t, 1, got.SeatsClaimed)
	require.Len(t, got.Passengers, 1)
	p := got.Passengers[0]
	assert.Equal(t, rider.UserID, p.UserID)
	assert.Equal(t, model.PassengerStatusPending, p.Status)
	assert.Equal(t, clock, p.RequestedAt)
	assert.NotEmpty(t, p.ID)
}

func TestJoin_Refusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) string
		actor auth.Actor
		code  string
	}{
		{"missing ride", func(*harness) string { return "665f1c2e9b1d4a00123456ff" }, rider, apperrors.CodeNotFound},
		{"bad id", func(*harness) string { return "ride-1" }, rider, apperrors.CodeInvalidInput},
		{"driver joins own ride", func(h *harness) string { return h.scheduled(3).ID }, driver, apperrors.CodeForbidden},
		{"already joined", func(h *harness) string {
			id := h.scheduled(3).ID
			_, err := h.svc.Join(context.Background(), id, &model.JoinRequest{}, rider)
			require.NoError(t, err)
			return id
		}, rider, apperrors.CodeConflict},
		{"no seats left", func(h *harness) string {
			id := h.scheduled(1).ID
			_, err := h.svc.Join(context.Background(), id, &model.JoinRequest{}, joinAs("rider-2"))
			require.NoError(t, err)
			return id
		}, rider, apperrors.CodeConflict},
		{"cancelled ride", func(h *harness) string {
			r := h.scheduled(3)
			_, err := h.svc.Cancel(context.Background(), r.ID, driver)
			require.NoError(t, err)
			return r.ID
		}, rider, apperrors.CodeInvalidTransition},
		{"anonymous", func(h *harness) string { return h.scheduled(3).ID }, auth.Actor{}, apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			id := tt.setup(h)
			_, err := h.svc.Join(context.Background(), id, &model.JoinRequest{}, tt.actor)
			assertCode(t, err, tt.code)
		})
	}
}

func TestJoin_ConcurrentNeverOversubscribes(t *testing.T) {
	h := newHarness()
	ride := h.scheduled(3)

	const riders = 10
	errs := make([]error, riders)
	var wg sync.WaitGroup
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Join(context.Background(), ride.ID, &model.JoinRequest{}, joinAs(fmt.Sprintf("rider-%d", i)))
		}(i)
	}
	wg.Wait()

	claimed := 0
	for _, err := range errs {
		if err == nil {
			claimed++
			continue
		}
		assertCode(t, err, apperrors.CodeConflict)
	}
	assert.Equal(t, 3, claimed)

	final := h.repo.get(ride.ID)
	assert.Equal(t, 3, final.SeatsClaimed)
	assert.Len(t, final.Passengers, 3)
}

// ────────────────────────────────────────────────────────────────
// Passengers
// ────────────────────────────────────────────────────────────────

func joined(t *testing.T, h *harness, seats int, users ...string) (*model.Ride, []string) {
	t.Helper()
	ride := h.scheduled(seats)
	var ids []string
	for _, u := range users {
		got, err := h.svc.Join(context.Background(), ride.ID, &model.JoinRequest{}, joinAs(u))
		require.NoError(t, err)
		ids = append(ids, got.Passengers[len(got.Passengers)-1].ID)
	}
	return ride, ids
}

func TestSetPassengerStatus_SeatAccounting(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ride, ids := joined(t, h, 2, "rider-1")
	pid := ids[0]

	got, err := h.svc.SetPassengerStatus(ctx, ride.ID, pid, model.PassengerStatusAccepted, driver)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SeatsClaimed)
	assert.Equal(t, model.PassengerStatusAccepted, got.Passenger(pid).Status)

	got, err = h.svc.SetPassengerStatus(ctx, ride.ID, pid, model.PassengerStatusAccepted, driver)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SeatsClaimed)

	got, err = h.svc.SetPassengerStatus(ctx, ride.ID, pid, model.PassengerStatusRejected, driver)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsClaimed)

	got, err = h.svc.SetPassengerStatus(ctx, ride.ID, pid, model.PassengerStatusAccepted, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SeatsClaimed)
}

func TestSetPassengerStatus_ReclaimNeedsFreeSeat(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ride, ids := joined(t, h, 1, "rider-1")

	_, err := h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusRejected, driver)
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, ride.ID, &model.JoinRequest{}, joinAs("rider-2"))
	require.NoError(t, err)

	_, err = h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusAccepted, driver)
	assertCode(t, err, apperrors.CodeConflict)

	final := h.repo.get(ride.ID)
	assert.Equal(t, 1, final.SeatsClaimed)
	assert.Equal(t, model.PassengerStatusRejected, final.Passenger(ids[0]).Status)
}

func TestSetPassengerStatus_ChangedUnderneath(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ride, ids := joined(t, h, 2, "rider-1")

	h.repo.beforeWrite = func() {
		h.repo.beforeWrite = nil
		_, err := h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusRejected, admin)
		require.NoError(t, err)
	}

	_, err := h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusAccepted, driver)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, 0, h.repo.get(ride.ID).SeatsClaimed)
}

func TestSetPassengerStatus_Refusals(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ride, ids := joined(t, h, 2, "rider-1")

	_, err := h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusAccepted, rider)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.SetPassengerStatus(ctx, ride.ID, "665f1c2e9b1d4a00123456ff", model.PassengerStatusAccepted, driver)
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = h.svc.SetPassengerStatus(ctx, ride.ID, ids[0], model.PassengerStatusPending, driver)
	assertCode(t, err, apperrors.CodeValidation)
}

// ────────────────────────────────────────────────────────────────
// Status
// ────────────────────────────────────────────────────────────────

func TestUpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []string
		actor auth.Actor
		code  string
	}{
		{"start then complete", []string{model.RideStatusInProgress, model.RideStatusCompleted}, driver, ""},
		{"cancel", []string{model.RideStatusCancelled}, driver, ""},
		{"admin cancels", []string{model.RideStatusCancelled}, admin, ""},
		{"complete before start", []string{model.RideStatusCompleted}, driver, apperrors.CodeInvalidTransition},
		{"cancel after start", []string{model.RideStatusInProgress, model.RideStatusCancelled}, driver, apperrors.CodeInvalidTransition},
		{"passenger cannot manage", []string{model.RideStatusCancelled}, rider, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			ride := h.scheduled(3)

			var err error
			var got *model.Ride
			for _, status := range tt.path {
				got, err = h.svc.UpdateStatus(context.Background(), ride.ID, status, tt.actor)
				if err != nil {
					break
				}
			}
			if tt.code != "" {
				assertCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path[len(tt.path)-1], got.Status)
		})
	}
}

func TestCancel_KeepsRideAndRecordsActor(t *testing.T) {
	h := newHarness()
	ride, _ := joined(t, h, 3, "rider-1")

	got, err := h.svc.Cancel(context.Background(), ride.ID, admin)
	require.NoError(t, err)

	assert.Equal(t, model.RideStatusCancelled, got.Status)
	assert.Equal(t, admin.UserID, got.CancelledBy)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, clock, *got.CancelledAt)
	assert.Len(t, got.Passengers, 1)
}

func TestUpdateStatus_LosesRace(t *testing.T) {
	h := newHarness()
	ride := h.scheduled(3)

	h.repo.beforeWrite = func() {
		h.repo.beforeWrite = nil
		_, err := h.svc.Cancel(context.Background(), ride.ID, admin)
		require.NoError(t, err)
	}

	_, err := h.svc.UpdateStatus(context.Background(), ride.ID, model.RideStatusInProgress, driver)
	assertCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, model.RideStatusCancelled, apperrors.AsAppError(err).Details["from"])
}

// ────────────────────────────────────────────────────────────────
// Listing
// ────────────────────────────────────────────────────────────────

func TestSearch_ScheduledUnlessDriverFilter(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.scheduled(3)
	cancelled := h.scheduled(3)
	_, err := h.svc.Cancel(ctx, cancelled.ID, driver)
	require.NoError(t, err)

	rides, total, err := h.svc.Search(ctx, model.RideFilter{Source: "  Pune  "})
	require.NoError(t, err)
	assert.Len(t, rides, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Pune", h.repo.searched.Source)
	assert.Equal(t, 10, h.repo.searched.Limit)

	rides, _, err = h.svc.Search(ctx, model.RideFilter{DriverID: driver.UserID})
	require.NoError(t, err)
	assert.Len(t, rides, 2)
}

func TestListAll_AdminOnly(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	r := h.scheduled(3)
	_, err := h.svc.Cancel(ctx, r.ID, driver)
	require.NoError(t, err)

	_, _, err = h.svc.ListAll(ctx, model.RideFilter{}, rider)
	assertCode(t, err, apperrors.CodeForbidden)

	rides, total, err := h.svc.ListAll(ctx, model.RideFilter{}, admin)
	require.NoError(t, err)
	assert.Len(t, rides, 1)
	assert.Equal(t, int64(1), total)
	assert.True(t, h.repo.searched.AnyStatus)
}
