package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	carserrors "wheelaway/internal/cars/errors"
	rideserrors "wheelaway/internal/rides/errors"
	"wheelaway/internal/rides/repository"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────────────────────
// In-memory ride repository
// ────────────────────────────────────────────────────────────────

// memRideRepository applies the same conditions as the Mongo filters, each
// under one lock, so a write either lands whole or reports ErrNotApplied.
type memRideRepository struct {
	mu    sync.Mutex
	rides map[string]*model.Ride

	// beforeWrite runs ahead of every conditional update, outside the lock.
	beforeWrite func()
	searched    model.RideFilter
}

func newMemRideRepository() *memRideRepository {
	return &memRideRepository{rides: map[string]*model.Ride{}}
}

func cloneRide(r *model.Ride) *model.Ride {
	c := *r
	c.Passengers = append([]model.Passenger{}, r.Passengers...)
	return &c
}

func (m *memRideRepository) put(r *model.Ride) *model.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	if r.Passengers == nil {
		r.Passengers = []model.Passenger{}
	}
	m.rides[r.ID] = cloneRide(r)
	return r
}

func (m *memRideRepository) get(id string) *model.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRide(m.rides[id])
}

func (m *memRideRepository) Create(_ context.Context, ride *model.Ride) error {
	ride.CreatedAt = time.Now().UTC()
	ride.UpdatedAt = ride.CreatedAt
	m.put(ride)
	return nil
}

// lookup must be called with mu held.
func (m *memRideRepository) lookup(id string) (*model.Ride, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrInvalidID, id)
	}
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (m *memRideRepository) FindByID(_ context.Context, id string) (*model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return cloneRide(r), nil
}

func (m *memRideRepository) Search(_ context.Context, f model.RideFilter) ([]*model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searched = f
	out := []*model.Ride{}
	for _, r := range m.rides {
		if f.AnyStatus || r.Status == model.RideStatusScheduled {
			if f.DriverID == "" || r.DriverID == f.DriverID {
				out = append(out, cloneRide(r))
			}
		}
	}
	return out, nil
}

func (m *memRideRepository) Count(ctx context.Context, f model.RideFilter) (int64, error) {
	rides, _ := m.Search(ctx, f)
	return int64(len(rides)), nil
}

func (m *memRideRepository) AddPassenger(_ context.Context, id string, p model.Passenger) (*model.Ride, error) {
	m.hook()
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RideStatusScheduled || r.DriverID == p.UserID || r.HasPassenger(p.UserID) || r.SeatsClaimed >= r.Seats {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotApplied, id)
	}
	r.Passengers = append(r.Passengers, p)
	r.SeatsClaimed++
	r.UpdatedAt = p.RequestedAt
	return cloneRide(r), nil
}

func (m *memRideRepository) SetPassengerStatus(_ context.Context, id, passengerID, from, to string, at time.Time) (*model.Ride, error) {
	m.hook()
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	p := r.Passenger(passengerID)
	delta := repository.SeatDelta(from, to)
	if p == nil || p.Status != from {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotApplied, id)
	}
	if delta > 0 && (r.Status != model.RideStatusScheduled || r.SeatsClaimed >= r.Seats) {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotApplied, id)
	}
	p.Status = to
	p.UpdatedAt = at
	r.SeatsClaimed += delta
	r.UpdatedAt = at
	return cloneRide(r), nil
}

func (m *memRideRepository) UpdateStatus(_ context.Context, id, from, to, actor string, at time.Time) (*model.Ride, error) {
	m.hook()
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if r.Status != from {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotApplied, id)
	}
	r.Status = to
	r.UpdatedAt = at
	if to == model.RideStatusCancelled {
		r.CancelledBy = actor
		r.CancelledAt = &at
	}
	return cloneRide(r), nil
}

func (m *memRideRepository) hook() {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
}

// ────────────────────────────────────────────────────────────────
// Car reader
// ────────────────────────────────────────────────────────────────

type mockCarReader struct {
	findFunc func(ctx context.Context, id string) (*model.Car, error)
}

func (m *mockCarReader) FindByID(ctx context.Context, id string) (*model.Car, error) {
	if m.findFunc == nil {
		return nil, fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
	}
	return m.findFunc(ctx, id)
}
