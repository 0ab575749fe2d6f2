package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	carserrors "wheelaway/internal/cars/errors"
	rideserrors "wheelaway/internal/rides/errors"
	"wheelaway/internal/rides/repository"
	"wheelaway/internal/rides/validator"
	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/locale"
	"wheelaway/pkg/model"
	"wheelaway/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CarReader resolves the optional car a driver offers a ride in.
type CarReader interface {
	FindByID(ctx context.Context, id string) (*model.Car, error)
}

type RideService interface {
	Create(ctx context.Context, req *model.RideCreate, actor auth.Actor) (*model.Ride, error)
	GetByID(ctx context.Context, id string) (*model.Ride, error)
	Search(ctx context.Context, filter model.RideFilter) ([]*model.Ride, int64, error)
	ListAll(ctx context.Context, filter model.RideFilter, actor auth.Actor) ([]*model.Ride, int64, error)
	Join(ctx context.Context, id string, req *model.JoinRequest, actor auth.Actor) (*model.Ride, error)
	SetPassengerStatus(ctx context.Context, id, passengerID, status string, actor auth.Actor) (*model.Ride, error)
	UpdateStatus(ctx context.Context, id, status string, actor auth.Actor) (*model.Ride, error)
	Cancel(ctx context.Context, id string, actor auth.Actor) (*model.Ride, error)
}

type Option func(*rideService)

func WithClock(now func() time.Time) Option {
	return func(s *rideService) { s.now = now }
}

type rideService struct {
	repo      repository.RideRepository
	cars      CarReader
	validator *validator.RideValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewRideService(
	repo repository.RideRepository,
	cars CarReader,
	validator *validator.RideValidator,
	cfg *config.Config,
	opts ...Option,
) RideService {
	s := &rideService{
		repo:      repo,
		cars:      cars,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rideTransitions lists the statuses each ride status may move to.
var rideTransitions = map[string][]string{
	model.RideStatusScheduled:  {model.RideStatusInProgress, model.RideStatusCancelled},
	model.RideStatusInProgress: {model.RideStatusCompleted},
}

func canMove(from, to string) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *rideService) Create(ctx context.Context, req *model.RideCreate, actor auth.Actor) (*model.Ride, error) {
	if actor.IsZero() {
		return nil, apperrors.Unauthorized("Sign in to offer a ride")
	}

	req.Source = sanitizer.NormalizeLocation(req.Source)
	req.Destination = sanitizer.NormalizeLocation(req.Destination)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, s.validationError("Ride validation failed", err)
	}

	departure, err := time.Parse(time.RFC3339, req.DepartureTime)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid departure_time: " + req.DepartureTime)
	}
	departure = departure.UTC().Truncate(time.Millisecond)
	if !departure.After(s.now()) {
		return nil, apperrors.InvalidInput("departure_time must be in the future")
	}

	currency, err := locale.NormalizeCurrency(req.Currency, s.cfg.DefaultCurrency)
	if err != nil {
		return nil, apperrors.Validation("Ride validation failed", map[string]any{"Currency": err.Error()})
	}

	if req.CarID != "" {
		if err := s.checkCar(ctx, req.CarID, actor); err != nil {
			return nil, err
		}
	}

	seats := req.Seats
	if seats == 0 {
		seats = model.DefaultRideSeats
	}

	ride := &model.Ride{
		DriverID:      actor.UserID,
		CarID:         req.CarID,
		Source:        req.Source,
		Destination:   req.Destination,
		DepartureTime: departure,
		Seats:         seats,
		Price:         sanitizer.NormalizePrice(req.Price),
		Currency:      currency,
		Status:        model.RideStatusScheduled,
		Passengers:    []model.Passenger{},
	}
	if err := s.validator.Validate(ride); err != nil {
		return nil, s.validationError("Ride validation failed", err)
	}

	if err := s.repo.Create(ctx, ride); err != nil {
		s.cfg.Log.Error("Failed to create ride",
			"driver_id", ride.DriverID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create ride", err)
	}

	s.cfg.Log.Info("Ride created successfully",
		"id", ride.ID,
		"driver_id", ride.DriverID,
		"departure_time", ride.DepartureTime,
		"seats", ride.Seats,
	)
	return ride, nil
}

func (s *rideService) GetByID(ctx context.Context, id string) (*model.Ride, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Ride ID cannot be empty")
	}

	ride, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve ride")
	}
	return ride, nil
}

func (s *rideService) Search(ctx context.Context, filter model.RideFilter) ([]*model.Ride, int64, error) {
	filter.AnyStatus = filter.DriverID != ""
	return s.list(ctx, filter)
}

func (s *rideService) ListAll(ctx context.Context, filter model.RideFilter, actor auth.Actor) ([]*model.Ride, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list all rides")
	}
	filter.AnyStatus = true
	return s.list(ctx, filter)
}

func (s *rideService) list(ctx context.Context, filter model.RideFilter) ([]*model.Ride, int64, error) {
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)
	if filter.Source != "" {
		filter.Source = sanitizer.TrimAndNormalize(filter.Source)
	}
	if filter.Destination != "" {
		filter.Destination = sanitizer.TrimAndNormalize(filter.Destination)
	}

	var count int64
	var rides []*model.Ride
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count rides", "error", err)
			errCount = apperrors.Internal("Failed to count rides", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		rides, err = s.repo.Search(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to search rides",
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search rides", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Ride search completed",
		"source", filter.Source,
		"destination", filter.Destination,
		"count", len(rides),
		"total_count", count,
	)
	return rides, count, nil
}

// Join asks for a seat. The seat is claimed by a single conditional update;
// when it matches nothing the ride is re-read to report why.
func (s *rideService) Join(ctx context.Context, id string, req *model.JoinRequest, actor auth.Actor) (*model.Ride, error) {
	if actor.IsZero() {
		return nil, apperrors.Unauthorized("Sign in to join a ride")
	}

	req.JoinLocation = sanitizer.NormalizeLocation(req.JoinLocation)
	if err := s.validator.ValidateJoin(req); err != nil {
		return nil, s.validationError("Invalid join request", err)
	}

	now := s.now().Truncate(time.Millisecond)
	passenger := model.Passenger{
		ID:           primitive.NewObjectID().Hex(),
		UserID:       actor.UserID,
		Status:       model.PassengerStatusPending,
		JoinLocation: req.JoinLocation,
		RequestedAt:  now,
		UpdatedAt:    now,
	}

	ride, err := s.repo.AddPassenger(ctx, id, passenger)
	if errors.Is(err, rideserrors.ErrNotApplied) {
		return nil, s.joinRefused(ctx, id, actor)
	}
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to join ride")
	}

	s.cfg.Log.Info("Passenger joined ride",
		"id", id,
		"passenger_id", passenger.ID,
		"user_id", actor.UserID,
		"seats_claimed", ride.SeatsClaimed,
	)
	return ride, nil
}

func (s *rideService) joinRefused(ctx context.Context, id string, actor auth.Actor) error {
	ride, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case ride.Status != model.RideStatusScheduled:
		return rideTransition(ride.Status, "joined")
	case ride.DriverID == actor.UserID:
		return apperrors.Forbidden("Drivers cannot join their own ride")
	case ride.HasPassenger(actor.UserID):
		return apperrors.Conflict("You have already asked to join this ride")
	default:
		return apperrors.Conflict("No seats left on this ride").
			WithDetails(map[string]any{"seats": ride.Seats})
	}
}

func (s *rideService) SetPassengerStatus(ctx context.Context, id, passengerID, status string, actor auth.Actor) (*model.Ride, error) {
	if err := s.validator.ValidatePassenger(&model.PassengerUpdate{Status: status}); err != nil {
		return nil, s.validationError("Invalid passenger status", err)
	}

	ride, err := s.drivenRide(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	p := ride.Passenger(passengerID)
	if p == nil {
		return nil, apperrors.NotFoundWithID("Passenger", passengerID)
	}
	if p.Status == status {
		return ride, nil
	}

	updated, err := s.repo.SetPassengerStatus(ctx, id, passengerID, p.Status, status, s.now().Truncate(time.Millisecond))
	if errors.Is(err, rideserrors.ErrNotApplied) {
		current, ferr := s.GetByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		if cp := current.Passenger(passengerID); cp != nil && cp.Status != p.Status {
			return nil, apperrors.Conflict("Passenger status changed concurrently. Please retry.")
		}
		if current.Status != model.RideStatusScheduled {
			return nil, rideTransition(current.Status, "re-seated")
		}
		return nil, apperrors.Conflict("No seats left on this ride")
	}
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update passenger")
	}

	s.cfg.Log.Info("Passenger status updated",
		"id", id,
		"passenger_id", passengerID,
		"from", p.Status,
		"to", status,
		"actor", actor.UserID,
	)
	return updated, nil
}

func (s *rideService) UpdateStatus(ctx context.Context, id, status string, actor auth.Actor) (*model.Ride, error) {
	if err := s.validator.ValidateStatus(&model.RideStatusUpdate{Status: status}); err != nil {
		return nil, s.validationError("Invalid ride status", err)
	}

	ride, err := s.drivenRide(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !canMove(ride.Status, status) {
		return nil, rideTransition(ride.Status, status)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, ride.Status, status, actor.UserID, s.now().Truncate(time.Millisecond))
	if errors.Is(err, rideserrors.ErrNotApplied) {
		current, ferr := s.GetByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, rideTransition(current.Status, status)
	}
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update ride status")
	}

	s.cfg.Log.Info("Ride status updated",
		"id", id,
		"from", ride.Status,
		"to", status,
		"actor", actor.UserID,
	)
	return updated, nil
}

func (s *rideService) Cancel(ctx context.Context, id string, actor auth.Actor) (*model.Ride, error) {
	return s.UpdateStatus(ctx, id, model.RideStatusCancelled, actor)
}

// --- Helpers ---

func (s *rideService) drivenRide(ctx context.Context, id string, actor auth.Actor) (*model.Ride, error) {
	ride, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(ride.DriverID) {
		s.cfg.Log.Warn("Ride access denied", "id", id, "actor", actor.UserID)
		return nil, apperrors.Forbidden("Only the driver or an admin can manage this ride")
	}
	return ride, nil
}

func (s *rideService) checkCar(ctx context.Context, carID string, actor auth.Actor) error {
	car, err := s.cars.FindByID(ctx, carID)
	if err != nil {
		if errors.Is(err, carserrors.ErrNotFound) || errors.Is(err, carserrors.ErrInvalidID) {
			return apperrors.InvalidInput("car_id does not name one of your cars")
		}
		s.cfg.Log.Error("Failed to load ride car", "car_id", carID, "error", err)
		return apperrors.Internal("Failed to load car", err)
	}
	if car.OwnerID != actor.UserID {
		return apperrors.InvalidInput("car_id does not name one of your cars")
	}
	return nil
}

func (s *rideService) mapRepoError(err error, id, msg string) error {
	if errors.Is(err, rideserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Ride", id)
	}
	if errors.Is(err, rideserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid ride ID format")
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *rideService) validationError(msg string, err error) error {
	s.cfg.Log.Warn(msg, "error", err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}

func rideTransition(from, to string) *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidTransition, fmt.Sprintf("cannot move ride from %s to %s", from, to), http.StatusConflict).
		WithDetails(map[string]any{"from": from, "to": to})
}
