package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wheelaway/internal/bookings/availability"
	bookingserrors "wheelaway/internal/bookings/errors"
	"wheelaway/internal/bookings/events"
	"wheelaway/internal/bookings/pricing"
	"wheelaway/internal/bookings/repository"
	"wheelaway/internal/bookings/validator"
	carserrors "wheelaway/internal/cars/errors"
	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	mongotx "wheelaway/pkg/db/mongo"
	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/model"
	"wheelaway/pkg/tracing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	publishTimeout = 5 * time.Second
	retryDelay     = 50 * time.Millisecond
)

var tracer = tracing.Tracer("wheelaway/bookings")

// CarReader loads the car a booking refers to. It is satisfied by the cars
// repository. BumpBookingSeq is called inside the booking transaction and
// writes the car document, so two reservations of one car cannot both commit.
type CarReader interface {
	FindByID(ctx context.Context, id string) (*model.Car, error)
	BumpBookingSeq(ctx context.Context, id string) (*model.Car, error)
}

// ReceiptSealer turns a booking reference into an opaque receipt token and back.
type ReceiptSealer interface {
	Seal(first, second string) (string, error)
	Open(token string) (string, string, error)
}

type BookingService interface {
	RequestBooking(ctx context.Context, req *model.BookingRequest, actor auth.Actor) (*model.Booking, error)
	GetByID(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error)
	Availability(ctx context.Context, carID string, start, end time.Time) (*model.AvailabilityResult, error)
	ListMine(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error)
	ListForOwner(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error)

	Confirm(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error)
	Cancel(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id, status string, actor auth.Actor) (*model.Booking, error)
	MarkPaid(ctx context.Context, id string) (*model.Booking, error)
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)

	Receipt(ctx context.Context, token string) (*model.Receipt, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	cars      CarReader
	publisher events.Publisher
	sealer    ReceiptSealer
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

type Option func(*bookingService)

func WithPublisher(p events.Publisher) Option {
	return func(s *bookingService) { s.publisher = p }
}

// WithSealer enables receipt tokens. Without it Receipt reports the feature
// as unavailable.
func WithSealer(sealer ReceiptSealer) Option {
	return func(s *bookingService) { s.sealer = sealer }
}

func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	cars CarReader,
	validator *validator.BookingValidator,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		cars:      cars,
		publisher: events.NopPublisher{},
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) RequestBooking(ctx context.Context, req *model.BookingRequest, actor auth.Actor) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.RequestBooking", trace.WithAttributes(
		attribute.String("car_id", req.CarID),
		attribute.String("user_id", actor.UserID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, s.validationError("Booking request validation failed", err)
	}

	candidate, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if !candidate.Valid() {
		return nil, apperrors.InvalidRange("start_date must be before end_date")
	}

	booking, err = s.reserve(ctx, req.CarID, candidate, actor)
	if isRace(err) {
		span.AddEvent("retry after storage race")
		s.cfg.Log.FromContext(ctx).Warn("Booking race detected, retrying once",
			"car_id", req.CarID,
			"error", err,
		)
		if !sleepCtx(ctx, retryDelay) {
			return nil, apperrors.Timeout("Booking request cancelled")
		}
		booking, err = s.reserve(ctx, req.CarID, candidate, actor)
	}
	if err != nil {
		if isRace(err) {
			return nil, apperrors.Conflict("This car is being booked by another request. Please try again.")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.cfg.Log.FromContext(ctx).Warn("Booking request outlived its car lock", "car_id", req.CarID)
			return nil, apperrors.Timeout("Booking request timed out. Please try again.")
		}
		s.cfg.Log.FromContext(ctx).Error("Failed to create booking", "car_id", req.CarID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.FromContext(ctx).Info("Booking created successfully",
		"id", booking.ID,
		"car_id", booking.CarID,
		"user_id", booking.UserID,
		"start_date", booking.StartDate.Format(httputil.DateLayout),
		"end_date", booking.EndDate.Format(httputil.DateLayout),
		"total_price", booking.TotalPrice.String(),
	)
	s.publish(ctx, model.EventBookingCreated, booking, actor.UserID)
	s.attachReceipt(booking)
	return booking, nil
}

// reserve runs the check-then-insert under the car lock and inside a single
// transaction. The work is bounded by the lock TTL, and the transaction bumps
// the car's booking sequence first: if the lock lapses anyway, a second
// reservation of the same car write-conflicts instead of inserting an overlap.
// Lock contention and write conflicts are returned raw so the caller can retry.
func (s *bookingService) reserve(ctx context.Context, carID string, candidate availability.Range, actor auth.Actor) (*model.Booking, error) {
	lock, err := s.lockRepo.Acquire(ctx, carID, uuid.NewString(), s.cfg.BookingLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(context.WithoutCancel(ctx), lock); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lock.ID, "error", releaseErr)
		}
	}()

	ctx, cancel := context.WithDeadline(ctx, lock.ExpiresAt)
	defer cancel()

	var booking *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		car, err := s.guardCar(sessCtx, carID)
		if err != nil {
			return err
		}
		if car.OwnerID == actor.UserID {
			return apperrors.Forbidden("You cannot book your own car")
		}

		existing, err := s.repo.FindOverlapping(sessCtx, carID, candidate.Start, candidate.End, model.BookingStatusCancelled)
		if err != nil {
			return fmt.Errorf("failed to load overlapping bookings: %w", err)
		}
		if err := availability.CanBook(availability.WindowOf(car), existing, candidate); err != nil {
			return err
		}

		quote := pricing.QuoteFor(car.PricePerDay, candidate.Start, candidate.End)
		b := &model.Booking{
			CarID:         car.ID,
			UserID:        actor.UserID,
			OwnerID:       car.OwnerID,
			StartDate:     candidate.Start,
			EndDate:       candidate.End,
			Days:          quote.Days,
			PricePerDay:   quote.PricePerDay,
			TotalPrice:    quote.Total,
			Currency:      car.Currency,
			Status:        model.BookingStatusPending,
			PaymentStatus: model.PaymentStatusPending,
		}
		if err := s.validator.Validate(b); err != nil {
			return s.validationError("Booking validation failed", err)
		}

		if err := s.repo.Create(sessCtx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string, actor auth.Actor) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(booking.OwnerID) && actor.UserID != booking.UserID {
		return nil, apperrors.Forbidden("You do not have access to this booking")
	}

	if actor.UserID == booking.UserID || actor.IsAdmin() {
		s.attachReceipt(booking)
	}
	return booking, nil
}

func (s *bookingService) Availability(ctx context.Context, carID string, start, end time.Time) (res *model.AvailabilityResult, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Availability", trace.WithAttributes(attribute.String("car_id", carID)))
	defer func() { endSpan(span, err) }()

	candidate := availability.Range{Start: httputil.TruncateDay(start), End: httputil.TruncateDay(end)}
	if !candidate.Valid() {
		return nil, apperrors.InvalidRange("start_date must be before end_date")
	}

	car, err := s.loadCar(ctx, carID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindOverlapping(ctx, carID, candidate.Start, candidate.End, model.BookingStatusCancelled)
	if err != nil {
		s.cfg.Log.Error("Failed to load overlapping bookings", "car_id", carID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	check := availability.Check(availability.WindowOf(car), existing, candidate)
	return &model.AvailabilityResult{
		CarID:     carID,
		StartDate: candidate.Start,
		EndDate:   candidate.End,
		Available: check.Available,
		Reason:    check.Reason,
		Conflicts: check.Slots(),
	}, nil
}

func (s *bookingService) ListMine(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, count, err := s.list(ctx, "user_id", actor.UserID, limit, offset,
		s.repo.CountByUser, s.repo.FindByUser)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range bookings {
		s.attachReceipt(b)
	}
	return bookings, count, nil
}

func (s *bookingService) ListForOwner(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
	if !actor.CanHost() {
		return nil, 0, apperrors.Forbidden("Only hosts can list bookings for their cars")
	}
	return s.list(ctx, "owner_id", actor.UserID, limit, offset,
		s.repo.CountByOwner, s.repo.FindByOwner)
}

func (s *bookingService) list(
	ctx context.Context,
	key, value string,
	limit int, offset int64,
	countFn func(context.Context, string) (int64, error),
	findFn func(context.Context, string, int, int64) ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = countFn(ctx, value)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", key, value, "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = findFn(ctx, value, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings",
				key, value,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Helpers ---

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) loadCar(ctx context.Context, carID string) (*model.Car, error) {
	car, err := s.cars.FindByID(ctx, carID)
	if err != nil {
		return nil, carError(err, carID)
	}
	return car, nil
}

func (s *bookingService) guardCar(ctx context.Context, carID string) (*model.Car, error) {
	car, err := s.cars.BumpBookingSeq(ctx, carID)
	if err != nil {
		return nil, carError(err, carID)
	}
	return car, nil
}

func carError(err error, carID string) error {
	switch {
	case errors.Is(err, carserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Car", carID)
	case errors.Is(err, carserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid car ID format")
	}
	return fmt.Errorf("failed to load car %s: %w", carID, err)
}

func (s *bookingService) mapRepoError(err error, id, msg string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *bookingService) validationError(msg string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		s.cfg.Log.Warn(msg, "error", err)
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}

// publish hands the event to the publisher without letting a broker failure
// or a cancelled request affect the booking already written.
func (s *bookingService) publish(ctx context.Context, eventType string, b *model.Booking, actor string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := model.NewBookingEvent(eventType, b, actor, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.FromContext(ctx).Warn("Failed to publish booking event",
			"type", eventType,
			"booking_id", b.ID,
			"error", err,
		)
	}
}

func isRace(err error) bool {
	return errors.Is(err, bookingserrors.ErrLockHeld) || mongotx.IsWriteConflict(err)
}

func parseRange(startStr, endStr string) (availability.Range, error) {
	start, err := httputil.ParseDate(startStr)
	if err != nil {
		return availability.Range{}, apperrors.InvalidInput("invalid start_date: " + startStr)
	}
	end, err := httputil.ParseDate(endStr)
	if err != nil {
		return availability.Range{}, apperrors.InvalidInput("invalid end_date: " + endStr)
	}
	return availability.Range{Start: start, End: end}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
