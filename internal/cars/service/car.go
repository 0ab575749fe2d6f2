package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	carserrors "wheelaway/internal/cars/errors"
	"wheelaway/internal/cars/repository"
	"wheelaway/internal/cars/validator"
	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	mongotx "wheelaway/pkg/db/mongo"
	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/locale"
	"wheelaway/pkg/model"
	"wheelaway/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	minModelYear = 1990
)

// OpenBookingCounter reports bookings that still hold a car: pending or
// confirmed and not yet ended.
type OpenBookingCounter interface {
	CountOpenByCar(ctx context.Context, carID string, now time.Time) (int64, error)
}

type CarService interface {
	Create(ctx context.Context, req *model.CarCreate, actor auth.Actor) (*model.Car, error)
	GetByID(ctx context.Context, id string) (*model.Car, error)
	Search(ctx context.Context, filter model.CarFilter) ([]*model.Car, int64, error)
	Update(ctx context.Context, id string, req *model.CarUpdate, actor auth.Actor) (*model.Car, error)
	Delete(ctx context.Context, id string, actor auth.Actor) error
	Verify(ctx context.Context, id string, actor auth.Actor) (*model.Car, error)

	GetAvailabilityWindow(ctx context.Context, id string) (*model.AvailabilityWindow, error)
	UpdateAvailabilityWindow(ctx context.Context, id string, from, to time.Time, actor auth.Actor) (*model.AvailabilityWindow, error)
}

type carService struct {
	repo      repository.CarRepository
	bookings  OpenBookingCounter
	validator *validator.CarValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewCarService(
	repo repository.CarRepository,
	bookings OpenBookingCounter,
	validator *validator.CarValidator,
	cfg *config.Config,
) CarService {
	return &carService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *carService) Create(ctx context.Context, req *model.CarCreate, actor auth.Actor) (*model.Car, error) {
	if !actor.CanHost() {
		return nil, apperrors.Forbidden("Only hosts can list cars")
	}

	s.sanitizeCreate(req)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, s.validationError("Car validation failed", err)
	}

	currency, err := locale.NormalizeCurrency(req.Currency, s.cfg.DefaultCurrency)
	if err != nil {
		return nil, apperrors.Validation("Car validation failed", map[string]any{"Currency": err.Error()})
	}

	from, to, err := parseWindow(req.AvailableFrom, req.AvailableTo)
	if err != nil {
		return nil, err
	}

	car := &model.Car{
		OwnerID:       actor.UserID,
		Make:          req.Make,
		Model:         req.Model,
		Year:          sanitizer.ClampYear(req.Year, minModelYear, s.now().Year()+1),
		Category:      req.Category,
		PricePerDay:   sanitizer.NormalizePrice(req.PricePerDay),
		Currency:      currency,
		Location:      req.Location,
		Images:        req.Images,
		Description:   req.Description,
		Features:      req.Features,
		Documents:     req.Documents,
		AvailableFrom: from,
		AvailableTo:   to,
	}
	for i := range car.Documents {
		car.Documents[i].Verified = false
	}

	if err := s.validator.Validate(car); err != nil {
		return nil, s.validationError("Car validation failed", err)
	}

	if err := s.repo.Create(ctx, car); err != nil {
		s.cfg.Log.Error("Failed to create car",
			"owner_id", car.OwnerID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create car", err)
	}

	s.cfg.Log.Info("Car created successfully",
		"id", car.ID,
		"owner_id", car.OwnerID,
		"category", car.Category,
		"price_per_day", car.PricePerDay.String(),
	)
	return car, nil
}

func (s *carService) GetByID(ctx context.Context, id string) (*model.Car, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Car ID cannot be empty")
	}

	car, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve car")
	}
	return car, nil
}

func (s *carService) Search(ctx context.Context, filter model.CarFilter) ([]*model.Car, int64, error) {
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)
	if filter.Location != "" {
		filter.Location = sanitizer.TrimAndNormalize(filter.Location)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, apperrors.InvalidRange("from must be before to")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, 0, apperrors.InvalidRange("min_price cannot exceed max_price")
	}

	var count int64
	var cars []*model.Car
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count cars", "error", err)
			errCount = apperrors.Internal("Failed to count cars", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		cars, err = s.repo.Search(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to search cars",
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search cars", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Car search completed",
		"category", filter.Category,
		"location", filter.Location,
		"count", len(cars),
		"total_count", count,
	)
	return cars, count, nil
}

func (s *carService) Update(ctx context.Context, id string, req *model.CarUpdate, actor auth.Actor) (*model.Car, error) {
	existing, err := s.ownedCar(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	s.sanitizeUpdate(req)
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, s.validationError("Invalid update input", err)
	}

	merged := mergeCarUpdate(existing, req)
	if err := s.validator.Validate(merged); err != nil {
		return nil, s.validationError("Car validation failed", err)
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update car")
	}

	s.cfg.Log.Info("Car updated successfully", "id", id, "actor", actor.UserID)
	return merged, nil
}

// Delete removes a car with no open bookings. The count and the delete run in
// one transaction that bumps the car's booking sequence, so a reservation
// committing concurrently aborts one side instead of outliving the car.
func (s *carService) Delete(ctx context.Context, id string, actor auth.Actor) error {
	if _, err := s.ownedCar(ctx, id, actor); err != nil {
		return err
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.repo.BumpBookingSeq(sessCtx, id); err != nil {
			return err
		}

		open, err := s.bookings.CountOpenByCar(sessCtx, id, s.now())
		if err != nil {
			return fmt.Errorf("failed to count open bookings: %w", err)
		}
		if open > 0 {
			return apperrors.Conflict(fmt.Sprintf("Car has %d open booking(s) and cannot be deleted", open)).
				WithDetails(map[string]any{"open_bookings": open})
		}

		return s.repo.Delete(sessCtx, id)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		if mongotx.IsWriteConflict(err) {
			return apperrors.Conflict("Car is being booked right now. Please try again.")
		}
		return s.mapRepoError(err, id, "Failed to delete car")
	}

	s.cfg.Log.Info("Car deleted successfully", "id", id, "actor", actor.UserID)
	return nil
}

func (s *carService) Verify(ctx context.Context, id string, actor auth.Actor) (*model.Car, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can verify cars")
	}

	if err := s.repo.SetVerified(ctx, id, s.now().Truncate(time.Millisecond)); err != nil {
		return nil, s.mapRepoError(err, id, "Failed to verify car")
	}

	s.cfg.Log.Info("Car verified", "id", id, "actor", actor.UserID)
	return s.GetByID(ctx, id)
}

func (s *carService) GetAvailabilityWindow(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	car, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return windowOf(car), nil
}

func (s *carService) UpdateAvailabilityWindow(ctx context.Context, id string, from, to time.Time, actor auth.Actor) (*model.AvailabilityWindow, error) {
	from, to = httputil.TruncateDay(from), httputil.TruncateDay(to)
	if !from.Before(to) {
		return nil, apperrors.InvalidRange("available_from must be before available_to")
	}

	car, err := s.ownedCar(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateWindow(ctx, id, from, to); err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update availability window")
	}

	car.AvailableFrom, car.AvailableTo = from, to
	s.cfg.Log.Info("Availability window updated",
		"id", id,
		"available_from", from.Format(httputil.DateLayout),
		"available_to", to.Format(httputil.DateLayout),
		"actor", actor.UserID,
	)
	return windowOf(car), nil
}

// --- Helpers ---

func (s *carService) ownedCar(ctx context.Context, id string, actor auth.Actor) (*model.Car, error) {
	car, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(car.OwnerID) {
		s.cfg.Log.Warn("Car access denied", "id", id, "actor", actor.UserID)
		return nil, apperrors.Forbidden("Only the car owner or an admin can modify this car")
	}
	return car, nil
}

func (s *carService) mapRepoError(err error, id, msg string) error {
	if errors.Is(err, carserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Car", id)
	}
	if errors.Is(err, carserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid car ID format")
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *carService) validationError(msg string, err error) error {
	s.cfg.Log.Warn(msg, "error", err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}

func (s *carService) sanitizeCreate(req *model.CarCreate) {
	req.Make = sanitizer.NormalizeName(req.Make)
	req.Model = sanitizer.NormalizeName(req.Model)
	req.Location = sanitizer.NormalizeLocation(req.Location)
	req.Description = sanitizer.TrimAndNormalize(req.Description)
	req.Features = sanitizer.NormalizeFeatures(req.Features)
	req.Images = sanitizer.NormalizeImages(req.Images)
}

func (s *carService) sanitizeUpdate(req *model.CarUpdate) {
	if req.Location != nil {
		loc := sanitizer.NormalizeLocation(*req.Location)
		req.Location = &loc
	}
	if req.Description != nil {
		desc := sanitizer.TrimAndNormalize(*req.Description)
		req.Description = &desc
	}
	if req.PricePerDay != nil {
		price := sanitizer.NormalizePrice(*req.PricePerDay)
		req.PricePerDay = &price
	}
	if req.Features != nil {
		req.Features = sanitizer.NormalizeFeatures(req.Features)
	}
	if req.Images != nil {
		req.Images = sanitizer.NormalizeImages(req.Images)
	}
}

func mergeCarUpdate(existing *model.Car, req *model.CarUpdate) *model.Car {
	merged := *existing

	if req.PricePerDay != nil {
		merged.PricePerDay = *req.PricePerDay
	}
	if req.Location != nil {
		merged.Location = *req.Location
	}
	if req.Description != nil {
		merged.Description = *req.Description
	}
	if req.Features != nil {
		merged.Features = req.Features
	}
	if req.Images != nil {
		merged.Images = req.Images
	}

	return &merged
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := httputil.ParseDate(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("invalid available_from: " + fromStr)
	}
	to, err := httputil.ParseDate(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("invalid available_to: " + toStr)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, apperrors.InvalidRange("available_from must be before available_to")
	}
	return from, to, nil
}

func windowOf(car *model.Car) *model.AvailabilityWindow {
	return &model.AvailabilityWindow{
		CarID:         car.ID,
		AvailableFrom: car.AvailableFrom,
		AvailableTo:   car.AvailableTo,
		PricePerDay:   car.PricePerDay,
		Currency:      car.Currency,
	}
}
