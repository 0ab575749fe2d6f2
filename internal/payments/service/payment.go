package service

import (
	"context"
	"errors"
	"strings"
	"time"

	paymentserrors "wheelaway/internal/payments/errors"
	"wheelaway/internal/payments/repository"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
)

// BookingPayer flips a booking's payment status. The bookings service
// satisfies it and is idempotent.
type BookingPayer interface {
	MarkPaid(ctx context.Context, id string) (*model.Booking, error)
}

type PaymentValidator interface {
	ValidatePayment(req *model.PaymentUpdate) error
}

type PaymentService interface {
	// Settle marks the booking paid and records the payment. Replays of the
	// same provider payment id are accepted and change nothing.
	Settle(ctx context.Context, bookingID string, update *model.PaymentUpdate) (*model.Booking, error)
	History(ctx context.Context, bookingID string) ([]*model.Payment, error)
}

type paymentService struct {
	repo      repository.PaymentRepository
	bookings  BookingPayer
	validator PaymentValidator
	log       *logger.Logger
	now       func() time.Time
}

func NewPaymentService(repo repository.PaymentRepository, bookings BookingPayer, v PaymentValidator, log *logger.Logger) PaymentService {
	return &paymentService{
		repo:      repo,
		bookings:  bookings,
		validator: v,
		log:       log.Component("payments"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) Settle(ctx context.Context, bookingID string, update *model.PaymentUpdate) (*model.Booking, error) {
	log := s.log.FromContext(ctx)

	if strings.TrimSpace(bookingID) == "" {
		return nil, apperrors.InvalidInput("Booking ID is required")
	}
	if update == nil {
		return nil, apperrors.InvalidInput("Payment details are required")
	}

	update.Provider = strings.TrimSpace(update.Provider)
	if update.Provider == "" {
		update.Provider = model.ProviderManual
	}
	update.Currency = strings.ToUpper(strings.TrimSpace(update.Currency))

	if err := s.validator.ValidatePayment(update); err != nil {
		log.Warn("Payment validation failed", "booking_id", bookingID, "error", err)
		return nil, validationError(err)
	}

	existing, err := s.repo.FindByProviderPayment(ctx, update.Provider, update.PaymentID)
	if err != nil {
		log.Error("Failed to look up payment", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to look up payment", err)
	}
	if existing != nil && existing.BookingID != bookingID {
		return nil, apperrors.Conflict("Payment is already recorded against another booking").
			WithDetails(map[string]any{"payment_id": update.PaymentID})
	}

	booking, err := s.bookings.MarkPaid(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		log.Debug("Payment replay ignored", "booking_id", bookingID, "payment_id", update.PaymentID)
		return booking, nil
	}

	payment := s.record(booking, update)
	if payment.Currency != booking.Currency || !payment.Amount.Equal(booking.TotalPrice) {
		log.Warn("Payment amount differs from booking total",
			"booking_id", bookingID,
			"amount", payment.Amount.String(),
			"currency", payment.Currency,
			"total_price", booking.TotalPrice.String(),
			"booking_currency", booking.Currency,
		)
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, paymentserrors.ErrDuplicate) {
			return booking, nil
		}
		log.Error("Failed to record payment", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to record payment", err)
	}

	log.Info("Payment recorded",
		"booking_id", bookingID,
		"payment_id", payment.PaymentID,
		"provider", payment.Provider,
	)
	return booking, nil
}

func (s *paymentService) History(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	payments, err := s.repo.FindByBooking(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to load payments", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to load payments", err)
	}
	return payments, nil
}

// record builds the payment document, defaulting the amount and currency to
// the booking's when the gateway did not send them.
func (s *paymentService) record(b *model.Booking, update *model.PaymentUpdate) *model.Payment {
	p := &model.Payment{
		BookingID: b.ID,
		Provider:  update.Provider,
		OrderID:   update.OrderID,
		PaymentID: update.PaymentID,
		Amount:    b.TotalPrice,
		Currency:  b.Currency,
		Method:    update.Method,
		Status:    model.PaymentRecordCaptured,
		CreatedAt: s.now().Truncate(time.Millisecond),
	}
	if update.Amount != nil {
		p.Amount = *update.Amount
	}
	if update.Currency != "" {
		p.Currency = update.Currency
	}
	return p
}

type detailer interface {
	Details() map[string]any
}

func validationError(err error) error {
	var d detailer
	if errors.As(err, &d) {
		return apperrors.Validation("Invalid payment details", d.Details())
	}
	return apperrors.Validation("Invalid payment details", map[string]any{"error": err.Error()})
}
