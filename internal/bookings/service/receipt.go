package service

import (
	"context"
	"errors"

	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/model"
	"wheelaway/pkg/sealer"
)

// Receipt resolves a sealed receipt token. The token binds the booking to its
// requester so a guessed booking id is not enough to read a receipt.
func (s *bookingService) Receipt(ctx context.Context, token string) (*model.Receipt, error) {
	if s.sealer == nil {
		return nil, apperrors.Unavailable("Receipts")
	}

	bookingID, userID, err := s.sealer.Open(token)
	if err != nil {
		if errors.Is(err, sealer.ErrInvalidToken) {
			return nil, apperrors.NotFound("Receipt")
		}
		return nil, apperrors.Internal("Failed to read receipt token", err)
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			return nil, apperrors.NotFound("Receipt")
		}
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperrors.NotFound("Receipt")
	}

	return &model.Receipt{
		BookingID:     booking.ID,
		CarID:         booking.CarID,
		StartDate:     booking.StartDate,
		EndDate:       booking.EndDate,
		Days:          booking.Days,
		PricePerDay:   booking.PricePerDay,
		TotalPrice:    booking.TotalPrice,
		Currency:      booking.Currency,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		PaidAt:        booking.PaidAt,
	}, nil
}

func (s *bookingService) attachReceipt(b *model.Booking) {
	if s.sealer == nil || b.ID == "" {
		return
	}
	token, err := s.sealer.Seal(b.ID, b.UserID)
	if err != nil {
		s.cfg.Log.Warn("Failed to seal receipt token", "booking_id", b.ID, "error", err)
		return
	}
	b.ReceiptToken = token
}
