package service

import (
	"context"
	"errors"
	"fmt"

	notificationserrors "wheelaway/internal/notifications/errors"
	"wheelaway/internal/notifications/mailer"
	"wheelaway/internal/notifications/repository"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
)

type NotificationService interface {
	// Notify e-mails the parties of a booking event. It returns the number of
	// e-mails sent.
	Notify(ctx context.Context, ev model.BookingEvent) (int, error)
}

type notificationService struct {
	users  repository.UserRepository
	mailer mailer.Mailer
	log    *logger.Logger
}

func NewNotificationService(users repository.UserRepository, m mailer.Mailer, log *logger.Logger) NotificationService {
	return &notificationService{
		users:  users,
		mailer: m,
		log:    log.Component("notifications"),
	}
}

func (s *notificationService) Notify(ctx context.Context, ev model.BookingEvent) (int, error) {
	log := s.log.FromContext(ctx)

	pending := drafts(ev)
	if len(pending) == 0 {
		log.Debug("No notification for event", "type", ev.Type, "booking_id", ev.BookingID)
		return 0, nil
	}

	users := make(map[recipient]*model.User, 2)
	sent := 0
	for _, d := range pending {
		user, ok := users[d.to]
		if !ok {
			var err error
			if user, err = s.resolve(ctx, ev, d.to); err != nil {
				return sent, err
			}
			users[d.to] = user
		}
		if user.Email == "" {
			log.Warn("Skipping notification without recipient address", "user_id", user.ID, "type", ev.Type)
			continue
		}

		if err := s.mailer.Send(ctx, render(d, ev, user)); err != nil {
			log.Error("Failed to send notification",
				"type", ev.Type,
				"booking_id", ev.BookingID,
				"user_id", user.ID,
				"error", err,
			)
			return sent, err
		}
		sent++
	}

	log.Info("Booking notification sent", "type", ev.Type, "booking_id", ev.BookingID, "emails", sent)
	return sent, nil
}

func (s *notificationService) resolve(ctx context.Context, ev model.BookingEvent, to recipient) (*model.User, error) {
	id := ev.UserID
	if to == toOwner {
		id = ev.OwnerID
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, notificationserrors.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve recipient %s: %w", id, err)
	}
	return user, nil
}
