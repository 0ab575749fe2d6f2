package service

import (
	"fmt"
	"strings"

	"wheelaway/internal/notifications/mailer"
	"wheelaway/pkg/locale"
	"wheelaway/pkg/model"
)

const dateLayout = "Mon, 02 Jan 2006"

type recipient int

const (
	toRequester recipient = iota
	toOwner
)

type draft struct {
	to      recipient
	subject string
	body    string
}

// drafts lists the messages an event produces.
func drafts(ev model.BookingEvent) []draft {
	switch ev.Type {
	case model.EventBookingCreated:
		return []draft{
			{toOwner, "New booking request for your car", "%[1]s, you have a new booking request for %[3]s. Total %[4]s. Please confirm or decline it in your dashboard."},
			{toRequester, "Booking request received", "%[1]s, your booking request for %[3]s has been sent to the host. Total %[4]s."},
		}
	case model.EventBookingConfirmed:
		return []draft{
			{toRequester, "Your booking is confirmed", "%[1]s, your booking for %[3]s has been confirmed by the host. Total %[4]s."},
		}
	case model.EventBookingCancelled:
		switch ev.Actor {
		case ev.UserID:
			return []draft{
				{toOwner, "Booking cancelled by the renter", "%[1]s, the booking for %[3]s has been cancelled by the renter."},
			}
		case ev.OwnerID:
			return []draft{
				{toRequester, "Your booking was cancelled", "%[1]s, your booking for %[3]s has been cancelled by the host."},
			}
		default:
			return []draft{
				{toRequester, "Your booking was cancelled", "%[1]s, your booking for %[3]s has been cancelled."},
				{toOwner, "A booking was cancelled", "%[1]s, the booking for %[3]s has been cancelled."},
			}
		}
	case model.EventBookingPaid:
		return []draft{
			{toRequester, "Payment received", "%[1]s, we received your payment of %[4]s for %[3]s. Booking reference %[2]s."},
			{toOwner, "Booking paid", "%[1]s, the booking for %[3]s has been paid (%[4]s)."},
		}
	case model.EventBookingExpired:
		return []draft{
			{toRequester, "Your booking request expired", "%[1]s, the host did not confirm your request for %[3]s in time, so the dates have been released."},
		}
	}
	return nil
}

func render(d draft, ev model.BookingEvent, user *model.User) mailer.Email {
	period := fmt.Sprintf("%s to %s", ev.StartDate.UTC().Format(dateLayout), ev.EndDate.UTC().Format(dateLayout))
	body := fmt.Sprintf(d.body, greeting(user), ev.BookingID, period, locale.FormatAmount(ev.TotalPrice, ev.Currency))

	return mailer.Email{
		To:      user.Email,
		ToName:  user.Name,
		Subject: d.subject,
		Text:    body + "\n\nThe WheelAway team",
	}
}

func greeting(user *model.User) string {
	name := strings.TrimSpace(user.Name)
	if name == "" {
		return "Hello"
	}
	return "Hi " + name
}
