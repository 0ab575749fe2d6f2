package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"wheelaway/pkg/model"
)

const headerPaymentSignature = "X-Payment-Signature"

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(httpClient *HttpClient) *BookingClient {
	return &BookingClient{httpClient: httpClient}
}

func bookingPath(id string) string {
	return "/api/v1/bookings/id/" + url.PathEscape(id)
}

// Create requests a booking. idempotencyKey may be empty.
func (c *BookingClient) Create(ctx context.Context, body model.BookingRequest, idempotencyKey string) (*model.Booking, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/bookings", body, headers)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Booking](resp)
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.GET(ctx, bookingPath(id))
	if err != nil {
		return nil, err
	}
	return decodeData[model.Booking](resp)
}

func (c *BookingClient) UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error) {
	resp, err := c.httpClient.PATCH(ctx, bookingPath(id)+"/status", model.StatusUpdate{Status: status})
	if err != nil {
		return nil, err
	}
	return decodeData[model.Booking](resp)
}

func (c *BookingClient) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	return c.UpdateStatus(ctx, id, model.BookingStatusConfirmed)
}

func (c *BookingClient) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return c.UpdateStatus(ctx, id, model.BookingStatusCancelled)
}

// MarkPaid reports a completed payment. A non-empty signature is sent as the
// gateway HMAC header, for callers relaying a signed callback.
func (c *BookingClient) MarkPaid(ctx context.Context, id string, body model.PaymentUpdate, signature string) (*model.Booking, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	headers := map[string]string{}
	if signature != "" {
		headers[headerPaymentSignature] = "sha256=" + signature
	}
	resp, err := c.httpClient.PATCHRaw(ctx, bookingPath(id)+"/payment", raw, headers)
	if err != nil {
		return nil, err
	}
	return decodeData[model.Booking](resp)
}

func (c *BookingClient) Availability(ctx context.Context, carID, startDate, endDate string) (*model.AvailabilityResult, error) {
	q := url.Values{}
	q.Set("car_id", carID)
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)

	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/availability?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodeData[model.AvailabilityResult](resp)
}

func (c *BookingClient) ListMine(ctx context.Context, limit int, offset int64) ([]*model.Booking, *Metadata, error) {
	resp, err := c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/bookings/mine?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, nil, err
	}
	return decodePage[*model.Booking](resp)
}

func (c *BookingClient) ListForOwner(ctx context.Context, limit int, offset int64) ([]*model.Booking, *Metadata, error) {
	resp, err := c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/bookings/owner?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, nil, err
	}
	return decodePage[*model.Booking](resp)
}

func (c *BookingClient) Receipt(ctx context.Context, token string) (*model.Receipt, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/receipt/"+url.PathEscape(token))
	if err != nil {
		return nil, err
	}
	return decodeData[model.Receipt](resp)
}
