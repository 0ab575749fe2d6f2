package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wheelaway/internal/bookings/service"
	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────────────────────

type mockBookingService struct {
	service.BookingService

	requestFunc      func(ctx context.Context, req *model.BookingRequest, actor auth.Actor) (*model.Booking, error)
	updateStatusFunc func(ctx context.Context, id, status string, actor auth.Actor) (*model.Booking, error)
	markPaidFunc     func(ctx context.Context, id string) (*model.Booking, error)
	availabilityFunc func(ctx context.Context, carID string, start, end time.Time) (*model.AvailabilityResult, error)
	listMineFunc     func(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error)
}

func (m *mockBookingService) RequestBooking(ctx context.Context, req *model.BookingRequest, actor auth.Actor) (*model.Booking, error) {
	return m.requestFunc(ctx, req, actor)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, id, status string, actor auth.Actor) (*model.Booking, error) {
	return m.updateStatusFunc(ctx, id, status, actor)
}

func (m *mockBookingService) MarkPaid(ctx context.Context, id string) (*model.Booking, error) {
	return m.markPaidFunc(ctx, id)
}

func (m *mockBookingService) Availability(ctx context.Context, carID string, start, end time.Time) (*model.AvailabilityResult, error) {
	return m.availabilityFunc(ctx, carID, start, end)
}

func (m *mockBookingService) ListMine(ctx context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listMineFunc(ctx, actor, limit, offset)
}

type mockSettler struct {
	settleFunc func(ctx context.Context, bookingID string, req *model.PaymentUpdate) (*model.Booking, error)
}

func (m *mockSettler) Settle(ctx context.Context, bookingID string, req *model.PaymentUpdate) (*model.Booking, error) {
	return m.settleFunc(ctx, bookingID, req)
}

var (
	rider  = auth.Actor{UserID: "user-1", Role: auth.RoleUser}
	host   = auth.Actor{UserID: "host-1", Role: auth.RoleHost}
	system = auth.System()
)

func serve(h *BookingHandler, method, path, body string, actor *auth.Actor) *httptest.ResponseRecorder {
	router := httprouter.New()
	h.RegisterRoutes(router)

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		r = r.WithContext(auth.WithActor(r.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

// ────────────────────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────────────────────

func TestCreate(t *testing.T) {
	svc := &mockBookingService{requestFunc: func(_ context.Context, req *model.BookingRequest, actor auth.Actor) (*model.Booking, error) {
		if req.StartDate == "2024-06-07" {
			return nil, apperrors.Conflict("Car is already booked")
		}
		return &model.Booking{ID: "b1", CarID: req.CarID, UserID: actor.UserID, Status: model.BookingStatusPending}, nil
	}}
	h := NewBookingHandler(svc, nil, logger.Discard())

	tests := []struct {
		name  string
		body  string
		actor *auth.Actor
		want  int
	}{
		{"anonymous", `{"car_id":"c1","start_date":"2024-06-05","end_date":"2024-06-08"}`, nil, http.StatusUnauthorized},
		{"created", `{"car_id":"c1","start_date":"2024-06-05","end_date":"2024-06-08"}`, &rider, http.StatusCreated},
		{"conflict", `{"car_id":"c1","start_date":"2024-06-07","end_date":"2024-06-10"}`, &rider, http.StatusConflict},
		{"client supplied price rejected", `{"car_id":"c1","start_date":"2024-06-05","end_date":"2024-06-08","total_price":"1"}`, &rider, http.StatusBadRequest},
		{"empty body", ``, &rider, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, "/api/v1/bookings", tt.body, tt.actor)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	var gotStatus string
	svc := &mockBookingService{updateStatusFunc: func(_ context.Context, id, status string, actor auth.Actor) (*model.Booking, error) {
		gotStatus = status
		if status == model.BookingStatusConfirmed && actor.UserID != host.UserID {
			return nil, apperrors.Forbidden("Only the car owner can confirm this booking")
		}
		return &model.Booking{ID: id, Status: status}, nil
	}}
	h := NewBookingHandler(svc, nil, logger.Discard())

	rec := serve(h, http.MethodPatch, "/api/v1/bookings/id/b1/status", `{"status":"confirmed"}`, &host)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusConfirmed, gotStatus)

	rec = serve(h, http.MethodPatch, "/api/v1/bookings/id/b1/status", `{"status":"confirmed"}`, &rider)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkPaid(t *testing.T) {
	svc := &mockBookingService{markPaidFunc: func(_ context.Context, id string) (*model.Booking, error) {
		return &model.Booking{ID: id, PaymentStatus: model.PaymentStatusPaid}, nil
	}}

	h := NewBookingHandler(svc, nil, logger.Discard())
	rec := serve(h, http.MethodPatch, "/api/v1/bookings/id/b1/payment", `{"payment_id":"pay_1"}`, &rider)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, http.MethodPatch, "/api/v1/bookings/id/b1/payment", `{"payment_id":"pay_1"}`, &system)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_status":"paid"`)

	var settled string
	settler := &mockSettler{settleFunc: func(_ context.Context, bookingID string, req *model.PaymentUpdate) (*model.Booking, error) {
		settled = req.PaymentID
		return &model.Booking{ID: bookingID, PaymentStatus: model.PaymentStatusPaid}, nil
	}}
	h = NewBookingHandler(svc, settler, logger.Discard())
	rec = serve(h, http.MethodPatch, "/api/v1/bookings/id/b1/payment", `{"payment_id":"pay_2","amount":"3000"}`, &system)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay_2", settled)
}

func TestAvailability(t *testing.T) {
	svc := &mockBookingService{availabilityFunc: func(_ context.Context, carID string, start, end time.Time) (*model.AvailabilityResult, error) {
		return &model.AvailabilityResult{
			CarID:     carID,
			StartDate: start,
			EndDate:   end,
			Reason:    "conflict",
			Conflicts: []model.BookingSlot{{ID: "b1", Status: model.BookingStatusPending}},
		}, nil
	}}
	h := NewBookingHandler(svc, nil, logger.Discard())

	rec := serve(h, http.MethodGet, "/api/v1/bookings/availability?car_id=c1&start_date=2024-06-07&end_date=2024-06-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)
	assert.Contains(t, rec.Body.String(), `"id":"b1"`)

	for _, q := range []string{"start_date=2024-06-07&end_date=2024-06-10", "car_id=c1&end_date=2024-06-10", "car_id=c1&start_date=tomorrow&end_date=2024-06-10"} {
		rec = serve(h, http.MethodGet, "/api/v1/bookings/availability?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListMine(t *testing.T) {
	svc := &mockBookingService{listMineFunc: func(_ context.Context, actor auth.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
		assert.Equal(t, rider.UserID, actor.UserID)
		assert.Equal(t, 5, limit)
		return []*model.Booking{{ID: "b1"}}, 7, nil
	}}
	h := NewBookingHandler(svc, nil, logger.Discard())

	rec := serve(h, http.MethodGet, "/api/v1/bookings/mine?limit=5", "", &rider)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_count":7`)

	rec = serve(h, http.MethodGet, "/api/v1/bookings/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIsPublic(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{}, nil, logger.Discard())

	assert.True(t, h.IsPublic(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/availability?car_id=c1", nil)))
	assert.True(t, h.IsPublic(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/receipt/abc", nil)))
	assert.False(t, h.IsPublic(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)))
	assert.False(t, h.IsPublic(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)))
}
