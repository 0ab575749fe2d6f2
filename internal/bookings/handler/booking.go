package handler

import (
	"context"
	"net/http"
	"strings"

	"wheelaway/internal/bookings/service"
	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// PaymentSettler records a payment and marks its booking paid.
type PaymentSettler interface {
	Settle(ctx context.Context, bookingID string, req *model.PaymentUpdate) (*model.Booking, error)
}

type BookingHandler struct {
	service service.BookingService
	settler PaymentSettler
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, settler PaymentSettler, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		settler: settler,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func actorOf(r *http.Request) (auth.Actor, error) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Actor{}, apperrors.Unauthorized("Authentication required")
	}
	return actor, nil
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.RequestBooking(r.Context(), &req, actor)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	var req model.StatusUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), req.Status, actor)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	h.writeSuccess(w, "UpdateStatus", booking)
}

// MarkPaid serves the payment callback. Only a signed gateway call, which
// runs as the system actor, or an admin may settle a booking.
func (h *BookingHandler) MarkPaid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "MarkPaid", err)
		return
	}
	if !actor.IsSystem() && !actor.IsAdmin() {
		h.writeError(w, "MarkPaid", apperrors.Forbidden("Only the payment gateway can mark bookings paid"))
		return
	}

	var req model.PaymentUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "MarkPaid", err)
		return
	}

	var booking *model.Booking
	if h.settler != nil {
		booking, err = h.settler.Settle(r.Context(), ps.ByName("id"), &req)
	} else {
		booking, err = h.service.MarkPaid(r.Context(), ps.ByName("id"))
	}
	if err != nil {
		h.writeError(w, "MarkPaid", err)
		return
	}

	h.writeSuccess(w, "MarkPaid", booking)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "ListMine", h.service.ListMine)
}

func (h *BookingHandler) ListForOwner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "ListForOwner", h.service.ListForOwner)
}

func (h *BookingHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	fn func(context.Context, auth.Actor, int, int64) ([]*model.Booking, int64, error),
) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	bookings, total, err := fn(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	carID := r.URL.Query().Get("car_id")
	if carID == "" {
		h.writeError(w, "Availability", apperrors.InvalidInput("car_id is required"))
		return
	}

	start, err := httputil.QueryDate(r, "start_date")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	end, err := httputil.QueryDate(r, "end_date")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	result, err := h.service.Availability(r.Context(), carID, start, end)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	h.writeSuccess(w, "Availability", result)
}

func (h *BookingHandler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	receipt, err := h.service.Receipt(r.Context(), ps.ByName("token"))
	if err != nil {
		h.writeError(w, "Receipt", err)
		return
	}

	h.writeSuccess(w, "Receipt", receipt)
}

// IsPublic opens the availability lookup and sealed receipts to anonymous callers.
func (h *BookingHandler) IsPublic(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		(r.URL.Path == "/api/v1/bookings/availability" || strings.HasPrefix(r.URL.Path, "/api/v1/bookings/receipt/"))
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/mine", h.ListMine)
	router.GET("/api/v1/bookings/owner", h.ListForOwner)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.GET("/api/v1/bookings/receipt/:token", h.Receipt)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id/status", h.UpdateStatus)
	router.PATCH("/api/v1/bookings/id/:id/payment", h.MarkPaid)
}
