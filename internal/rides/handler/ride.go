package handler

import (
	"net/http"
	"strings"

	"wheelaway/internal/rides/service"
	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const driverMe = "me"

type RideHandler struct {
	service service.RideService
	log     *logger.Logger
}

func NewRideHandler(service service.RideService, log *logger.Logger) *RideHandler {
	return &RideHandler{
		service: service,
		log:     log,
	}
}

func (h *RideHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *RideHandler) writeRide(w http.ResponseWriter, handler string, ride *model.Ride) {
	if err := httputil.WriteSuccess(w, ride); err != nil {
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

func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.RideCreate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	ride, err := h.service.Create(r.Context(), &req, actor)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, ride); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *RideHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ride, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeRide(w, "GetByID", ride)
}

func (h *RideHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	rides, total, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, rides, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *RideHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	rides, total, err := h.service.ListAll(r.Context(), filter, actor)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	if err := httputil.WritePaginated(w, rides, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *RideHandler) Join(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Join", err)
		return
	}

	var req model.JoinRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeStrict(r, &req); err != nil {
			h.writeError(w, "Join", err)
			return
		}
	}

	ride, err := h.service.Join(r.Context(), ps.ByName("id"), &req, actor)
	if err != nil {
		h.writeError(w, "Join", err)
		return
	}
	h.writeRide(w, "Join", ride)
}

func (h *RideHandler) SetPassengerStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "SetPassengerStatus", err)
		return
	}

	var req model.PassengerUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "SetPassengerStatus", err)
		return
	}

	ride, err := h.service.SetPassengerStatus(r.Context(), ps.ByName("id"), ps.ByName("passenger_id"), req.Status, actor)
	if err != nil {
		h.writeError(w, "SetPassengerStatus", err)
		return
	}
	h.writeRide(w, "SetPassengerStatus", ride)
}

func (h *RideHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	var req model.RideStatusUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	ride, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), req.Status, actor)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}
	h.writeRide(w, "UpdateStatus", ride)
}

// Cancel keeps the ride and its passengers; only the status changes.
func (h *RideHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	ride, err := h.service.Cancel(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeRide(w, "Cancel", ride)
}

func parseFilter(r *http.Request) (model.RideFilter, error) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return model.RideFilter{}, err
	}

	filter := model.RideFilter{
		Source:      query.Get("source"),
		Destination: query.Get("destination"),
		DriverID:    query.Get("driver_id"),
		Limit:       limit,
		Offset:      offset,
	}

	if filter.DriverID == driverMe {
		actor, err := actorOf(r)
		if err != nil {
			return filter, err
		}
		filter.DriverID = actor.UserID
	}

	if raw := query.Get("date"); raw != "" {
		d, err := httputil.ParseDate(raw)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid date parameter: " + raw)
		}
		filter.Date = &d
	}

	return filter, nil
}

// IsPublic lets anonymous visitors search rides and view one.
func (h *RideHandler) IsPublic(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		strings.HasPrefix(r.URL.Path, "/api/v1/rides") &&
		r.URL.Query().Get("driver_id") != driverMe
}

func (h *RideHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/rides", h.Search)
	router.POST("/api/v1/rides", h.Create)
	router.GET("/api/v1/rides/id/:id", h.GetByID)
	router.DELETE("/api/v1/rides/id/:id", h.Cancel)
	router.POST("/api/v1/rides/id/:id/join", h.Join)
	router.PATCH("/api/v1/rides/id/:id/passengers/:passenger_id", h.SetPassengerStatus)
	router.PATCH("/api/v1/rides/id/:id/status", h.UpdateStatus)
	router.GET("/api/v1/admin/rides", h.ListAll)
}
