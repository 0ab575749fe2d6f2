package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wheelaway/internal/cars/service"
	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

const ownerMe = "me"

type CarHandler struct {
	service service.CarService
	log     *logger.Logger
}

func NewCarHandler(service service.CarService, log *logger.Logger) *CarHandler {
	return &CarHandler{
		service: service,
		log:     log,
	}
}

func (h *CarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func actorOf(r *http.Request) (auth.Actor, error) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Actor{}, apperrors.Unauthorized("Authentication required")
	}
	return actor, nil
}

func (h *CarHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.CarCreate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	car, err := h.service.Create(r.Context(), &req, actor)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, car); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *CarHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	car, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	cars, total, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, cars, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *CarHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var req model.CarUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	car, err := h.service.Update(r.Context(), ps.ByName("id"), &req, actor)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), actor); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CarHandler) Verify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	car, err := h.service.Verify(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "Verify", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) GetWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	window, err := h.service.GetAvailabilityWindow(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetWindow", err)
		return
	}

	if err := httputil.WriteSuccess(w, window); err != nil {
		h.log.Error("failed to write success response", "handler", "GetWindow", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) UpdateWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, "UpdateWindow", err)
		return
	}

	var req model.WindowUpdate
	if err := httputil.DecodeStrict(r, &req); err != nil {
		h.writeError(w, "UpdateWindow", err)
		return
	}

	from, err := httputil.ParseDate(req.AvailableFrom)
	if err != nil {
		h.writeError(w, "UpdateWindow", apperrors.InvalidInput("invalid available_from: "+req.AvailableFrom))
		return
	}
	to, err := httputil.ParseDate(req.AvailableTo)
	if err != nil {
		h.writeError(w, "UpdateWindow", apperrors.InvalidInput("invalid available_to: "+req.AvailableTo))
		return
	}

	window, err := h.service.UpdateAvailabilityWindow(r.Context(), ps.ByName("id"), from, to, actor)
	if err != nil {
		h.writeError(w, "UpdateWindow", err)
		return
	}

	if err := httputil.WriteSuccess(w, window); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateWindow", "operation", "WriteSuccess", "error", err)
	}
}

func parseFilter(r *http.Request) (model.CarFilter, error) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return model.CarFilter{}, err
	}

	filter := model.CarFilter{
		Category: query.Get("category"),
		Location: query.Get("location"),
		OwnerID:  query.Get("owner_id"),
		Sort:     query.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}

	switch filter.Sort {
	case "", model.SortNewest, model.SortPriceAsc, model.SortPriceDesc, model.SortRating:
	default:
		return filter, apperrors.InvalidInput("invalid sort parameter: " + filter.Sort)
	}

	if filter.OwnerID == ownerMe {
		actor, err := actorOf(r)
		if err != nil {
			return filter, err
		}
		filter.OwnerID = actor.UserID
	}

	for name, dst := range map[string]**decimal.Decimal{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		if raw := query.Get(name); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return filter, apperrors.InvalidInput("invalid " + name + " parameter: " + raw)
			}
			*dst = &d
		}
	}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := query.Get(name); raw != "" {
			t, err := httputil.ParseDate(raw)
			if err != nil {
				return filter, apperrors.InvalidInput("invalid " + name + " parameter: " + raw)
			}
			*dst = &t
		}
	}

	if raw := query.Get("verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid verified parameter: " + raw)
		}
		filter.Verified = &v
	}

	return filter, nil
}

// IsPublic lets anonymous visitors browse the catalog.
func (h *CarHandler) IsPublic(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		strings.HasPrefix(r.URL.Path, "/api/v1/cars") &&
		r.URL.Query().Get("owner_id") != ownerMe
}

func (h *CarHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/cars", h.Create)
	router.GET("/api/v1/cars", h.Search)
	router.GET("/api/v1/cars/id/:id", h.GetByID)
	router.PATCH("/api/v1/cars/id/:id", h.Update)
	router.DELETE("/api/v1/cars/id/:id", h.Delete)
	router.GET("/api/v1/cars/id/:id/window", h.GetWindow)
	router.PATCH("/api/v1/cars/id/:id/window", h.UpdateWindow)
	router.PATCH("/api/v1/cars/id/:id/verify", h.Verify)
}
