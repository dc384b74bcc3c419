package handler

import (
	"encoding/csv"
	"encoding/json"
	"net/http"

	"agendify/internal/bookings/service"
	httputil "agendify/pkg/http"
	"agendify/pkg/logger"
	"agendify/pkg/middleware"
	"agendify/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service       service.BookingService
	authenticator *middleware.Authenticator
	log           *logger.Logger
}

func NewBookingHandler(service service.BookingService, authenticator *middleware.Authenticator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:       service,
		authenticator: authenticator,
		log:           log,
	}
}

// createRequest is the booking payload plus the caller-supplied holiday
// dates the availability check should honor.
type createRequest struct {
	model.Booking
	Holidays []string `json:"holidays,omitempty"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.Create(r.Context(), &req.Booking, req.Holidays); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, req.Booking)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	startTime, err := httputil.ExtractTimeBound(r, "start")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	endTime, err := httputil.ExtractTimeBound(r, "end")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), startTime, endTime, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, offset)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.ListMine(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, offset)
}

func (h *BookingHandler) OccupiedSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	startTime, err := httputil.ExtractTimeBound(r, "start")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	endTime, err := httputil.ExtractTimeBound(r, "end")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slots, err := h.service.OccupiedSlots(r.Context(), ps.ByName("professionalId"), startTime, endTime)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, slots)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var patch model.BookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	updated, err := h.service.Update(r.Context(), id, &patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, updated)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"id": id})
}

func (h *BookingHandler) Export(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rows, err := h.service.ExportCSV(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.csv"`)
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		h.log.Error("failed to write CSV export", "handler", "Export", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	protect := h.authenticator.Protect

	router.POST("/api/v1/bookings", protect(h.Create))
	router.GET("/api/v1/bookings", protect(h.List))
	router.GET("/api/v1/bookings/me", protect(h.ListMine))
	router.GET("/api/v1/bookings/export", protect(h.Export))
	router.GET("/api/v1/bookings/occupied/:professionalId", protect(h.OccupiedSlots))
	router.GET("/api/v1/bookings/id/:id", protect(h.GetByID))
	router.PUT("/api/v1/bookings/id/:id", protect(h.Update))
	router.DELETE("/api/v1/bookings/id/:id", protect(h.Delete))
}
