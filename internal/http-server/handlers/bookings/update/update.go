package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tutordesk-service/api"
	"tutordesk-service/pkg/response"
	"tutordesk-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BookingUpdater interface {
	UpdateBooking(ctx context.Context, tutorUserID, publicID string, req *api.BookingUpdateRequest) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingUpdateRequest
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, updater BookingUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.update.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			log.Error("X-User-ID header is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "X-User-ID header is required"))
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		booking, err := updater.UpdateBooking(r.Context(), userID, id, &req.BookingUpdateRequest)

		var vErr *response.ValidationError
		if errors.As(err, &vErr) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), vErr.Msg))
			return
		}

		var cErr *response.ConflictError
		if errors.As(err, &cErr) {
			log.Error("Booking window conflicts", slog.Any("bookings", cErr.BookingRefs))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.ErrorDetails(string(response.CONFLICT),
				"time window conflicts with existing bookings", cErr.BookingRefs))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("Tutor schedule is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "schedule is locked by another operation"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to update booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to update booking"))
			return
		}

		log.Info("Booking updated", slog.String("booking_id", booking.ID))

		render.JSON(w, r, Response{
			Booking: booking,
		})
	}
}
