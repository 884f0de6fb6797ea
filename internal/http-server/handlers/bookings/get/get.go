package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tutordesk-service/api"
	"tutordesk-service/internal/service"
	"tutordesk-service/pkg/response"
	"tutordesk-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type BookingLister interface {
	ListBookings(ctx context.Context, tutorUserID string, filters *service.BookingFilters) (*api.BookingListResponse, error)
}

type Response struct {
	response.Response
	*api.BookingListResponse
}

func New(log *slog.Logger, lister BookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

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

		filters := &service.BookingFilters{
			Status: r.URL.Query().Get("status"),
			Search: r.URL.Query().Get("search"),
		}

		if pageStr := r.URL.Query().Get("page"); pageStr != "" {
			if page, err := strconv.Atoi(pageStr); err == nil {
				filters.Page = page
			}
		}

		if perPageStr := r.URL.Query().Get("per_page"); perPageStr != "" {
			if perPage, err := strconv.Atoi(perPageStr); err == nil {
				filters.PerPage = perPage
			}
		}

		result, err := lister.ListBookings(r.Context(), userID, filters)

		var vErr *response.ValidationError
		if errors.As(err, &vErr) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), vErr.Msg))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Tutor profile not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "tutor profile not found"))
			return
		}

		if err != nil {
			log.Error("Failed to list bookings", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list bookings"))
			return
		}

		log.Info("Bookings retrieved", slog.Int("count", len(result.Bookings)))

		render.JSON(w, r, Response{
			BookingListResponse: result,
		})
	}
}
