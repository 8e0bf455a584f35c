package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BlockedTimeGetter interface {
	GetBlockedTime(ctx context.Context, id string) (*api.BlockedTimeResponse, error)
	ListBlockedTimes(ctx context.Context, from, to time.Time) ([]api.BlockedTimeResponse, error)
}

type Response struct {
	response.Response
	BlockedTimes []api.BlockedTimeResponse `json:"blocked_times,omitempty"`
	BlockedTime  *api.BlockedTimeResponse  `json:"blocked_time,omitempty"`
}

func New(log *slog.Logger, getter BlockedTimeGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocked_times.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			blockedTime, err := getter.GetBlockedTime(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Error("resource not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get blocked time", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get blocked time"))
				return
			}

			log.Info("Blocked time retrieved", slog.String("id", id))
			render.JSON(w, r, Response{
				BlockedTime: blockedTime,
			})
			return
		}

		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			log.Error("Invalid from", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "from must be RFC3339"))
			return
		}
		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			log.Error("Invalid to", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "to must be RFC3339"))
			return
		}

		blockedTimes, err := getter.ListBlockedTimes(r.Context(), from, to)

		if err != nil {
			log.Error("Failed to list blocked times", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list blocked times"))
			return
		}

		log.Info("Blocked times retrieved", slog.Int("count", len(blockedTimes)))
		render.JSON(w, r, Response{
			BlockedTimes: blockedTimes,
		})
	}
}
