package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tutorflow-service/api"
	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type OccurrenceCanceller interface {
	CancelOccurrence(ctx context.Context, id string) (*api.OccurrenceResponse, error)
}

type Response struct {
	response.Response
	Occurrence api.OccurrenceResponse `json:"occurrence,omitzero"`
}

func New(log *slog.Logger, canceller OccurrenceCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.cancel.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		occurrence, err := canceller.CancelOccurrence(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("occurrence cannot be cancelled", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "only planned or taught occurrences can be cancelled"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel occurrence", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel occurrence"))
			return
		}

		log.Info("Occurrence cancelled", slog.String("id", id))

		render.JSON(w, r, Response{
			Occurrence: *occurrence,
		})
	}
}
