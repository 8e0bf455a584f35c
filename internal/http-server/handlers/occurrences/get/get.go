package get

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

type OccurrenceGetter interface {
	GetOccurrence(ctx context.Context, id string) (*api.OccurrenceResponse, error)
	ComputeBillableAmount(ctx context.Context, id string) (float64, error)
}

type Response struct {
	response.Response
	Occurrence     api.OccurrenceResponse `json:"occurrence,omitzero"`
	BillableAmount float64                `json:"billable_amount"`
}

func New(log *slog.Logger, getter OccurrenceGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.get.New"

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

		occurrence, err := getter.GetOccurrence(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get occurrence", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get occurrence"))
			return
		}

		amount, err := getter.ComputeBillableAmount(r.Context(), id)
		if err != nil {
			log.Error("Failed to compute billable amount", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to compute billable amount"))
			return
		}

		log.Info("Occurrence retrieved", slog.String("id", id))

		render.JSON(w, r, Response{
			Occurrence:     *occurrence,
			BillableAmount: amount,
		})
	}
}
