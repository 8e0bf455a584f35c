package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tutorflow-service/api"
	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type TaughtSweeper interface {
	MarkElapsedTaught(ctx context.Context, asOf time.Time) (int, error)
}

type Request struct {
	api.SweepRequest
}

type Response struct {
	response.Response
	Updated int `json:"updated"`
}

// New flips elapsed planned occurrences to taught. The as_of instant comes
// from the request so reruns over a fixed point in time are deterministic;
// an empty body sweeps up to now.
func New(log *slog.Logger, sweeper TaughtSweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.sweep.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		asOf := time.Now()
		if req.AsOf != "" {
			parsed, err := time.Parse(time.RFC3339, req.AsOf)
			if err != nil {
				log.Error("Invalid as_of", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "as_of must be RFC3339"))
				return
			}
			asOf = parsed
		}

		updated, err := sweeper.MarkElapsedTaught(r.Context(), asOf)

		if err != nil {
			log.Error("Failed to sweep occurrences", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to sweep occurrences"))
			return
		}

		log.Info("Sweep finished", slog.Int("updated", updated), slog.Time("as_of", asOf))

		render.JSON(w, r, Response{
			Updated: updated,
		})
	}
}
