package series

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

type SeriesResolver interface {
	FindTemplateFor(ctx context.Context, occurrenceID string) (*api.TemplateResponse, error)
}

type Response struct {
	response.Response
	Template *api.TemplateResponse `json:"template,omitempty"`
}

// New resolves the recurrence series an occurrence belongs to. A null
// template means the occurrence is a standalone lesson.
func New(log *slog.Logger, resolver SeriesResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.series.New"

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

		template, err := resolver.FindTemplateFor(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to resolve series", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to resolve series"))
			return
		}

		log.Info("Series resolved", slog.String("id", id), slog.Bool("matched", template != nil))

		render.JSON(w, r, Response{
			Template: template,
		})
	}
}
