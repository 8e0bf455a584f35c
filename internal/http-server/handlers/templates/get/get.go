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

type TemplateGetter interface {
	GetTemplate(ctx context.Context, id string) (*api.TemplateResponse, error)
	FindOccurrencesFor(ctx context.Context, templateID string) ([]api.OccurrenceResponse, error)
}

type Response struct {
	response.Response
	Template    api.TemplateResponse     `json:"template,omitzero"`
	Occurrences []api.OccurrenceResponse `json:"occurrences"`
}

// New returns the template together with its current series membership,
// linked occurrences plus unlinked ones that still match the pattern.
func New(log *slog.Logger, getter TemplateGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.templates.get.New"

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

		template, err := getter.GetTemplate(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get template", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get template"))
			return
		}

		occurrences, err := getter.FindOccurrencesFor(r.Context(), id)
		if err != nil {
			log.Error("Failed to resolve series occurrences", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to resolve series occurrences"))
			return
		}

		log.Info("Template retrieved",
			slog.String("id", id),
			slog.Int("occurrences", len(occurrences)),
		)

		render.JSON(w, r, Response{
			Template:    *template,
			Occurrences: occurrences,
		})
	}
}
