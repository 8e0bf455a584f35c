package expand

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tutorflow-service/api"
	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type TemplateExpander interface {
	ExpandTemplate(ctx context.Context, id string, req *api.ExpandRequest) (*api.ExpansionResponse, error)
}

type Request struct {
	api.ExpandRequest
}

type Response struct {
	response.Response
	api.ExpansionResponse
}

// New generates occurrences from the template. Already materialized dates are
// skipped, so rerunning is safe. With dry_run the plan is returned without
// writing anything.
func New(log *slog.Logger, expander TemplateExpander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.templates.expand.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		result, err := expander.ExpandTemplate(r.Context(), id, &req.ExpandRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("contract is locked by another operation")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "contract is locked, retry"))
			return
		}

		if err != nil {
			log.Error("Failed to expand template", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to expand template"))
			return
		}

		log.Info("Template expanded",
			slog.String("id", id),
			slog.String("job_id", result.JobID),
			slog.Int("created", len(result.Created)),
			slog.Int("skipped", result.Skipped),
			slog.Bool("dry_run", req.DryRun),
		)

		render.JSON(w, r, Response{
			ExpansionResponse: *result,
		})
	}
}
