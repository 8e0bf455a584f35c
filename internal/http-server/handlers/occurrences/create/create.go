package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tutorflow-service/api"
	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type OccurrenceCreator interface {
	CreateOccurrence(ctx context.Context, req *api.OccurrenceRequest) (*api.OccurrenceResponse, []api.Conflict, error)
}

type Request struct {
	api.OccurrenceRequest
}

type Response struct {
	response.Response
	Occurrence api.OccurrenceResponse `json:"occurrence,omitzero"`
	Conflicts  []api.Conflict         `json:"conflicts,omitempty"`
}

func New(log *slog.Logger, creator OccurrenceCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		occurrence, conflicts, err := creator.CreateOccurrence(r.Context(), &req.OccurrenceRequest)

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
			log.Error("Failed to create occurrence", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create occurrence"))
			return
		}

		log.Info("Occurrence created",
			slog.String("id", occurrence.ID),
			slog.Int("conflicts", len(conflicts)),
		)

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Occurrence: *occurrence,
			Conflicts:  conflicts,
		})
	}
}
