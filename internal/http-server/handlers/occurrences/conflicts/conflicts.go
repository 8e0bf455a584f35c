package conflicts

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
	"github.com/go-playground/validator/v10"
)

type ConflictChecker interface {
	CheckConflicts(ctx context.Context, req *api.ConflictCheckRequest) ([]api.Conflict, error)
	GetOccurrenceConflicts(ctx context.Context, id string) ([]api.Conflict, error)
	CheckQuota(ctx context.Context, req *api.ConflictCheckRequest) (*api.Conflict, error)
}

type Request struct {
	api.ConflictCheckRequest
}

type Response struct {
	response.Response
	Conflicts []api.Conflict `json:"conflicts"`
}

// New checks a candidate occurrence from the request body without writing
// anything. The same payload with an id and exclude_self set is how clients
// re-validate an edit before saving it.
func New(log *slog.Logger, checker ConflictChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.conflicts.New"

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

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		conflicts, err := checker.CheckConflicts(r.Context(), &req.ConflictCheckRequest)

		if respondCheckError(w, r, log, err, "failed to check conflicts") {
			return
		}

		log.Info("Conflicts checked", slog.Int("count", len(conflicts)))

		render.JSON(w, r, Response{
			Conflicts: conflicts,
		})
	}
}

// NewForOccurrence re-evaluates a stored occurrence by id.
func NewForOccurrence(log *slog.Logger, checker ConflictChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.conflicts.NewForOccurrence"

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

		conflicts, err := checker.GetOccurrenceConflicts(r.Context(), id)

		if respondCheckError(w, r, log, err, "failed to check conflicts") {
			return
		}

		log.Info("Conflicts checked", slog.String("id", id), slog.Int("count", len(conflicts)))

		render.JSON(w, r, Response{
			Conflicts: conflicts,
		})
	}
}

// NewQuota runs only the monthly quota rule for the candidate.
func NewQuota(log *slog.Logger, checker ConflictChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.occurrences.conflicts.NewQuota"

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

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		conflict, err := checker.CheckQuota(r.Context(), &req.ConflictCheckRequest)

		if respondCheckError(w, r, log, err, "failed to check quota") {
			return
		}

		conflicts := []api.Conflict{}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}

		log.Info("Quota checked", slog.Int("count", len(conflicts)))

		render.JSON(w, r, Response{
			Conflicts: conflicts,
		})
	}
}

func respondCheckError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, response.ErrValidation) {
		log.Error("Validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
		return true
	}

	if errors.Is(err, response.ErrNotFound) {
		log.Error("resource not found")
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
		return true
	}

	log.Error(msg, sl.Err(err))
	w.WriteHeader(http.StatusInternalServerError)
	render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), msg))

	return true
}
