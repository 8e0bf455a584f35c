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

type BlockedTimeCreator interface {
	CreateBlockedTime(ctx context.Context, req *api.BlockedTimeRequest) (*api.BlockedTimeResponse, error)
}

type Request struct {
	api.BlockedTimeRequest
}

type Response struct {
	response.Response
	BlockedTime api.BlockedTimeResponse `json:"blocked_time,omitzero"`
}

func New(log *slog.Logger, creator BlockedTimeCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocked_times.create.New"

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

		blockedTime, err := creator.CreateBlockedTime(r.Context(), &req.BlockedTimeRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to create blocked time", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create blocked time"))
			return
		}

		log.Info("Blocked time created", slog.String("id", blockedTime.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			BlockedTime: *blockedTime,
		})
	}
}
