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

type ContractCreator interface {
	CreateContract(ctx context.Context, req *api.ContractRequest) (*api.ContractResponse, error)
}

type Request struct {
	api.ContractRequest
}

type Response struct {
	response.Response
	Contract api.ContractResponse `json:"contract,omitzero"`
}

func New(log *slog.Logger, creator ContractCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contracts.create.New"

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

		contract, err := creator.CreateContract(r.Context(), &req.ContractRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to create contract", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create contract"))
			return
		}

		log.Info("Contract created", slog.String("id", contract.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Contract: *contract,
		})
	}
}
