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

type ContractGetter interface {
	GetContract(ctx context.Context, id string) (*api.ContractResponse, error)
}

type Response struct {
	response.Response
	Contract api.ContractResponse `json:"contract,omitzero"`
}

func New(log *slog.Logger, getter ContractGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contracts.get.New"

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

		contract, err := getter.GetContract(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get contract", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get contract"))
			return
		}

		log.Info("Contract retrieved", slog.String("id", id))

		render.JSON(w, r, Response{
			Contract: *contract,
		})
	}
}
