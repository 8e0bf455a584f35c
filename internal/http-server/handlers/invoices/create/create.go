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

type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req *api.InvoiceCreateRequest) (*api.InvoiceResponse, error)
}

type Request struct {
	api.InvoiceCreateRequest
}

type Response struct {
	response.Response
	Invoice api.InvoiceResponse `json:"invoice,omitzero"`
}

func New(log *slog.Logger, creator InvoiceCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.invoices.create.New"

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

		invoice, err := creator.CreateInvoice(r.Context(), &req.InvoiceCreateRequest)

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

		if errors.Is(err, response.ErrNothingToInvoice) {
			log.Error("no billable occurrences in period")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "no billable occurrences in period"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("contract is locked by another operation")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "contract is locked, retry"))
			return
		}

		if errors.Is(err, response.ErrInconsistentState) {
			log.Error("inconsistent billing state", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.INCONSISTENT_STATE), "inconsistent billing state"))
			return
		}

		if err != nil {
			log.Error("Failed to create invoice", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create invoice"))
			return
		}

		log.Info("Invoice created",
			slog.String("id", invoice.ID),
			slog.Int("items", len(invoice.Items)),
			slog.Float64("total", invoice.TotalAmount),
		)

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Invoice: *invoice,
		})
	}
}
