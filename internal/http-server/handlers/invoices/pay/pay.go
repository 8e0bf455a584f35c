package pay

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

type InvoicePayer interface {
	MarkInvoicePaid(ctx context.Context, id string) (*api.InvoiceResponse, error)
}

type Response struct {
	response.Response
	Invoice api.InvoiceResponse `json:"invoice,omitzero"`
}

// New settles the invoice and recomputes the status of every occurrence it
// references.
func New(log *slog.Logger, payer InvoicePayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.invoices.pay.New"

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

		invoice, err := payer.MarkInvoicePaid(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrInconsistentState) {
			log.Error("inconsistent billing state", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.INCONSISTENT_STATE), "inconsistent billing state"))
			return
		}

		if err != nil {
			log.Error("Failed to mark invoice paid", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to mark invoice paid"))
			return
		}

		log.Info("Invoice marked paid", slog.String("id", id))

		render.JSON(w, r, Response{
			Invoice: *invoice,
		})
	}
}
