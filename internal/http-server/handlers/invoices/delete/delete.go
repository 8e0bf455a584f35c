package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tutorflow-service/pkg/response"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type InvoiceDeleter interface {
	DeleteInvoice(ctx context.Context, id string) (int, error)
}

type Response struct {
	response.Response
	Reverted int `json:"reverted"`
}

// New removes the invoice and its items. Occurrences that lose their last
// paid coverage revert to taught.
func New(log *slog.Logger, deleter InvoiceDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.invoices.delete.New"

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

		reverted, err := deleter.DeleteInvoice(r.Context(), id)

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
			log.Error("Failed to delete invoice", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete invoice"))
			return
		}

		log.Info("Invoice deleted", slog.String("id", id), slog.Int("reverted", reverted))

		render.JSON(w, r, Response{
			Reverted: reverted,
		})
	}
}
