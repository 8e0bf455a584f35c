package plans

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

type PlanManager interface {
	SetMonthlyPlan(ctx context.Context, contractID string, req *api.MonthlyPlanRequest) (*api.MonthlyPlanResponse, error)
	ListMonthlyPlans(ctx context.Context, contractID string) ([]api.MonthlyPlanResponse, error)
}

type Request struct {
	api.MonthlyPlanRequest
}

type Response struct {
	response.Response
	Plan  *api.MonthlyPlanResponse  `json:"plan,omitempty"`
	Plans []api.MonthlyPlanResponse `json:"plans,omitempty"`
}

// NewSet upserts the planned unit count for one month of the contract.
func NewSet(log *slog.Logger, manager PlanManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contracts.plans.NewSet"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		contractID := chi.URLParam(r, "id")
		if contractID == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

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

		plan, err := manager.SetMonthlyPlan(r.Context(), contractID, &req.MonthlyPlanRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to set monthly plan", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to set monthly plan"))
			return
		}

		log.Info("Monthly plan set",
			slog.String("contract_id", contractID),
			slog.Int("year", plan.Year),
			slog.Int("month", plan.Month),
		)

		render.JSON(w, r, Response{
			Plan: plan,
		})
	}
}

// NewList returns every monthly plan of the contract.
func NewList(log *slog.Logger, manager PlanManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contracts.plans.NewList"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		contractID := chi.URLParam(r, "id")
		if contractID == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		plans, err := manager.ListMonthlyPlans(r.Context(), contractID)

		if err != nil {
			log.Error("Failed to list monthly plans", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list monthly plans"))
			return
		}

		log.Info("Monthly plans retrieved",
			slog.String("contract_id", contractID),
			slog.Int("count", len(plans)),
		)

		render.JSON(w, r, Response{
			Plans: plans,
		})
	}
}
