package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tutorflow-service/internal/config"
	blockedCreate "tutorflow-service/internal/http-server/handlers/blocked_times/create"
	blockedDelete "tutorflow-service/internal/http-server/handlers/blocked_times/delete"
	blockedGet "tutorflow-service/internal/http-server/handlers/blocked_times/get"
	blockedUpdate "tutorflow-service/internal/http-server/handlers/blocked_times/update"
	contractCreate "tutorflow-service/internal/http-server/handlers/contracts/create"
	contractGet "tutorflow-service/internal/http-server/handlers/contracts/get"
	contractPlans "tutorflow-service/internal/http-server/handlers/contracts/plans"
	invoiceCreate "tutorflow-service/internal/http-server/handlers/invoices/create"
	invoiceDelete "tutorflow-service/internal/http-server/handlers/invoices/delete"
	invoiceGet "tutorflow-service/internal/http-server/handlers/invoices/get"
	invoicePay "tutorflow-service/internal/http-server/handlers/invoices/pay"
	invoiceUnpay "tutorflow-service/internal/http-server/handlers/invoices/unpay"
	occCancel "tutorflow-service/internal/http-server/handlers/occurrences/cancel"
	occConflicts "tutorflow-service/internal/http-server/handlers/occurrences/conflicts"
	occCreate "tutorflow-service/internal/http-server/handlers/occurrences/create"
	occDelete "tutorflow-service/internal/http-server/handlers/occurrences/delete"
	occGet "tutorflow-service/internal/http-server/handlers/occurrences/get"
	occSeries "tutorflow-service/internal/http-server/handlers/occurrences/series"
	occSweep "tutorflow-service/internal/http-server/handlers/occurrences/sweep"
	occUpdate "tutorflow-service/internal/http-server/handlers/occurrences/update"
	tplCreate "tutorflow-service/internal/http-server/handlers/templates/create"
	tplDelete "tutorflow-service/internal/http-server/handlers/templates/delete"
	tplExpand "tutorflow-service/internal/http-server/handlers/templates/expand"
	tplGet "tutorflow-service/internal/http-server/handlers/templates/get"
	tplUpdate "tutorflow-service/internal/http-server/handlers/templates/update"
	"tutorflow-service/internal/lock"
	svc "tutorflow-service/internal/service"
	"tutorflow-service/internal/storage/postgres"
	slogpretty "tutorflow-service/pkg/handlers/slogPretty"
	"tutorflow-service/pkg/middleware/mwLogger"
	"tutorflow-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	loc := cfg.MustLocation()

	storage, err := postgres.New(cfg.StoragePath, loc)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(storage, locker, loc)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Contracts
	router.Post("/contracts", contractCreate.New(log, service))
	router.Get("/contracts/{id}", contractGet.New(log, service))
	router.Put("/contracts/{id}/plans", contractPlans.NewSet(log, service))
	router.Get("/contracts/{id}/plans", contractPlans.NewList(log, service))

	// Occurrences
	router.Post("/occurrences", occCreate.New(log, service))
	router.Get("/occurrences/{id}", occGet.New(log, service))
	router.Put("/occurrences/{id}", occUpdate.New(log, service))
	router.Delete("/occurrences/{id}", occDelete.New(log, service))
	router.Put("/occurrences/{id}/cancel", occCancel.New(log, service))
	router.Get("/occurrences/{id}/conflicts", occConflicts.NewForOccurrence(log, service))
	router.Get("/occurrences/{id}/template", occSeries.New(log, service))
	router.Post("/occurrences/check", occConflicts.New(log, service))
	router.Post("/occurrences/check_quota", occConflicts.NewQuota(log, service))
	router.Post("/occurrences/sweep", occSweep.New(log, service))

	// Recurrence templates
	router.Post("/templates", tplCreate.New(log, service))
	router.Get("/templates/{id}", tplGet.New(log, service))
	router.Put("/templates/{id}", tplUpdate.New(log, service))
	router.Delete("/templates/{id}", tplDelete.New(log, service))
	router.Post("/templates/{id}/expand", tplExpand.New(log, service))

	// Blocked times
	router.Post("/blocked_times", blockedCreate.New(log, service))
	router.Get("/blocked_times", blockedGet.New(log, service))
	router.Get("/blocked_times/{id}", blockedGet.New(log, service))
	router.Put("/blocked_times/{id}", blockedUpdate.New(log, service))
	router.Delete("/blocked_times/{id}", blockedDelete.New(log, service))

	// Invoices
	router.Post("/invoices", invoiceCreate.New(log, service))
	router.Get("/invoices/{id}", invoiceGet.New(log, service))
	router.Put("/invoices/{id}/pay", invoicePay.New(log, service))
	router.Put("/invoices/{id}/unpay", invoiceUnpay.New(log, service))
	router.Delete("/invoices/{id}", invoiceDelete.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	} else {
		log.Debug("Storage is nil, nothing to close")
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
