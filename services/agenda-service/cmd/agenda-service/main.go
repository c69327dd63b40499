package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/config"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/httpx"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/kafkax"
	otelx "github.com/pedroo-goncalves/Projeto-FBD/libs/otel"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/runtime"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/availability"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/handlers"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/outbox"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "agenda-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	policy, err := schedule.LoadPolicy(schedule.PolicyConfig{
		Intervals:       config.String("AGENDA_WORK_INTERVALS", "09:00-13:00,14:00-18:00"),
		WorkDays:        config.String("AGENDA_WORK_DAYS", "1-5"),
		StepMinutes:     config.Int("AGENDA_SLOT_STEP_MINUTES", 60),
		DefaultDuration: config.Int("AGENDA_DEFAULT_DURATION_MINUTES", 60),
		Cutoff:          config.String("AGENDA_PAST_CUTOFF", "inclusive"),
		Timezone:        config.String("AGENDA_TIMEZONE", "Europe/Lisbon"),
	})
	if err != nil {
		logger.Error("invalid calendar policy", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	providerRepo := storage.NewProviderRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	resolver := availability.NewResolver(policy, apptRepo, providerRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	slotsHandler := handlers.NewSlotsHandler(resolver, policy, logger)
	bookingHandler := handlers.NewBookingHandler(apptRepo, providerRepo, outboxRepo, policy, logger)
	agendaHandler := handlers.NewAgendaHandler(apptRepo, providerRepo, policy, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/agenda/slots", slotsHandler.Slots)
	mux.HandleFunc("/api/v1/agenda/appointments", bookingHandler.Create)
	mux.HandleFunc("/api/v1/agenda/appointments/{id}", bookingHandler.Detail)
	mux.HandleFunc("/api/v1/agenda/appointments/{id}/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/agenda/appointments/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/agenda/events", agendaHandler.Events)
	mux.HandleFunc("/api/v1/agenda/providers", agendaHandler.Providers)
	mux.HandleFunc("/api/v1/agenda/dashboard", agendaHandler.Dashboard)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "agenda")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
