package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/config"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/httpx"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/kafkax"
	otelx "github.com/pedroo-goncalves/Projeto-FBD/libs/otel"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/runtime"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/consumer"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/handlers"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/inbox"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "patient-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewPatientRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	startConsumer := func(topic string, apply func(ctx context.Context, nif string, day time.Time) error) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		cfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "patient-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, cfg, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				PacienteNIF string `json:"paciente_nif"`
				Data        string `json:"data"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if !handlers.ValidNIF(payload.PacienteNIF) {
				logger.Error("event without valid nif", "topic", msg.Topic)
				return nil
			}
			day, err := time.Parse("2006-01-02", payload.Data)
			if err != nil {
				day = time.Time{}
			}
			return apply(ctx, payload.PacienteNIF, day)
		})
		go eventConsumer.Run(ctx)
	}

	startConsumer(config.String("KAFKA_BOOKED_TOPIC", "agenda.appointment.booked.v1"),
		func(ctx context.Context, nif string, day time.Time) error {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()
			if err := repo.ApplyBooked(ctx, tx, nif, day); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})
	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "agenda.appointment.cancelled.v1"),
		func(ctx context.Context, nif string, _ time.Time) error {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()
			if err := repo.ApplyCancelled(ctx, tx, nif); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})

	patientHandler := handlers.NewPatientHandler(repo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/patients", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			patientHandler.Create(w, r)
			return
		}
		patientHandler.List(w, r)
	})
	mux.HandleFunc("/api/v1/patients/{nif}", patientHandler.Get)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "patients")
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
