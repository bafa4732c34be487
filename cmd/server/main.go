package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	attendancerepo "presensi-praktikum/internal/attendance/repository"
	attendanceservice "presensi-praktikum/internal/attendance/service"
	"presensi-praktikum/internal/audit"
	auditrepo "presensi-praktikum/internal/audit/repository"
	classrepo "presensi-praktikum/internal/class/repository"
	classservice "presensi-praktikum/internal/class/service"
	"presensi-praktikum/internal/config"
	"presensi-praktikum/internal/db"
	enrollmentrepo "presensi-praktikum/internal/enrollment/repository"
	"presensi-praktikum/internal/feed"
	feedotel "presensi-praktikum/internal/feed/otel"
	"presensi-praktikum/internal/feed/producer"
	overriderepo "presensi-praktikum/internal/override/repository"
	overrideservice "presensi-praktikum/internal/override/service"
	"presensi-praktikum/internal/policy/engine"
	policyrepo "presensi-praktikum/internal/policy/repository"
	"presensi-praktikum/internal/ratelimit"
	"presensi-praktikum/internal/security"
	"presensi-praktikum/internal/server"
	"presensi-praktikum/internal/server/middleware"
	sessionrepo "presensi-praktikum/internal/session/repository"
	sessionservice "presensi-praktikum/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := feedotel.NewProviders(ctx, cfg.OTLPEndpoint, "presensi-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	var verifier middleware.Verifier
	if !cfg.AuthDisabled {
		pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		verifier = security.NewTokenVerifier(pub, cfg.JWTIssuer, cfg.JWTAudience)
	}

	classes := classrepo.NewPostgresRepository(database, cfg.ClassDefaults())
	enrollments := enrollmentrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	attendance := attendancerepo.NewPostgresRepository(database)
	overrides := overriderepo.NewPostgresRepository(database)
	policies := policyrepo.NewPostgresRepository(database)
	auditLogs := auditrepo.NewPostgresRepository(database)

	var emitters feed.Multi
	kafkaProducer, err := producer.NewKafkaProducer(cfg.FeedKafkaBrokersList(), cfg.FeedKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
	}
	if cfg.OTLPEndpoint != "" {
		emitters = append(emitters, feedotel.NewEventEmitter(providers.LoggerProvider))
	}
	var emitter feed.EventEmitter
	if len(emitters) > 0 {
		emitter = emitters
	}

	classifier := engine.NewOPAEvaluator(policies)
	limiter := ratelimit.NewSlidingWindow(cfg.RateLimitMax, cfg.RateLimitWindowDuration())
	auditLogger := audit.NewLogger(auditLogs, middleware.ClientIP)

	app := server.New(server.Deps{
		Verifier:      verifier,
		AuthDisabled:  cfg.AuthDisabled,
		Classes:       classservice.NewClassService(classes, enrollments),
		Sessions:      sessionservice.NewSessionService(sessions, classes),
		CheckIn:       attendanceservice.NewCheckInService(sessions, attendance, classes, limiter, classifier, emitter),
		Overrides:     overrideservice.NewOverrideService(overrides, attendance, sessions, enrollments, classes, emitter),
		SessionGetter: sessions,
		Enrollments:   enrollments,
		Audit:         auditLogger,
		MeterProvider: providers.MeterProvider,
		Health: func(ctx context.Context) error {
			if err := database.PingContext(ctx); err != nil {
				return err
			}
			return classifier.HealthCheck(ctx)
		},
	})

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async feed emits drain before the exporters go away.
	time.Sleep(feed.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("http server stopped")
}
