package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	api "github.com/lumenlms/assessment-engine/internal/api/http"
	"github.com/lumenlms/assessment-engine/internal/attempt"
	auth "github.com/lumenlms/assessment-engine/internal/auth/middleware"
	"github.com/lumenlms/assessment-engine/internal/catalog"
	"github.com/lumenlms/assessment-engine/internal/config"
	"github.com/lumenlms/assessment-engine/internal/db"
	"github.com/lumenlms/assessment-engine/internal/eventlog"
	"github.com/lumenlms/assessment-engine/internal/grading"
	"github.com/lumenlms/assessment-engine/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	log := logrus.New()
	log.SetLevel(cfg.ParseLogLevel())
	log.SetFormatter(&logrus.JSONFormatter{})

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	catStore := catalog.NewSQLStore(dbh)
	attStore := attempt.NewSQLStore(dbh)
	events := eventlog.NewRepo(dbh)

	svc := attempt.NewService(attStore, catStore,
		attempt.WithGrader(grading.New(grading.WithLogger(log))),
		attempt.WithEvents(events),
		attempt.WithLogger(log),
	)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.AdminUser, cfg.AdminPassHash)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("assessment:create")).
			Post("/assessments", api.CreateAssessmentHandler(catStore, svc))
		pr.With(rbac.Require("assessment:view")).
			Get("/assessments/{assessmentID}", api.GetAssessmentHandler(catStore))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.CreateAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/questions", api.AttemptQuestionsHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", api.SaveResponseHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/responses", api.ListResponsesHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))

		// Grading (teacher)
		pr.With(rbac.Require("attempt:grade")).
			Get("/attempts/{attemptID}/grading", api.GetGradingHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grading", api.ApplyManualGradesHandler(svc))

		// Proctoring
		pr.With(rbac.Require("attempt:report-violation")).
			Post("/attempts/{attemptID}/violations", api.RecordViolationHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/violations", api.ListViolationsHandler(svc))

		// Outbound event feed for notifier/reporting consumers
		pr.With(rbac.Require("events:read")).
			Get("/events", api.ListEventsHandler(events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode, "db": cfg.DBDriver}).Info("listening")
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
