package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/alerts"
	"github.com/veridian/comply/internal/auth"
	"github.com/veridian/comply/internal/config"
	"github.com/veridian/comply/internal/duedate"
	"github.com/veridian/comply/internal/engine"
	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/queue"
	"github.com/veridian/comply/internal/reports"
	"github.com/veridian/comply/internal/rules"
	"github.com/veridian/comply/internal/scheduler"
	"github.com/veridian/comply/internal/store"
)

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	store  *store.Store
	http   *http.Server
	logger *slog.Logger

	authService *auth.Service
	userStore   auth.UserStore

	scheduler      *scheduler.Scheduler
	schedulerStore scheduler.Store

	ruleStore *rules.PostgresStore
	catalog   *rules.Catalog

	queue  *queue.Queue
	engine *engine.Engine

	reportGenerator *reports.Generator
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithQueue attaches a redis queue; recalculation requests are then handed
// to workers instead of running inline.
func WithQueue(q *queue.Queue) ServerOption {
	return func(s *Server) {
		s.queue = q
	}
}

func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		store:  st,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.userStore = auth.NewPostgresUserStore(st.DB())
	s.authService = auth.NewService(auth.Config{
		JWTSecret:          cfg.Auth.JWTSecret,
		AccessTokenExpiry:  cfg.Auth.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.Auth.RefreshTokenExpiry,
	}, s.userStore)

	s.schedulerStore = scheduler.NewPostgresStore(st.DB())
	s.scheduler = scheduler.NewScheduler(s.schedulerStore, s.logger)

	s.ruleStore = rules.NewPostgresStore(st.DB())
	s.catalog = rules.NewCatalog(s.ruleStore)

	s.engine = engine.New(
		st,
		s.catalog,
		duedate.NewCalculator(BuildCalendar(cfg.Calendar)),
		alerts.NewEmitter(st,
			decimal.NewFromFloat(cfg.Engine.PenaltyMaterialityRatio),
			decimal.NewFromFloat(cfg.Engine.PenaltyMaterialityFloor),
			s.logger),
		engine.Options{
			AmberScoreThreshold: cfg.Engine.AmberScoreThreshold,
			NoiseThreshold:      cfg.Engine.NoiseThreshold,
			CalcTimeout:         cfg.Engine.CalcTimeout,
		},
		s.logger,
	)

	var archiver *reports.Archiver
	if cfg.Reports.S3Bucket != "" {
		archiver, err = reports.NewArchiver(context.Background(), reports.ArchiverConfig{
			Bucket: cfg.Reports.S3Bucket,
			Region: cfg.Reports.S3Region,
			Prefix: cfg.Reports.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing report archiver: %w", err)
		}
	}
	s.reportGenerator = reports.NewGenerator(st, archiver)

	s.registerSchedulerHandlers()
	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// BuildCalendar turns calendar config into the working-day calendar used by
// due date adjustment.
func BuildCalendar(cfg config.CalendarConfig) *duedate.StaticCalendar {
	cal := duedate.NewStaticCalendar()

	for jurisdiction, days := range cfg.Holidays {
		for _, d := range days {
			t, err := time.Parse("2006-01-02", d)
			if err != nil {
				continue
			}
			cal.AddHolidays(jurisdiction, t)
		}
	}

	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	for jurisdiction, names := range cfg.Weekends {
		var days []time.Weekday
		for _, name := range names {
			if d, ok := weekdays[name]; ok {
				days = append(days, d)
			}
		}
		if len(days) > 0 {
			cal.SetWeekend(jurisdiction, days...)
		}
	}

	return cal
}

func (s *Server) registerSchedulerHandlers() {
	handlers := &scheduler.DefaultHandlers{
		RecalcFunc: func(ctx context.Context, entityID string) error {
			id, err := uuid.Parse(entityID)
			if err != nil {
				return fmt.Errorf("invalid entity_id: %w", err)
			}
			return s.requestRecalc(ctx, id, models.TriggerScheduled, 0)
		},
		RecalcAllFunc: func(ctx context.Context) error {
			entities, err := s.store.ListEntities(ctx, true)
			if err != nil {
				return fmt.Errorf("listing entities: %w", err)
			}
			for _, entity := range entities {
				if err := s.requestRecalc(ctx, entity.ID, models.TriggerScheduled, 0); err != nil {
					s.logger.Error("scheduling recalc", "entity_id", entity.ID, "error", err)
				}
			}
			return nil
		},
		ExpireAlertsFunc: func(ctx context.Context, olderThan time.Duration) error {
			expired, err := s.store.ExpireStaleAlerts(ctx, olderThan)
			if err != nil {
				return err
			}
			if expired > 0 {
				s.logger.Info("expired stale alerts", "count", expired)
			}
			return nil
		},
		ReportFunc: func(ctx context.Context, jobConfig scheduler.JobConfig) error {
			entityID, err := uuid.Parse(jobConfig.EntityID())
			if err != nil {
				return fmt.Errorf("invalid entity_id: %w", err)
			}
			_, err = s.reportGenerator.ComplianceSummary(ctx, entityID, reports.FormatPDF)
			return err
		},
	}
	handlers.Register(s.scheduler)
}

// requestRecalc enqueues the recalculation when a queue is attached and
// otherwise runs it inline.
func (s *Server) requestRecalc(ctx context.Context, entityID uuid.UUID, trigger models.CalculationTrigger, priority int) error {
	if s.queue != nil {
		return s.queue.Enqueue(ctx, &queue.Job{
			EntityID: entityID,
			Trigger:  trigger,
			Priority: priority,
		})
	}
	_, err := s.engine.Recalculate(ctx, entityID, time.Now(), trigger)
	return err
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.corsMiddleware())
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowOrigin := s.cfg.Server.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
		s.logger.Warn("CORS Allow-Origin set to '*' - configure server.cors_allow_origin in production")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)

			r.Post("/auth/logout", s.logout)
			r.Get("/auth/me", s.getCurrentUser)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/users", s.listUsers)
				r.Post("/users", s.createUser)
			})

			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.listEntities)
				r.Post("/", s.createEntity)
				r.Get("/{entityID}", s.getEntity)
				r.Put("/{entityID}", s.updateEntity)
				r.Post("/{entityID}/recalculate", s.triggerRecalc)
				r.Get("/{entityID}/state", s.getState)
				r.Get("/{entityID}/requirements", s.listRequirements)
				r.Get("/{entityID}/history", s.getStateHistory)
				r.Get("/{entityID}/calculations", s.getCalculationLogs)
				r.Get("/{entityID}/alerts", s.listEntityAlerts)
				r.Get("/{entityID}/filings", s.listFilings)
				r.Post("/{entityID}/filings", s.recordFiling)
				r.Get("/{entityID}/report", s.generateReport)
			})

			r.Post("/alerts/{alertID}/acknowledge", s.acknowledgeAlert)

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", s.listRules)
				r.Get("/{code}", s.getRule)
				r.Get("/{code}/versions", s.listRuleVersions)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(auth.RoleAdmin))
					r.Post("/", s.publishRule)
				})
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/", s.listScheduledJobs)
				r.Post("/", s.createScheduledJob)
				r.Get("/{jobID}", s.getScheduledJob)
				r.Put("/{jobID}", s.updateScheduledJob)
				r.Delete("/{jobID}", s.deleteScheduledJob)
				r.Post("/{jobID}/run", s.runScheduledJobNow)
				r.Get("/{jobID}/executions", s.getJobExecutions)
			})

			r.Get("/queue/stats", s.getQueueStats)
		})
	})
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		s.logger.Error("failed to start scheduler", "error", err)
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) Close() error {
	return s.store.Close()
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db_unavailable", "Database not available")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
