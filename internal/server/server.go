/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetcastlabs/fleetcast/internal/api"
	"github.com/fleetcastlabs/fleetcast/internal/config"
	"github.com/fleetcastlabs/fleetcast/internal/dashboard"
	"github.com/fleetcastlabs/fleetcast/internal/db"
	"github.com/fleetcastlabs/fleetcast/internal/observability"
	"github.com/fleetcastlabs/fleetcast/internal/scheduler"
	"github.com/fleetcastlabs/fleetcast/internal/simulator"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	dashboard *dashboard.Service
	simulator *simulator.Service
	scheduler *scheduler.Scheduler
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	router.Use(observability.TracingMiddleware("fleetcast-api"))
	router.Use(observability.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return fmt.Errorf("register db callbacks: %w", err)
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	s.dashboard = dashboard.NewService(database, s.cfg.QueryTimeout, s.logger)
	s.simulator = simulator.New(database, s.cfg.FleetSize, s.cfg.GroundStations, s.cfg.QueryTimeout, s.logger)

	if err := s.initScheduler(); err != nil {
		return err
	}

	s.api = api.New(s.dashboard, s.simulator, s.scheduler, s.logger)
	return nil
}

// initScheduler registers the three periodic jobs. Each job is serialized
// against itself; a slow run makes the next tick drop, never queue.
func (s *Server) initScheduler() error {
	s.scheduler = scheduler.New(s.logger)

	if err := s.scheduler.Add("simulation", s.cfg.SimulationInterval, func(ctx context.Context) error {
		return s.simulator.RunCycle(ctx)
	}); err != nil {
		return err
	}

	if err := s.scheduler.Add("dashboard_refresh", s.cfg.DashboardInterval, func(ctx context.Context) error {
		summary, err := s.dashboard.Summary(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		s.logger.Info().
			Int64("total_telemetry", summary.TotalTelemetry).
			Int64("low_battery", summary.LowBattery).
			Int64("error_state", summary.ErrorState).
			Int64("active_contacts", summary.ActiveContacts).
			Msg("dashboard refresh")
		return nil
	}); err != nil {
		return err
	}

	return s.scheduler.Add("station_refresh", s.cfg.StationInterval, func(ctx context.Context) error {
		now := time.Now().UTC()
		for _, stationID := range s.cfg.GroundStations {
			snapshot, err := s.dashboard.Station(ctx, stationID, now)
			if err != nil {
				return fmt.Errorf("station %s: %w", stationID, err)
			}
			s.logger.Info().
				Str("station_id", stationID).
				Int("satellites", len(snapshot.Satellites)).
				Msg("station refresh")
		}
		return nil
	})
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if err := s.scheduler.Start(); err != nil {
		s.logger.Error().Err(err).Msg("scheduler failed to start")
	}

	// Connection pool gauge updater.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.scheduler.Stop()
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", observability.Handler())

	s.api.Routes(s.router)
}
