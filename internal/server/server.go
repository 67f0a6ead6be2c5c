// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the one place that builds the store, hands
// it to the services as repository interfaces, and hands the services to the
// handlers. Nothing below this package constructs its own dependencies.
//
//	sqldb.DB ─┬─ auth.Resolver ─────────── auth.Identify (middleware)
//	          ├─ service.AuthService ───── handler.AuthHandler
//	          ├─ service.PresenceService ─ handler.PresenceHandler
//	          ├─ service.Gate ─┐
//	          ├─ service.ChatService ───── handler.ChatHandler
//	          ├─ service.ModerationService handler.ModerationHandler
//	          ├─ service.ContentService[T] handler.ContentHandler[T] (x5)
//	          ├─ service.SiteService ───── handler.SiteHandler
//	          └─ service.Janitor (cron)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/config"
	"github.com/sakif/homepage/internal/handler"
	"github.com/sakif/homepage/internal/middleware"
	"github.com/sakif/homepage/internal/repository/sqldb"
	"github.com/sakif/homepage/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and every long-lived resource: the database pool,
// the cron-driven janitor and the rate limiter's GC goroutine.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqldb.DB
	janitor *service.Janitor
	limiter *middleware.RateLimiter
}

// New opens the database and wires every route. The caller must eventually
// call Start (which cleans up on return) or Close.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqldb.New(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// route pairs an HTTP method with its handler for resource().
type route struct {
	method string
	handle http.HandlerFunc
}

func get(h http.HandlerFunc) route  { return route{http.MethodGet, h} }
func post(h http.HandlerFunc) route { return route{http.MethodPost, h} }
func del(h http.HandlerFunc) route  { return route{http.MethodDelete, h} }

// resource registers a catch-all 405 for pattern and then the real methods
// on top of it. chi lets a specific method override an all-methods handler,
// so anything not listed falls through to the 405 with the right Allow header.
func resource(r chi.Router, pattern string, routes ...route) {
	allow := make([]string, 0, len(routes))
	for _, rt := range routes {
		allow = append(allow, rt.method)
	}
	r.HandleFunc(pattern, handler.MethodNotAllowed(allow...))
	for _, rt := range routes {
		r.Method(rt.method, pattern, rt.handle)
	}
}

// contentResource mounts list/create/delete for one content table.
func contentResource[T any](r chi.Router, pattern string, h *handler.ContentHandler[T]) {
	resource(r, pattern, get(h.HandleList), post(h.HandleCreate), del(h.HandleDelete))
	resource(r, pattern+"/{id}", del(h.HandleDelete))
}

// setupRoutes builds the services and mounts them.
//
// ROUTE MAP:
//
//	GET              /healthz
//	GET              /metrics
//	ANY              /api/auth?action=login|register|logout|verify
//	POST             /api/auth/{register,login,logout}
//	GET              /api/auth/verify
//	GET POST DELETE  /api/basement/chat        (+ DELETE /api/basement/chat/{id})
//	GET POST DELETE  /api/basement/moderation?action=
//	GET POST DELETE  /api/basement/users
//	GET POST DELETE  /api/basement/playlist
//	GET POST DELETE  /api/{quotes,suggestions,devlog,forum}
//	GET POST         /api/stats
//	GET POST         /api/admin/settings
//	GET              /*  static front end
//
// MIDDLEWARE ORDER: RequestID and RealIP first so the logger and the rate
// limiter see them; Recoverer inside Logger so a panic is logged as a 500.
// RealIP is only installed with TRUST_PROXY; otherwise the limiter keys on
// the TCP peer.
func (s *Server) setupRoutes() error {
	cfg := s.config

	signer, err := auth.NewSIDSigner(cfg.SIDSecret)
	if err != nil {
		return err
	}
	cookies := auth.CookieOptions{Secure: cfg.CookieSecure, SessionTTL: cfg.SessionTTL}

	// === Services ===
	resolver := auth.NewResolver(s.db, s.db, s.logger)
	passwords := auth.NewPasswordService(cfg.BcryptCost)
	authSvc := service.NewAuthService(s.db, s.db, passwords, resolver, cfg.SessionTTL, s.logger)
	presenceSvc := service.NewPresenceService(s.db, cfg.PresenceWindow, s.logger)
	gate := service.NewGate(s.db, s.db, s.logger)
	chatSvc := service.NewChatService(s.db, presenceSvc, gate, s.logger)
	modSvc := service.NewModerationService(s.db, s.db, presenceSvc, s.logger)
	siteSvc := service.NewSiteService(s.db, s.logger)
	s.janitor = service.NewJanitor(s.db, s.db, s.db, s.logger)

	// === Handlers ===
	authH := handler.NewAuthHandler(authSvc, cookies, s.logger)
	chatH := handler.NewChatHandler(chatSvc, s.logger)
	presenceH := handler.NewPresenceHandler(presenceSvc, s.logger)
	modH := handler.NewModerationHandler(modSvc, s.logger)
	siteH := handler.NewSiteHandler(siteSvc, s.logger)

	quotesH := handler.NewContentHandler(service.NewContentService("quotes", s.db.Quotes(), service.PrepareQuote, s.logger), s.logger)
	suggestionsH := handler.NewContentHandler(service.NewContentService("suggestions", s.db.Suggestions(), service.PrepareSuggestion, s.logger), s.logger)
	devlogH := handler.NewContentHandler(service.NewContentService("devlog", s.db.DevLog(), service.PrepareDevLogPost, s.logger), s.logger)
	forumH := handler.NewContentHandler(service.NewContentService("forum", s.db.Forum(), service.PrepareForumPost, s.logger), s.logger)
	playlistH := handler.NewContentHandler(service.NewContentService("playlist", s.db.Playlist(), service.PrepareTrack, s.logger), s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", handler.Health(s.db))
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(auth.Identify(resolver, signer, cookies, s.logger))

		r.HandleFunc("/auth", authH.HandleAction)
		resource(r, "/auth/register", post(authH.HandleRegister))
		resource(r, "/auth/login", post(authH.HandleLogin))
		resource(r, "/auth/logout", post(authH.HandleLogout))
		resource(r, "/auth/verify", get(authH.HandleVerify))

		resource(r, "/basement/chat", get(chatH.HandleHistory), post(chatH.HandlePost), del(chatH.HandleDelete))
		resource(r, "/basement/chat/{id}", del(chatH.HandleDelete))
		resource(r, "/basement/moderation", get(modH.HandleGet), post(modH.HandlePost), del(modH.HandleDelete))
		resource(r, "/basement/users", get(presenceH.HandleList), post(presenceH.HandleHeartbeat), del(presenceH.HandleLeave))
		contentResource(r, "/basement/playlist", playlistH)

		contentResource(r, "/quotes", quotesH)
		contentResource(r, "/suggestions", suggestionsH)
		contentResource(r, "/devlog", devlogH)
		contentResource(r, "/forum", forumH)

		resource(r, "/stats", get(siteH.HandleStats), post(siteH.HandleRecordVisit))
		resource(r, "/admin/settings", get(siteH.HandleAdminSettings), post(siteH.HandleSaveAdminSettings))
	})

	// === Static front end ===
	if cfg.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return nil
}

// Start serves until SIGINT/SIGTERM, then shuts down in order: HTTP server
// (waiting up to 30s for in-flight requests), janitor, rate limiter, database.
func (s *Server) Start() error {
	defer s.Close()

	if err := s.janitor.Start(s.config.PruneSchedule); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.db.Driver()),
			slog.Duration("presenceWindow", s.config.PresenceWindow),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything New acquired. Safe to call after Start returns.
func (s *Server) Close() error {
	if s.janitor != nil {
		s.janitor.Stop()
	}
	s.limiter.Stop()
	return s.db.Close()
}
