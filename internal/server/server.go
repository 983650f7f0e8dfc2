// Package server wires the repositories, services, and handlers into an HTTP
// server and owns its lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/poemblog/internal/auth"
	"github.com/sakif/poemblog/internal/handler"
	"github.com/sakif/poemblog/internal/middleware"
	"github.com/sakif/poemblog/internal/repository/sqlite"
	"github.com/sakif/poemblog/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Config holds everything the server needs from the environment.
type Config struct {
	Port               string
	DBPath             string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SecureCookies      bool
}

// Server is the assembled application.
type Server struct {
	httpServer *http.Server
	db         *sqlite.DB
	logger     *slog.Logger
}

// New builds the full dependency graph: database, repositories, services,
// handlers, router.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: %w", err)
	}

	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)

	identitySvc := service.NewIdentityService(users, posts, logger)
	postSvc := service.NewPostService(posts, logger)

	provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)

	authH := handler.NewAuthHandler(identitySvc, provider, tokens, cfg.SecureCookies, logger)
	postH := handler.NewPostHandler(postSvc, logger)
	avatarH := handler.NewAvatarHandler(users, logger)

	router := newRouter(routerDeps{
		auth:   authH,
		posts:  postH,
		avatar: avatarH,
		tokens: tokens,
		users:  users,
		db:     db,
		logger: logger,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:     db,
		logger: logger,
	}, nil
}

type routerDeps struct {
	auth   *handler.AuthHandler
	posts  *handler.PostHandler
	avatar *handler.AvatarHandler
	tokens *auth.TokenService
	users  auth.UserSource
	db     *sqlite.DB
	logger *slog.Logger
}

func newRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(deps.logger))
	r.Use(chimiddleware.Recoverer)

	requireUser := auth.RequireUser(deps.tokens, deps.users)
	requireEstablished := auth.RequireEstablished(deps.tokens, deps.users)
	optionalUser := auth.OptionalUser(deps.tokens, deps.users)

	// Public reads.
	r.Group(func(r chi.Router) {
		r.Use(optionalUser)
		r.Get("/", deps.posts.Feed)
		r.Get("/api/feed", deps.posts.Feed)
		r.Get("/api/posts/{id}", deps.posts.Get)
	})

	r.Get("/avatar/{username}", deps.avatar.Get)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := deps.db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"down"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth flow.
	r.Get("/auth/google/login", deps.auth.GoogleLogin)
	r.Get("/auth/google/callback", deps.auth.GoogleCallback)
	r.Post("/auth/logout", deps.auth.Logout)

	// Routes a provisional user still needs.
	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/api/me", deps.auth.Me)
		r.Post("/api/username", deps.auth.FinalizeUsername)
	})

	// Routes gated on an established identity.
	r.Group(func(r chi.Router) {
		r.Use(requireEstablished)
		r.Get("/api/profile", deps.posts.Profile)
		r.Post("/api/posts", deps.posts.Create)
		r.Put("/api/posts/{id}", deps.posts.Edit)
		r.Delete("/api/posts/{id}", deps.posts.Delete)
		r.Post("/api/posts/{id}/like", deps.posts.Like)
		r.Delete("/api/account", deps.auth.DeleteAccount)
	})

	return r
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight requests
// for up to 30 seconds before closing the database.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.db.Close()
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		s.logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.db.Close()
		return fmt.Errorf("server: shutdown: %w", err)
	}

	return s.db.Close()
}
