// Package server wires the application together and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB ─┬→ AuthService    → AuthHandler
//	                    ├→ ProfileService → ProfileHandler
//	                    ├→ ArticleService → ArticleHandler
//	                    └→ CommentService → CommentHandler
//
// This is the composition root: the only place that knows the concrete types.
// Services receive repository interfaces, handlers receive services.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/config"
	"github.com/sakif/conduit/internal/handler"
	"github.com/sakif/conduit/internal/middleware"
	sqliteRepo "github.com/sakif/conduit/internal/repository/sqlite"
	"github.com/sakif/conduit/internal/service"
	"github.com/sakif/conduit/internal/slug"
)

// Server owns the router and the database connection. The database is closed
// when Start returns, or by Close for servers that are never started.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, builds every service and handler, and mounts the
// routes. cfg.Auth.JWTSecret must already be set.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(tokens)

	return s, nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Routes exposes the route tree, for docgen.
func (s *Server) Routes() chi.Routes {
	return s.router
}

// Close releases the database. Start already does this on return.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts middleware and routes.
//
// Middleware order: RequestID first so the logger can read the ID, Recoverer
// last so that a panic is still logged as a 500.
//
// Under /api every request is decoded as JSON regardless of its Content-Type
// header, and the auth middleware decides per group whether a token is
// required (RequireAuth) or only used when present (OptionalAuth).
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	var github handler.GitHubAuthenticator
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.CallbackURL(),
		)
	}

	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.logger)
	profiles := handler.NewProfileHandler(service.NewProfileService(s.db, s.logger), s.logger)
	articles := handler.NewArticleHandler(service.NewArticleService(s.db, s.db, slug.New(), s.logger), s.logger)
	comments := handler.NewCommentHandler(service.NewCommentService(s.db, s.db, s.db, s.logger), s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", health.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/users", authHandler.HandleRegister)
		r.Post("/users/login", authHandler.HandleLogin)
		r.Get("/tags", articles.HandleTags)

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/profiles/{username}", profiles.HandleGet)
			r.Get("/articles", articles.HandleList)
			r.Get("/articles/{slug}", articles.HandleGet)
			r.Get("/articles/{slug}/comments", comments.HandleList)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/user", authHandler.HandleCurrentUser)
			r.Put("/user", authHandler.HandleUpdateUser)
			r.Patch("/user", authHandler.HandleUpdateUser)

			r.Post("/profiles/{username}/follow", profiles.HandleFollow)
			r.Delete("/profiles/{username}/follow", profiles.HandleUnfollow)

			r.Get("/articles/feed", articles.HandleFeed)
			r.Post("/articles", articles.HandleCreate)
			r.Put("/articles/{slug}", articles.HandleUpdate)
			r.Delete("/articles/{slug}", articles.HandleDelete)

			r.Post("/articles/{slug}/favorite", articles.HandleFavorite)
			r.Delete("/articles/{slug}/favorite", articles.HandleUnfavorite)
			r.Delete("/articles/{slug}/unfavorite", articles.HandleUnfavorite)

			r.Post("/articles/{slug}/comments", comments.HandleCreate)
			r.Delete("/articles/{slug}/comments/{id}", comments.HandleDelete)
		})
	})

	s.router.Route("/auth", func(r chi.Router) {
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
		r.Post("/logout", authHandler.HandleLogout)
	})
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for up
// to server.shutdown_timeout and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
			slog.Bool("github", s.config.GitHubEnabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
