package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/quill-be/internal/api/handlers"
	"github.com/isdelr/quill-be/internal/auth"
	"github.com/isdelr/quill-be/internal/services"
	"github.com/isdelr/quill-be/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	allowedOrigins []string,
	db handlers.Pinger,
	tokens *auth.TokenService,
	hub *websocket.Hub,
	stats handlers.StatsProvider,
	userService services.UserServiceProvider,
	postService services.PostServiceProvider,
	commentService services.CommentServiceProvider,
	eventService services.EventServiceProvider,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"WWW-Authenticate"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, tokens)
	postHandler := handlers.NewPostHandler(postService)
	commentHandler := handlers.NewCommentHandler(commentService)
	eventHandler := handlers.NewEventHandler(eventService)
	systemHandler := handlers.NewSystemHandler(db, stats)
	wsHandler := handlers.NewWebSocketHandler(hub, allowedOrigins)

	// Public endpoints
	r.Post("/register", userHandler.Register)
	r.Post("/token", userHandler.Login)
	r.Get("/posts", postHandler.GetAll)
	r.Get("/posts/{post_id}", postHandler.Get)
	r.Get("/post/{post_id}/comments", commentHandler.GetAllForPost)
	r.Get("/stats", systemHandler.Stats)
	r.Get("/healthz", systemHandler.Health)

	// Live feed
	r.Get("/ws", wsHandler.Serve)
	r.Get("/ws/posts/{post_id}", wsHandler.Serve)

	// Endpoints that require a bearer token
	r.Group(func(r chi.Router) {
		r.Use(tokens.Middleware(userService))

		r.Get("/users/me", userHandler.GetMe)
		r.Post("/post", postHandler.Create)
		r.Post("/comment", commentHandler.Create)
		r.Get("/events", eventHandler.GetRecent)
	})

	return r
}
