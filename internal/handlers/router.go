package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ronerog/furia-app/internal/middleware"
	"github.com/ronerog/furia-app/internal/storage"
)

// SessionGate is the session manager as seen by the router: the bridge
// operations plus the check used to guard protected routes.
type SessionGate interface {
	SessionService
	IsAuthenticated() bool
}

// RouterConfig holds the dependencies of the bridge router.
type RouterConfig struct {
	Session        SessionGate
	Ledger         PointsService
	Chat           ChatService
	Content        ContentService
	Store          storage.TokenStore
	AllowedOrigins []string
	LoopbackOnly   bool          // Reject non-local callers
	RequestTimeout time.Duration // Per-request deadline (default: 30 seconds)
}

// NewRouter builds the bridge HTTP API.
//
// Routes:
//
//	GET  /health, /ready, /metrics
//	GET  /api/v1/session                       current state and user
//	POST /api/v1/session/login | register | logout
//	POST /api/v1/session/refresh               (session required)
//	PUT  /api/v1/session/profile               (session required)
//	GET  /api/v1/points | points/activities | points/stats  (session required)
//	POST /api/v1/points                        (session required)
//	GET  /api/v1/rewards
//	POST /api/v1/rewards/{id}/redeem           (session required)
//	GET  /api/v1/chat/messages
//	POST /api/v1/chat/messages                 (session required)
//	GET  /api/v1/content/games[/{slug}] | matches[/featured|/{id}] | players[/{id}] | streams[/live|/{id}]
//
// Example:
//
//	router := handlers.NewRouter(handlers.RouterConfig{
//	    Session:        application.Session,
//	    Ledger:         application.Ledger,
//	    Chat:           application.Chat,
//	    Content:        application.API,
//	    Store:          application.Store,
//	    AllowedOrigins: cfg.CORS.AllowedOrigins,
//	    LoopbackOnly:   cfg.Bridge.IsProduction(),
//	})
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	healthHandler := NewHealthHandler(cfg.Store, cfg.Session)
	sessionHandler := NewSessionHandler(cfg.Session)
	pointsHandler := NewPointsHandler(cfg.Ledger)
	chatHandler := NewChatHandler(cfg.Chat)
	contentHandler := NewContentHandler(cfg.Content)
	requireSession := middleware.RequireSession(cfg.Session)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if cfg.LoopbackOnly {
		r.Use(middleware.LoopbackOnly())
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	// Health check endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Post("/logout", sessionHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Post("/refresh", sessionHandler.Refresh)
				r.Put("/profile", sessionHandler.UpdateProfile)
			})
		})

		r.Route("/points", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", pointsHandler.Balance)
			r.Post("/", pointsHandler.Award)
			r.Get("/activities", pointsHandler.Activities)
			r.Get("/stats", pointsHandler.Stats)
		})

		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", pointsHandler.Rewards)
			r.With(requireSession).Post("/{id}/redeem", pointsHandler.Redeem)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/messages", chatHandler.Messages)
			r.With(requireSession).Post("/messages", chatHandler.Send)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/games", contentHandler.Games)
			r.Get("/games/{slug}", contentHandler.Game)
			r.Get("/matches", contentHandler.Matches)
			r.Get("/matches/featured", contentHandler.FeaturedMatches)
			r.Get("/matches/{id}", contentHandler.Match)
			r.Get("/players", contentHandler.Players)
			r.Get("/players/{id}", contentHandler.Player)
			r.Get("/streams", contentHandler.Streams)
			r.Get("/streams/live", contentHandler.LiveStreams)
			r.Get("/streams/{id}", contentHandler.Stream)
		})
	})

	return r
}
