// Command fanhub runs the FURIA fan hub client core and serves the local
// bridge API consumed by the view layer.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/app"
	"github.com/ronerog/furia-app/internal/chat"
	"github.com/ronerog/furia-app/internal/database"
	"github.com/ronerog/furia-app/internal/handlers"
	"github.com/ronerog/furia-app/internal/points"
	"github.com/ronerog/furia-app/internal/realtime"
	"github.com/ronerog/furia-app/internal/services"
	"github.com/ronerog/furia-app/internal/storage"
	"github.com/ronerog/furia-app/pkg/cache"
	"github.com/ronerog/furia-app/pkg/config"
)

func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("env", cfg.Bridge.Environment).
		Str("api", cfg.API.BaseURL).
		Str("socket", cfg.Realtime.URL).
		Str("token_store", cfg.Storage.Backend).
		Msg("Starting fan hub")

	inspector := services.NewTokenInspector()

	// Initialize token store
	var tokenStore storage.TokenStore
	switch cfg.Storage.Backend {
	case config.TokenStoreRedis:
		redisDB, err := database.NewRedisDB(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisDB.Close()
		tokenStore = storage.NewRedisTokenStore(cache.NewCache(redisDB.Client()), "", inspector.ExpiresAt)
	default:
		fileStore := storage.NewFileTokenStore(cfg.Storage.TokenFile)
		log.Debug().Str("path", fileStore.Path()).Msg("Using file token store")
		tokenStore = fileStore
	}

	// Wire the core
	application := app.New(app.Options{
		Client:    api.NewClient(cfg.API.BaseURL, cfg.API.Timeout),
		Store:     tokenStore,
		Transport: realtime.NewTransport(cfg.Realtime.URL, cfg.Realtime.ReconnectMaxDelay),
		Accrual: points.AccrualConfig{
			Interval: cfg.Accrual.Interval,
			Ticks:    cfg.Accrual.Ticks,
			Points:   cfg.Accrual.Points,
		},
		Inspector: inspector,
	})

	application.Chat.Subscribe(func(u chat.Update) {
		if u.Event != chat.EventNewMessage || u.Message == nil {
			return
		}
		log.Info().
			Str("user", u.Message.Username).
			Str("text", u.Message.Text).
			Int("online", u.OnlineUsers).
			Msg("Chat message")
	})

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.API.Timeout+5*time.Second)
	state := application.Start(startCtx)
	cancelStart()
	log.Info().Str("session", state.String()).Msg("Session resolved")

	if cfg.Login.Email != "" && !application.Session.IsAuthenticated() {
		loginCtx, cancelLogin := context.WithTimeout(context.Background(), cfg.API.Timeout)
		if _, err := application.Session.Login(loginCtx, cfg.Login.Email, cfg.Login.Password); err != nil {
			log.Error().Err(err).Str("email", cfg.Login.Email).Msg("Automatic login failed")
		}
		cancelLogin()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Session:        application.Session,
		Ledger:         application.Ledger,
		Chat:           application.Chat,
		Content:        application.API,
		Store:          tokenStore,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoopbackOnly:   cfg.Bridge.IsProduction(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         net.JoinHostPort("127.0.0.1", cfg.Bridge.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Bridge started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Bridge failed")
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down bridge...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Bridge forced to shutdown")
	}
	application.Shutdown()

	log.Info().Msg("Fan hub stopped")
}
