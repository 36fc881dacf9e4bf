// Package app wires the fan hub core together. The session manager is the
// root: the ledger, the accrual timer and the chat channel are switched on
// and off purely as reactions to session events.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/chat"
	"github.com/ronerog/furia-app/internal/points"
	"github.com/ronerog/furia-app/internal/services"
	"github.com/ronerog/furia-app/internal/session"
	"github.com/ronerog/furia-app/internal/storage"
)

// App holds the wired components.
type App struct {
	API     *api.Client
	Session *session.Manager
	Ledger  *points.Ledger
	Accrual *points.Accrual
	Chat    *chat.Channel
	Store   storage.TokenStore

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
}

// Options configures New.
type Options struct {
	Client    *api.Client
	Store     storage.TokenStore
	Transport chat.Transport
	Accrual   points.AccrualConfig
	Inspector *services.TokenInspector // nil uses the wall clock
}

// New wires the components and subscribes them to session events.
//
// Example:
//
//	application := app.New(app.Options{
//	    Client:    api.NewClient(cfg.API.BaseURL, cfg.API.Timeout),
//	    Store:     tokenStore,
//	    Transport: realtime.NewTransport(cfg.Realtime.URL, cfg.Realtime.ReconnectMaxDelay),
//	    Accrual:   points.AccrualConfig{Interval: time.Second, Ticks: 300, Points: 5},
//	})
//	application.Start(ctx)
//	defer application.Shutdown()
func New(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())

	manager := session.NewManager(opts.Client, opts.Store, opts.Inspector)
	opts.Client.SetTokenSource(manager)
	opts.Client.OnUnauthorized(manager.HandleUnauthorized)

	ledger := points.NewLedger(opts.Client)

	a := &App{
		API:     opts.Client,
		Session: manager,
		Ledger:  ledger,
		Accrual: points.NewAccrual(ledger, opts.Accrual),
		Chat:    chat.NewChannel(opts.Transport, manager.IsAuthenticated),
		Store:   opts.Store,
		ctx:     ctx,
		cancel:  cancel,
	}
	manager.Subscribe(a.onSession)
	return a
}

// Start restores the persisted session and loads the public reward
// catalog.
func (a *App) Start(ctx context.Context) session.State {
	state := a.Session.Restore(ctx)
	if state != session.StateAuthenticated {
		a.background(a.Ledger.LoadRewards)
	}
	return state
}

// Shutdown stops background work. The persisted token is kept so the next
// start restores the session.
func (a *App) Shutdown() {
	a.cancel()
	a.Accrual.Stop()
	a.Chat.Close()
	a.Session.Close()
	a.loads.Wait()
}

// Wait blocks until background loads issued so far have finished.
func (a *App) Wait() {
	a.loads.Wait()
}

func (a *App) onSession(ev session.Event) {
	switch {
	case ev.Started():
		a.activate(ev)
	case ev.Ended():
		a.deactivate(ev)
	case ev.Current == session.StateAuthenticated && ev.User != nil:
		a.Ledger.SyncBalance(ev.User)
	}
}

func (a *App) activate(ev session.Event) {
	log.Debug().
		Str("user_id", ev.User.ID).
		Str("reason", string(ev.Reason)).
		Msg("Activating session components")

	a.Ledger.Activate(ev.User)
	a.background(a.Ledger.LoadActivities)
	a.background(a.Ledger.LoadRewards)

	if err := a.Accrual.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start accrual")
	}
	if err := a.Chat.Open(a.ctx, ev.Token); err != nil {
		log.Warn().Err(err).Msg("Chat unavailable")
	}
}

func (a *App) deactivate(ev session.Event) {
	log.Debug().Str("reason", string(ev.Reason)).Msg("Deactivating session components")

	a.Accrual.Stop()
	a.Chat.Close()
	a.Ledger.Deactivate()
}

func (a *App) background(fn func(context.Context)) {
	a.loads.Add(1)
	go func() {
		defer a.loads.Done()
		fn(a.ctx)
	}()
}
