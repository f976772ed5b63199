package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rynott/cartcore/config"
	"github.com/rynott/cartcore/internal/adapter"
	"github.com/rynott/cartcore/internal/adapter/cartmux"
	"github.com/rynott/cartcore/internal/adapter/guestcart"
	"github.com/rynott/cartcore/internal/adapter/restcart"
	"github.com/rynott/cartcore/internal/adapter/tokenfile"
	"github.com/rynott/cartcore/internal/core/service"
)

type App struct {
	cfg   config.Config
	auth  *tokenfile.Provider
	guest *guestcart.Store
	cart  *service.CartService
}

func New(cfg config.Config) *App {
	app := &App{cfg: cfg}

	app.initLogger()
	app.initAuthProvider()
	app.initPersistence()
	app.initCartService()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initAuthProvider() {
	app.auth = tokenfile.New(app.cfg.Auth.TokenFile)
}

func (app *App) initPersistence() {
	const op = "App.initPersistence"

	guest, err := guestcart.Open(app.cfg.GuestStore.Path)
	if err != nil {
		app.fallDown(op, err)
	}
	app.guest = guest
}

func (app *App) initCartService() {
	var opts []restcart.Opt
	if tlsCfg := app.cfg.API.TLS; tlsCfg.Enabled() {
		opts = append(opts, restcart.TLSConfigOpt(
			adapter.MakeClientTLSConfig(tlsCfg.CA, tlsCfg.Cert, tlsCfg.Key)))
	}

	remote := restcart.New(
		app.cfg.API.BaseURL, app.cfg.API.Timeout, app.auth, opts...)
	mux := cartmux.New(remote, app.guest, app.auth)
	app.cart = service.New(mux)
}

func (app *App) Cart() *service.CartService {
	return app.cart
}

func (app *App) Auth() *tokenfile.Provider {
	return app.auth
}

// WatchAuth keeps the cart in sync with token-file transitions until
// ctx is done. Blocks the calling goroutine.
func (app *App) WatchAuth(ctx context.Context) error {
	unsubscribe := app.cart.WatchAuth(ctx, app.auth)
	defer unsubscribe()
	return app.auth.Watch(ctx)
}

func (app *App) Close() {
	slog.Info("application is closing...")
	app.guest.Close()
	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
