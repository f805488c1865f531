// Command storefront is a terminal storefront: it browses the catalog with
// infinite scrolling and edits the cart against a storefront backend.
package main

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/storeapi"
	"github.com/xenking/freshcart/internal/storefront"
	"github.com/xenking/freshcart/internal/viewport"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := storeapi.New(cfg.Backend,
			storeapi.WithLogger(lg.Named("storeapi")),
			storeapi.WithMeterProvider(m.MeterProvider()),
			storeapi.WithTracerProvider(m.TracerProvider()),
		)
		if err != nil {
			return errors.Wrap(err, "create client")
		}

		toasts := make(chan notify.Toast, 16)
		toaster := notify.NewToaster(
			notify.WithAutoHide(cfg.ToastDuration),
			notify.OnChange(forwardToasts(toasts)),
		)
		session := storefront.New(storefront.Deps{
			Pages:    client,
			Cart:     client,
			Notifier: notify.Multi(toaster, notify.Log(lg.Named("notify"))),
			Logger:   lg,
			PageSize: cfg.PageSize,
			Margin:   &viewport.Margin{Vertical: cfg.Margin},
		})

		sh := newShell(session, toaster, toasts, os.Stdout, cfg.Rows)
		return sh.Run(ctx, os.Stdin)
	})
}

// forwardToasts passes shown toasts to ch, dropping them when it is full.
func forwardToasts(ch chan<- notify.Toast) func(*notify.Toast) {
	return func(t *notify.Toast) {
		if t == nil {
			return
		}
		select {
		case ch <- *t:
		default:
		}
	}
}
