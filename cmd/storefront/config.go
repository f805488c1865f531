package main

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/freshcart/internal/storeapi"
)

// Config is the storefront client configuration.
type Config struct {
	Backend  storeapi.Config
	PageSize int     `default:"10" usage:"Products per catalog page" flag:"page-size"`
	Margin   float64 `default:"50" usage:"Lookahead margin in pixels before the list end" flag:"margin"`
	// Rows is the number of product rows visible at once.
	Rows          int           `default:"8" usage:"Visible product rows" flag:"rows"`
	ToastDuration time.Duration `default:"6s" usage:"Notification auto-hide delay" flag:"toast-duration"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FRESHCART",
		Files:     []string{"storefront.yaml", "/etc/freshcart/storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.Rows <= 0 {
		return nil, errors.Errorf("rows must be positive, got %d", cfg.Rows)
	}
	return &cfg, nil
}
