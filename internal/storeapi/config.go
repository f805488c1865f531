package storeapi

import "time"

// Config holds the backend connection settings.
type Config struct {
	BaseURL string        `default:"http://localhost:8080" usage:"Storefront backend base URL" flag:"backend-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout"`
}
