// Package storeapi is the HTTP client of the storefront backend.
package storeapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/freshcart/internal/cartsync"
	"github.com/xenking/freshcart/internal/catalog"
	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/pagekey"
	"github.com/xenking/freshcart/internal/wire"
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// defaultTimeout bounds shared requests when Config.Timeout is unset.
const defaultTimeout = 10 * time.Second

// maxBodySize bounds how much of a response is read.
const maxBodySize = 4 << 20

var (
	_ catalog.PageFetcher = (*Client)(nil)
	_ cartsync.CartClient = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// still wrapped with otelhttp.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMeterProvider sets the meter provider for client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(c *Client) { c.lg = lg }
}

// Client talks to the storefront backend. Concurrent requests for the same
// catalog page share one round trip. Nothing is retried.
type Client struct {
	base           *url.URL
	http           *http.Client
	timeout        time.Duration
	lg             *zap.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	group    singleflight.Group
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	c := &Client{
		base:           base,
		http:           &http.Client{Timeout: cfg.Timeout},
		timeout:        cfg.Timeout,
		lg:             zap.NewNop(),
		meterProvider:  noop.NewMeterProvider(),
		tracerProvider: nooptrace.NewTracerProvider(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	transport := c.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc := *c.http
	hc.Transport = otelhttp.NewTransport(transport,
		otelhttp.WithMeterProvider(c.meterProvider),
		otelhttp.WithTracerProvider(c.tracerProvider),
	)
	c.http = &hc

	const name = "github.com/xenking/freshcart/internal/storeapi"
	c.tracer = c.tracerProvider.Tracer(name)
	meter := c.meterProvider.Meter(name)
	if c.requests, err = meter.Int64Counter("storeapi.requests",
		metric.WithDescription("Backend requests by operation and outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create requests counter")
	}
	if c.duration, err = meter.Float64Histogram("storeapi.request.duration",
		metric.WithDescription("Backend request latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return c, nil
}

// FetchPage requests one catalog page.
//
// Concurrent calls for the same key join one round trip. The round trip is
// detached from every caller's cancellation and bounded by the client
// timeout instead, so a caller giving up never fails the others. Each caller
// still returns as soon as its own ctx is done.
func (c *Client) FetchPage(ctx context.Context, key pagekey.Key) (*product.Page, error) {
	path := key.Path()
	v, err := c.shared(ctx, "fetch_page", path, func(d *jx.Decoder) (any, error) {
		return wire.DecodePage(d)
	})
	if err != nil {
		return nil, err
	}
	return clonePage(v.(*product.Page)), nil
}

// GetCart requests the current cart. Every call is its own round trip: a
// read issued after a mutation must never be answered by one sent before it.
func (c *Client) GetCart(ctx context.Context) (*cart.Cart, error) {
	v, err := c.do(ctx, "get_cart", http.MethodGet, "/cart", nil, func(d *jx.Decoder) (any, error) {
		return wire.DecodeCart(d)
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Cart), nil
}

// PostCart applies quantity as a delta to the product's cart line and
// returns the updated cart.
func (c *Client) PostCart(ctx context.Context, productID int64, quantity int) (*cart.Cart, error) {
	var e jx.Encoder
	wire.EncodeCartMutation(&e, wire.CartMutation{ProductID: productID, Quantity: quantity})

	v, err := c.do(ctx, "post_cart", http.MethodPost, "/cart", e.Bytes(), func(d *jx.Decoder) (any, error) {
		return wire.DecodeCart(d)
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Cart), nil
}

// shared collapses identical in-flight GETs. Callers must not mutate the
// shared result, so public methods hand out copies.
func (c *Client) shared(ctx context.Context, op, path string, decode func(*jx.Decoder) (any, error)) (any, error) {
	ch := c.group.DoChan(path, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.do(flightCtx, op, http.MethodGet, path, nil, decode)
	})
	select {
	case r := <-ch:
		if r.Shared {
			c.lg.Debug("Shared in-flight request", zap.String("path", path))
		}
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, &NetworkError{Op: op, Err: ctx.Err()}
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, decode func(*jx.Decoder) (any, error)) (_ any, rerr error) {
	ctx, span := c.tracer.Start(ctx, "storeapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.path", path)),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = outcomeOf(rerr)
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		attrs := metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		)
		c.requests.Add(ctx, 1, attrs)
		c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}()

	u, err := c.base.Parse(c.base.Path + path)
	if err != nil {
		return nil, errors.Wrap(err, "build url")
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	reqID := uuid.New().String()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	lg := c.lg.With(zap.String("op", op), zap.String("request_id", reqID))
	lg.Debug("Sending request", zap.String("method", method), zap.String("url", u.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: errors.Wrap(err, "read body")}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := &ApplicationError{Op: op, Status: resp.StatusCode}
		if b, err := wire.DecodeError(jx.DecodeBytes(data)); err == nil {
			appErr.Code = b.Code
			appErr.Message = b.Message
		}
		lg.Debug("Backend returned error", zap.Int("status", resp.StatusCode), zap.String("message", appErr.Message))
		return nil, appErr
	}

	v, err := decode(jx.DecodeBytes(data))
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return v, nil
}

func outcomeOf(err error) string {
	var (
		netErr *NetworkError
		decErr *DecodeError
		appErr *ApplicationError
	)
	switch {
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &decErr):
		return "decode_error"
	case errors.As(err, &appErr):
		return "application_error"
	default:
		return "error"
	}
}

func clonePage(p *product.Page) *product.Page {
	out := *p
	out.Products = slices.Clone(p.Products)
	return &out
}
