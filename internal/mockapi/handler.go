// Package mockapi serves the storefront backend API over net/http.
package mockapi

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/wire"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	maxBodySize  = 1 << 16
	maxPage      = math.MaxInt32
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler serves the catalog and cart endpoints.
type Handler struct {
	products     product.Repository
	carts        cart.Repository
	imageBaseURL string
}

// NewHandler constructs a Handler with the required repositories.
func NewHandler(cfg HandlerConfig, products product.Repository, carts cart.Repository) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/cart", h.GetCart)
	r.Post("/cart", h.PostCart)
	return r
}

// ListProducts serves GET /products?q&category&page&limit.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.products.Search(r.Context(), q)
	if err != nil {
		h.internalError(r.Context(), w, errors.Wrap(err, "search products"))
		return
	}

	h.write(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodePage(e, h.withImages(page))
	})
}

// GetProduct serves GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internalError(r.Context(), w, errors.Wrap(err, "get product"))
		return
	}

	h.write(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeProduct(e, h.withImage(*p))
	})
}

// GetCart serves GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context())
	if err != nil {
		h.internalError(r.Context(), w, errors.Wrap(err, "get cart"))
		return
	}
	h.writeCart(w, c)
}

// PostCart serves POST /cart with body {productId, quantity}; quantity is
// a delta applied to the product's line.
func (h *Handler) PostCart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	m, err := wire.DecodeCartMutation(jx.DecodeBytes(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	c, err := h.carts.Adjust(r.Context(), m.ProductID, m.Quantity)
	if err != nil {
		h.mapCartError(r.Context(), w, err)
		return
	}
	zctx.From(r.Context()).Debug("Cart adjusted",
		zap.Int64("product_id", m.ProductID),
		zap.Int("delta", m.Quantity),
		zap.Int("total_items", c.TotalItems),
	)
	h.writeCart(w, c)
}

// mapCartError converts domain errors to API error responses.
func (h *Handler) mapCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrZeroQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.internalError(ctx, w, errors.Wrap(err, "adjust cart"))
	}
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	out := *c
	out.Items = make([]cart.Line, len(c.Items))
	for i, l := range c.Items {
		out.Items[i] = cart.Line{Product: h.withImage(l.Product), Quantity: l.Quantity}
	}
	h.write(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeCart(e, &out)
	})
}

func (h *Handler) withImages(page *product.Page) *product.Page {
	out := *page
	out.Products = make([]product.Product, len(page.Products))
	for i, p := range page.Products {
		out.Products[i] = h.withImage(p)
	}
	return &out
}

// withImage prefixes relative image paths with the configured base URL.
func (h *Handler) withImage(p product.Product) product.Product {
	if h.imageBaseURL != "" && strings.HasPrefix(p.ImageURL, "/") {
		p.ImageURL = h.imageBaseURL + p.ImageURL
	}
	return p
}

func (h *Handler) internalError(ctx context.Context, w http.ResponseWriter, err error) {
	zctx.From(ctx).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) write(w http.ResponseWriter, status int, encode func(*jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	wire.EncodeError(&e, wire.ErrorBody{Code: status, Message: message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func parseQuery(r *http.Request) (product.Query, error) {
	v := r.URL.Query()
	q := product.Query{
		Filters: product.Filters{
			Query:    strings.TrimSpace(v.Get("q")),
			Category: v.Get("category"),
		},
		Limit: defaultLimit,
	}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > maxPage {
			return product.Query{}, errors.Errorf("invalid page %q: must be between 0 and %d", s, maxPage)
		}
		q.Page = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			return product.Query{}, errors.Errorf("invalid limit %q: must be between 1 and %d", s, maxLimit)
		}
		q.Limit = n
	}
	return q, nil
}
