package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/mockapi"
	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/storage/memory"
	"github.com/xenking/freshcart/internal/storage/seed"
	"github.com/xenking/freshcart/internal/storeapi"
	"github.com/xenking/freshcart/internal/storefront"
)

// --- Helpers ---

func runScript(t *testing.T, rows int, script ...string) string {
	t.Helper()
	products, err := seed.Products()
	require.NoError(t, err)
	store := memory.New(products)
	srv := httptest.NewServer(mockapi.NewHandler(mockapi.HandlerConfig{}, store, store).Routes())
	t.Cleanup(srv.Close)

	client, err := storeapi.New(storeapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	toasts := make(chan notify.Toast, 16)
	toaster := notify.NewToaster(notify.WithAutoHide(0), notify.OnChange(forwardToasts(toasts)))
	session := storefront.New(storefront.Deps{
		Pages:    client,
		Cart:     client,
		Notifier: toaster,
		Logger:   zaptest.NewLogger(t),
	})

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sh := newShell(session, toaster, toasts, &out, rows)
	require.NoError(t, sh.Run(ctx, strings.NewReader(strings.Join(script, "\n")+"\n")))
	return out.String()
}

func firstProduct(t *testing.T, category string) product.Product {
	t.Helper()
	products, err := seed.Products()
	require.NoError(t, err)
	for _, p := range products {
		if category == "" || p.Category == category {
			return p
		}
	}
	t.Fatalf("no product in %q", category)
	return product.Product{}
}

// --- Tests ---

func TestShell_InitialRender(t *testing.T) {
	out := runScript(t, 8, "quit")

	assert.Contains(t, out, firstProduct(t, "").Name)
	assert.Contains(t, out, "-- 1-8 of 10 loaded --")
}

func TestShell_ScrollLoadsMore(t *testing.T) {
	// Ten products fit on 1000px. The list end only enters the lookahead
	// once the screen reaches it.
	out := runScript(t, 8, "scroll", "scroll", "scroll")

	assert.Contains(t, out, "-- 3-10 of 20 loaded --")
	assert.Contains(t, out, "-- 11-18 of 20 loaded --")
	assert.Contains(t, out, "-- 13-20 of 30 loaded --")
}

func TestShell_CartCommands(t *testing.T) {
	p := firstProduct(t, "")
	id := strconv.FormatInt(p.ID, 10)

	out := runScript(t, 8, "add "+id, "add "+id, "remove "+id, "cart")

	assert.Contains(t, out, "cart: 2 items")
	assert.Contains(t, out, "cart: 1 items, "+p.Price.StringFixed(2)+" (success)")
}

func TestShell_MutationFailureToast(t *testing.T) {
	out := runScript(t, 8, "add 999999")

	assert.Contains(t, out, "! [error] An error occurred, please try again later.")
	assert.Contains(t, out, "cart: 0 items")
}

func TestShell_CategoryAndSearch(t *testing.T) {
	dairy := firstProduct(t, "Dairy")

	out := runScript(t, 8, "category Dairy", "categories", "search zzzz-none")

	assert.Contains(t, out, dairy.Name)
	assert.Contains(t, out, "* Dairy")
	assert.Contains(t, out, "[info] No products available.")
}

func TestShell_UnknownCommand(t *testing.T) {
	out := runScript(t, 8, "dance", "add x", "help")

	assert.Contains(t, out, `unknown command "dance"`)
	assert.Contains(t, out, "usage: add <id>")
	assert.Contains(t, out, "commands:")
}

func TestShell_EndOfInputExitsCleanly(t *testing.T) {
	// No quit command: the session ends when input runs out.
	out := runScript(t, 8, "list")

	assert.Contains(t, out, firstProduct(t, "").Name)
	assert.True(t, strings.HasSuffix(out, "> \n"), "got %q", out[max(0, len(out)-16):])
}
