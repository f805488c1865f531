package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/storefront"
	"github.com/xenking/freshcart/internal/viewport"
)

const (
	rowHeight   = 100
	screenWidth = 400
)

const helpText = `commands:
  list               show the loaded products
  scroll             scroll one screen down, loading more when near the end
  search [text]      filter by name; no text clears the search
  category <name>    toggle a category filter
  categories         list the categories
  add <id>           add one unit to the cart
  remove <id>        remove one unit from the cart
  cart               show the cart totals
  refresh            reload the loaded pages and the cart
  dismiss            close the notification
  quit               exit`

// listEnd is the sentinel placed right after the last loaded product.
type listEnd struct{ s *storefront.Session }

func (e listEnd) Bounds() (viewport.Rect, bool) {
	n := len(e.s.Products())
	if n == 0 {
		return viewport.Rect{}, false
	}
	return viewport.Rect{Y: float64(n) * rowHeight, Width: screenWidth}, true
}

// shell drives a Session from line commands. The viewport is simulated: one
// product per row of rowHeight pixels, rows rows visible.
type shell struct {
	s       *storefront.Session
	toaster *notify.Toaster
	toasts  <-chan notify.Toast
	out     io.Writer
	rows    int
	offset  float64
}

func newShell(s *storefront.Session, toaster *notify.Toaster, toasts <-chan notify.Toast, out io.Writer, rows int) *shell {
	return &shell{s: s, toaster: toaster, toasts: toasts, out: out, rows: rows}
}

func (sh *shell) screen() viewport.Rect {
	return viewport.Rect{Y: sh.offset, Width: screenWidth, Height: float64(sh.rows) * rowHeight}
}

// Run starts the session and executes commands from in until quit, EOF or
// ctx is done.
func (sh *shell) Run(ctx context.Context, in io.Reader) error {
	if err := sh.s.Start(ctx); err != nil {
		sh.printf("cart unavailable: %v\n", err)
	}
	if err := sh.settle(ctx); err != nil {
		return err
	}
	sh.render()

	scanner := bufio.NewScanner(in)
	for {
		sh.printf("> ")
		if !scanner.Scan() {
			sh.printf("\n")
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "read command")
			}
			return nil
		}
		quit, err := sh.exec(ctx, scanner.Text())
		if err != nil {
			return err
		}
		sh.drainToasts()
		if quit {
			return nil
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) (quit bool, _ error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
	case "help":
		sh.printf("%s\n", helpText)
	case "quit", "exit":
		return true, nil
	case "list":
		sh.render()
	case "scroll":
		return false, sh.scroll(ctx)
	case "search":
		sh.s.Search(ctx, arg)
		return false, sh.refilter(ctx)
	case "category":
		if arg == "" {
			sh.printf("usage: category <name>\n")
			return false, nil
		}
		sh.s.SelectCategory(ctx, arg)
		return false, sh.refilter(ctx)
	case "categories":
		active := sh.s.Filters().Category
		for _, c := range storefront.Categories {
			mark := " "
			if c == active {
				mark = "*"
			}
			sh.printf("%s %s\n", mark, c)
		}
	case "add", "remove":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			sh.printf("usage: %s <id>\n", cmd)
			return false, nil
		}
		if cmd == "add" {
			sh.s.Add(ctx, id)
		} else {
			sh.s.Remove(ctx, id)
		}
		sh.printCart()
	case "cart":
		sh.printCart()
	case "refresh":
		if sh.s.Revalidate(ctx) {
			if err := sh.settle(ctx); err != nil {
				return false, err
			}
		}
		if err := sh.s.RefreshCart(ctx); err != nil {
			sh.printf("cart unavailable: %v\n", err)
		}
		sh.render()
	case "dismiss":
		sh.toaster.Close(notify.ReasonClose)
	default:
		sh.printf("unknown command %q, try help\n", cmd)
	}
	return false, nil
}

// scroll moves the viewport one screen down, clamped to the list end, and
// lets the advancer request the next page when the list end is near.
func (sh *shell) scroll(ctx context.Context) error {
	n := len(sh.s.Products())
	maxOffset := float64(max(n-sh.rows, 0)) * rowHeight
	sh.offset = min(sh.offset+float64(sh.rows)*rowHeight, maxOffset)

	if sh.s.BindSentinel(listEnd{s: sh.s}) && sh.s.Scroll(ctx, sh.screen()) {
		if err := sh.settle(ctx); err != nil {
			return err
		}
	}
	sh.render()
	return nil
}

func (sh *shell) refilter(ctx context.Context) error {
	sh.offset = 0
	if err := sh.settle(ctx); err != nil {
		return err
	}
	sh.render()
	return nil
}

func (sh *shell) settle(ctx context.Context) error {
	if err := sh.s.Wait(ctx); err != nil {
		return errors.Wrap(err, "wait for catalog")
	}
	return nil
}

func (sh *shell) render() {
	v := sh.s.View()
	switch v.Kind {
	case storefront.ViewLoading:
		sh.printf("loading...\n")
	case storefront.ViewFailed, storefront.ViewEmpty:
		sh.printf("[%s] %s\n", v.Severity, v.Message)
	case storefront.ViewList:
		first := min(int(sh.offset/rowHeight), len(v.Items))
		last := min(first+sh.rows, len(v.Items))
		for _, it := range v.Items[first:last] {
			sh.printf("%4d  %-28s %8s  %-10s", it.ID, it.Name, it.Price.StringFixed(2), it.Category)
			if it.Quantity > 0 {
				sh.printf("  x%d", it.Quantity)
			}
			sh.printf("\n")
		}
		sh.printf("-- %d-%d of %d loaded", first+1, last, len(v.Items))
		if v.LoadingMore {
			sh.printf(", loading more")
		}
		sh.printf(" --\n")
	}
}

func (sh *shell) printCart() {
	sum := sh.s.CartSummary()
	sh.printf("cart: %d items, %s (%s)\n", sum.TotalItems, sum.TotalPrice.StringFixed(2), sum.State)
}

func (sh *shell) drainToasts() {
	for {
		select {
		case t := <-sh.toasts:
			sh.printf("! [%s] %s\n", t.Severity, t.Message)
		default:
			return
		}
	}
}

func (sh *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(sh.out, format, args...)
}
