package storefront

import (
	"github.com/xenking/freshcart/internal/catalog"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/loading"
	"github.com/xenking/freshcart/internal/notify"
)

// EmptyMessage is shown when the catalog has no products for the filters.
const EmptyMessage = "No products available."

// ViewKind is what the catalog area shows.
type ViewKind uint8

const (
	ViewLoading ViewKind = iota
	ViewFailed
	ViewEmpty
	ViewList
)

func (k ViewKind) String() string {
	switch k {
	case ViewFailed:
		return "failed"
	case ViewEmpty:
		return "empty"
	case ViewList:
		return "list"
	default:
		return "loading"
	}
}

// View is the classified catalog area.
type View struct {
	Kind ViewKind
	// Severity and Message are set for the Failed and Empty alerts.
	Severity notify.Severity
	Message  string
	Items    []Item
	// LoadingMore is set while the next page is being fetched.
	LoadingMore bool
}

// View classifies the catalog state for rendering.
func (s *Session) View() View {
	v := loading.Match(s.catalog.State(), loading.Cases[[]product.Page, View]{
		Idle: func() View {
			return View{Kind: ViewLoading}
		},
		Loading: func(*[]product.Page) View {
			return View{Kind: ViewLoading}
		},
		Revalidating: func(prev *[]product.Page) View {
			if prev == nil {
				return View{Kind: ViewLoading}
			}
			return s.settledView(*prev)
		},
		Success: s.settledView,
		Failed: func(error) View {
			return View{Kind: ViewFailed, Severity: notify.Warning, Message: catalog.FailureMessage}
		},
	})
	if v.Kind == ViewList {
		v.LoadingMore = s.catalog.IsLoadingMore()
	}
	return v
}

func (s *Session) settledView(pages []product.Page) View {
	if len(pages) == 0 || pages[0].Total == 0 {
		return View{Kind: ViewEmpty, Severity: notify.Info, Message: EmptyMessage}
	}
	var products []product.Product
	for _, p := range pages {
		products = append(products, p.Products...)
	}
	return View{Kind: ViewList, Items: s.decorate(products)}
}
