// Package handler exposes the menu, order, checkout and reporting services
// over a JSON REST API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/takeaway/internal/domain/checkout"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
	"github.com/xenking/takeaway/internal/receipt"
	"github.com/xenking/takeaway/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Restaurant is printed on receipts.
	Restaurant receipt.Restaurant
	// CheckoutRateLimit bounds checkout submissions per client. A zero Max
	// disables the limit.
	CheckoutRateLimit httpmiddleware.RateLimitConfig
	// ConfirmRedirect, when set, is where a browser returning from the
	// payment page is sent after a successful confirmation. "{orderId}" is
	// replaced with the order id.
	ConfirmRedirect string
}

// Handler serves the HTTP API, delegating business logic to the domain
// services.
type Handler struct {
	menu     *menu.Service
	orders   *order.Service
	checkout *checkout.Coordinator
	cfg      HandlerConfig
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	menuService *menu.Service,
	orderService *order.Service,
	coordinator *checkout.Coordinator,
) *Handler {
	return &Handler{
		menu:     menuService,
		orders:   orderService,
		checkout: coordinator,
		cfg:      cfg,
	}
}

// Router returns the API routes mounted under /api. The rate limiter's
// cleanup goroutine stops when ctx is done.
func (h *Handler) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/menu", func(r chi.Router) {
			r.Get("/", h.ListMenu)
			r.Post("/", h.CreateMenuItem)
			r.Put("/", h.UpdateMenuItem)
			r.Delete("/", h.DeleteMenuItem)
			r.Get("/{id}", h.GetMenuItem)
			r.Put("/{id}", h.UpdateMenuItem)
			r.Delete("/{id}", h.DeleteMenuItem)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Put("/", h.UpdateOrder)
			r.Delete("/", h.DeleteOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Delete("/{id}", h.DeleteOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Get("/{id}/receipt", h.OrderReceipt)
		})
		r.Route("/checkout", func(r chi.Router) {
			if h.cfg.CheckoutRateLimit.Max > 0 {
				r.With(httpmiddleware.RateLimitWithCleanup(ctx, h.cfg.CheckoutRateLimit)).Post("/", h.Checkout)
			} else {
				r.Post("/", h.Checkout)
			}
			r.Get("/confirm", h.ConfirmCheckout)
		})
		r.Get("/reports/orders", h.OrdersReport)
	})
	return r
}

// idParam returns the {id} path parameter, falling back to the "id" query
// parameter.
func idParam(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return r.URL.Query().Get("id")
}

func parseTimeParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := order.ParseTimestamp(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
