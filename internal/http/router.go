package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_shop/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the HTTP surface. Auth is header-trust only: the
// real identity provider sits in front of this service.
func NewRouter(
	orders *OrdersHandler,
	cart *CartHandler,
	users *UsersHandler,
	products *ProductsHandler,
	wishlist *WishlistHandler,
	m *metrics.ServerMetrics,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(HeaderAuthMiddleware)

		r.Route("/users", func(r chi.Router) {
			r.Post("/deposit", users.Deposit)
			r.Get("/me", users.GetMe)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Post("/items", cart.AddItem)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Post("/", orders.CreateOrder)
			r.Get("/{order_id}", orders.GetOrder)
			r.Post("/{order_id}/cancel", orders.CancelOrder)
			r.Patch("/{order_id}/status", orders.UpdateStatus)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.ListProducts)
			r.Post("/", products.CreateProduct)
			r.Get("/{product_id}", products.GetProduct)
			r.Put("/{product_id}", products.UpdateProduct)
			r.Delete("/{product_id}", products.DeleteProduct)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlist.GetWishlist)
			r.Post("/", wishlist.AddProduct)
			r.Delete("/{product_id}", wishlist.RemoveProduct)
		})

		r.Route("/seller", func(r chi.Router) {
			r.Get("/products", products.ListSellerProducts)
			r.Get("/orders", orders.ListSellerOrders)
		})
	})

	return otelhttp.NewHandler(r, "shop-service")
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = r.URL.Path
			}
			m.Requests.WithLabelValues(pattern, http.StatusText(ww.Status())).Inc()
			m.LatencyMS.WithLabelValues(pattern).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
