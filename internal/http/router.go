package http

import (
	"net/http"

	"grocerystock/internal/auth"
	"grocerystock/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, verifier *auth.Verifier, m *metrics.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Metrics(m))
	r.Use(Recoverer(log))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))

		r.Post("/products", handler.CreateProduct)
		r.Post("/products/import", handler.ImportCatalog)
		r.Post("/products/reorder-multiple", handler.BulkReorder)
		r.Get("/products/{id}", handler.GetProduct)
		r.Patch("/products/{id}", handler.PatchProduct)
		r.Delete("/products/{id}", handler.DeleteProduct)
		r.Post("/products/{id}/restock", handler.Restock)
		r.Post("/products/{id}/reorder", handler.Reorder)

		r.Get("/inventory/analytics", handler.Analytics)
		r.Get("/inventory/reorder-candidates", handler.ReorderCandidates)

		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/{id}", handler.GetOrder)
		r.Put("/orders/{id}", handler.UpdateOrder)
		r.Put("/orders/{id}/status", handler.UpdateOrderStatus)
		r.Put("/orders/{id}/payment", handler.RecordPayment)
		r.Delete("/orders/{id}", handler.CancelOrder)

		r.Post("/maintenance/low-stock-check", handler.RunLowStockCheck)
		r.Post("/maintenance/auto-renew", handler.RunAutoRenew)
		r.Post("/maintenance/auto-reorder", handler.RunAutoReorder)
	})

	return r
}
