package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/foodhall-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса фудхолла.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/goods", h.ListGoods)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/order", h.SubmitOrder)
			r.Get("/tickets", h.GetTickets)
			r.Patch("/tickets/{ticketID}/status", h.UpdateTicketStatus)

			r.Post("/sessions/{sessionID}/paid", h.MarkPaid)
			r.Post("/barcode/resolve", h.ResolveBarcode)

			r.Post("/auth/grant", h.GrantRole)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
