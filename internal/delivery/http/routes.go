package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

func NewRouter(h *HTTPHandler, l logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.HTTPLogger(l))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Delete("/", h.DeleteEvent)

				r.Post("/purchases", h.IssueBulkPurchase)
				r.Post("/claims", h.ClaimTicket)

				r.Route("/payments/{hash}", func(r chi.Router) {
					r.Get("/", h.CheckPaymentStatus)
					r.Post("/confirm", h.ConfirmBulkPayment)
					r.Get("/stream", h.StreamPaymentStatus)
				})

				r.Route("/tickets", func(r chi.Router) {
					r.Get("/", h.ListTickets)
					r.Get("/{ticketID}", h.GetTicket)
					r.Get("/{ticketID}/token", h.IssueTicketToken)
					r.Post("/{ticketID}/checkin", h.CheckIn)
				})

				r.Post("/verify", h.VerifyTicket)
				r.Get("/analytics", h.EventAnalytics)
				r.Post("/checkin/bulk", h.BulkCheckIn)
				r.Post("/transfers/bulk", h.BulkTransfer)
			})
		})

		r.Get("/invoices/{hash}", h.GetInvoiceStatus)
		r.Post("/invoices/decode", h.DecodeInvoice)
		r.Post("/checkin/token", h.CheckInWithToken)
	})

	return r
}
