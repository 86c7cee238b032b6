package routes

import (
	"net/http"

	_ "github.com/Dosada05/tournament-settlement/docs"
	"github.com/Dosada05/tournament-settlement/handlers"
	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Registrations *handlers.RegistrationHandler
	Payouts       *handlers.PayoutHandler
	Cancellations *handlers.CancellationHandler
	Audit         *handlers.AuditHandler
	Uploads       *handlers.UploadHandler
	WebSocket     *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, auth *middleware.Authenticator, h Handlers, corsOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	manager := middleware.Authorize(models.RoleAdmin, models.RoleOrganizer)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	// Всё, кроме health и swagger, требует токен.
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.With(middleware.Authorize(models.RolePlayer)).Post("/registrations", h.Registrations.Submit)

			r.Group(func(r chi.Router) {
				r.Use(manager)
				r.Get("/payments", h.Payouts.GetLedger)
				r.Get("/cancellation-risk", h.Cancellations.AssessRisk)
				r.Post("/cancel", h.Cancellations.Cancel)
			})
			r.With(adminOnly).Post("/payments/installments/{index}/paid", h.Payouts.MarkInstallmentPaid)
		})

		r.Route("/registrations/{registrationID}", func(r chi.Router) {
			r.Get("/", h.Registrations.GetByID)
			r.With(middleware.Authorize(models.RolePlayer)).Post("/cancellation", h.Registrations.RequestCancellation)

			r.Group(func(r chi.Router) {
				r.Use(manager)
				r.Post("/confirm", h.Registrations.Confirm)
				r.Post("/reject", h.Registrations.Reject)
				r.Post("/cancellation/resolve", h.Registrations.ResolveCancellation)
				r.Post("/refund/complete", h.Registrations.CompleteRefund)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Use(middleware.Authorize(models.RolePlayer))
			r.Post("/payment-proof", h.Uploads.UploadPaymentProof)
			r.Post("/refund-qr", h.Uploads.UploadRefundQR)
		})

		r.Get("/users/me/notifications", h.Audit.MyNotifications)

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/payouts/pending", h.Payouts.ListPending)
			r.Post("/tournaments/{tournamentID}/cancellation/fanout", h.Cancellations.ResumeFanOut)
			r.Get("/audit/{entityType}/{entityID}", h.Audit.Trail)
		})

		r.Route("/ws", func(r chi.Router) {
			r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
			r.Get("/users/me", h.WebSocket.ServeMe)
		})
	})
}
