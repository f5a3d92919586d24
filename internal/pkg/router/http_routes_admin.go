package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	ac := h.deps.AdminPanel
	requireAdmin := middleware.RequireAdmin(h.deps.Admin)

	adminGroup := app.Group("/api/admin", requireAdmin)
	adminGroup.Get("/clients", ac.HandleClients)
	adminGroup.Get("/clients/:id", ac.HandleClient)
	adminGroup.Patch("/clients/:id/status", ac.HandleClientStatus)
	adminGroup.Post("/clients/:id/confirm-trial-payment", ac.HandleConfirmTrialPayment)

	adminGroup.Get("/sessions", ac.HandleSessions)
	adminGroup.Get("/applications", ac.HandleApplications)
	adminGroup.Post("/applications/:id/decision", ac.HandleApplicationDecision)
	adminGroup.Get("/payments", ac.HandlePayments)
	adminGroup.Get("/email-history", ac.HandleEmailHistory)
	adminGroup.Get("/queue", ac.HandleQueue)

	// Completing a session is a coach action.
	app.Post("/api/sessions/:id/complete", requireAdmin, h.deps.Bookings.HandleCompleteSession)
}
