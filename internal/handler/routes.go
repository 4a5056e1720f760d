package handler

import (
	"go-repair-billing/internal/middleware"
	"go-repair-billing/internal/service"
	"go-repair-billing/internal/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

type Deps struct {
	Service       service.SettlementService
	Hub           *ws.Hub
	PaymentLimits *limiter.Limiter
	Logger        zerolog.Logger
}

// SetupRoutes mounts the billing API, the websocket endpoint and the
// health probe on app.
func SetupRoutes(app *fiber.App, d Deps) {
	invoices := NewInvoiceHandler(d.Service, d.Logger)
	payments := NewPaymentHandler(d.Service, d.Logger)

	app.Get("/healthz", Health(d.Hub))

	api := app.Group("/api/v1", middleware.RequestUser())

	api.Post("/invoices", invoices.CreateInvoice)
	api.Post("/invoices/from-repair/:repairId", invoices.CreateFromRepair)
	api.Get("/invoices/:id", invoices.GetInvoice)
	api.Put("/invoices/:id", invoices.UpdateInvoice)
	api.Delete("/invoices/:id", invoices.DeleteInvoice)
	api.Post("/invoices/:id/send", invoices.SendInvoice)
	api.Post("/invoices/:id/cancel", invoices.CancelInvoice)

	api.Post("/invoices/:id/items", invoices.AddItem)
	api.Put("/invoices/:id/items/:itemId", invoices.UpdateItem)
	api.Delete("/invoices/:id/items/:itemId", invoices.RemoveItem)

	api.Get("/invoices/:id/payments", payments.ListPayments)
	if d.PaymentLimits != nil {
		api.Post("/payments", middleware.RateLimit(d.PaymentLimits, d.Logger), payments.RecordPayment)
	} else {
		api.Post("/payments", payments.RecordPayment)
	}

	app.Use("/ws", RequireUpgrade)
	app.Get("/ws", WebSocket(d.Hub))
}
