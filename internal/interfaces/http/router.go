package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jhoicas/sifen-api/internal/application/auth"
	"github.com/jhoicas/sifen-api/internal/application/billing"
	"github.com/jhoicas/sifen-api/internal/application/issuer"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Lifecycle *billing.Lifecycle
	Create    *billing.CreateDocumentUseCase
	Payloads  *billing.PayloadService
	IssuerUC  *issuer.UseCase
	AuthUC    *auth.AuthUseCase
	JWTSecret string
	Gatherer  prometheus.Gatherer // nil = sin /metrics
	Health    func() error        // nil = siempre sano
	Log       zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	adminOnly := RequireRole(entity.RoleAdmin)
	canWrite := RequireRole(entity.RoleAdmin, entity.RoleOperador)
	canOperate := RequireRole(entity.RoleAdmin, entity.RoleOperador, entity.RoleConsulta)

	issuers := protected.Group("/issuers")
	issuerHandler := NewIssuerHandler(deps.IssuerUC)
	issuers.Post("/", adminOnly, issuerHandler.Create)
	issuers.Get("/", canOperate, issuerHandler.List)
	issuers.Get("/:id", canOperate, issuerHandler.GetByID)
	issuers.Post("/:id/timbrados", adminOnly, issuerHandler.AddTimbrado)
	issuers.Get("/:id/timbrados", canOperate, issuerHandler.Timbrados)

	docs := protected.Group("/documents")
	docHandler := NewDocumentHandler(deps.Lifecycle, deps.Create, deps.Payloads, deps.Log)
	docs.Post("/", canWrite, docHandler.Create)
	docs.Post("/void-range", canWrite, docHandler.VoidRange)
	docs.Get("/:id", canOperate, docHandler.GetByID)
	docs.Get("/:id/events", canOperate, docHandler.Events)
	docs.Put("/:id/payload", canWrite, docHandler.AttachPayload)
	docs.Post("/:id/build", canWrite, docHandler.Build)
	docs.Post("/:id/submit", canWrite, docHandler.Submit)
	docs.Post("/:id/query", canOperate, docHandler.Query)
	docs.Post("/:id/cancel", canWrite, docHandler.Cancel)
	docs.Post("/:id/void", canWrite, docHandler.Void)
}

func healthHandler(check func() error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if check != nil {
			if err := check(); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
