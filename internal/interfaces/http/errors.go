package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/domain"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Orden: las sentinelas de dominio primero, después las fallas de SIFEN.
var errorMappings = []errorMapping{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidIdentity, fiber.StatusBadRequest, "INVALID_IDENTITY"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrTerminalState, fiber.StatusConflict, "TERMINAL_STATE"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrPayloadRequired, fiber.StatusConflict, "PAYLOAD_REQUIRED"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrNoActiveTimbrado, fiber.StatusUnprocessableEntity, "NO_ACTIVE_TIMBRADO"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{infrasifen.ErrAuthentication, fiber.StatusBadGateway, "SIFEN_AUTHENTICATION"},
	{infrasifen.ErrRemoteRejection, fiber.StatusBadGateway, "SIFEN_REJECTION"},
	{infrasifen.ErrMissingCredential, fiber.StatusServiceUnavailable, "SIFEN_MISSING_CREDENTIAL"},
	{infrasifen.ErrCertificateExpired, fiber.StatusServiceUnavailable, "SIFEN_CERTIFICATE_EXPIRED"},
	{infrasifen.ErrTransport, fiber.StatusGatewayTimeout, "SIFEN_UNAVAILABLE"},
}

// writeError traduce el error a status + dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
