package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/application/issuer"
)

// IssuerHandler alta y consulta de emisores y timbrados.
type IssuerHandler struct {
	uc *issuer.UseCase
}

// NewIssuerHandler construye el handler.
func NewIssuerHandler(uc *issuer.UseCase) *IssuerHandler {
	return &IssuerHandler{uc: uc}
}

// Create registra un emisor.
// POST /api/issuers
func (h *IssuerHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateIssuerRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	iss, err := h.uc.Create(c.Context(), issuer.CreateIssuerInput{Name: in.Name, RUC: in.RUC, CheckDigit: in.CheckDigit})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToIssuerResponse(iss))
}

// List lista emisores.
// GET /api/issuers?limit=&offset=
func (h *IssuerHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	_ = c.QueryParser(&page)
	page.DefaultPage()
	list, err := h.uc.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.IssuerResponse, 0, len(list))
	for _, i := range list {
		items = append(items, dto.ToIssuerResponse(i))
	}
	return c.JSON(dto.IssuerListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}})
}

// GetByID devuelve el emisor.
// GET /api/issuers/:id
func (h *IssuerHandler) GetByID(c *fiber.Ctx) error {
	iss, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToIssuerResponse(iss))
}

// AddTimbrado registra un timbrado del emisor.
// POST /api/issuers/:id/timbrados
func (h *IssuerHandler) AddTimbrado(c *fiber.Ctx) error {
	var in dto.CreateTimbradoRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	from, err := parseDate(in.ValidFrom)
	if err != nil {
		return writeError(c, err)
	}
	to, err := parseDate(in.ValidTo)
	if err != nil {
		return writeError(c, err)
	}
	t, err := h.uc.AddTimbrado(c.Context(), c.Params("id"), issuer.CreateTimbradoInput{
		Number:        in.Number,
		Establishment: in.Establishment,
		Point:         in.Point,
		ValidFrom:     from,
		ValidTo:       to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToTimbradoResponse(t))
}

// Timbrados lista los timbrados del emisor.
// GET /api/issuers/:id/timbrados
func (h *IssuerHandler) Timbrados(c *fiber.Ctx) error {
	list, err := h.uc.Timbrados(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.TimbradoResponse, 0, len(list))
	for _, t := range list {
		out = append(out, dto.ToTimbradoResponse(t))
	}
	return c.JSON(out)
}
