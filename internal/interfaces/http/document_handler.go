package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/sifen-api/internal/application/billing"
	"github.com/jhoicas/sifen-api/internal/application/dto"
	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	domainsifen "github.com/jhoicas/sifen-api/internal/domain/sifen"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
)

// DocumentHandler maneja el ciclo de vida de los documentos electrónicos (protegido).
type DocumentHandler struct {
	lifecycle *billing.Lifecycle
	create    *billing.CreateDocumentUseCase
	payloads  *billing.PayloadService
	log       zerolog.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(lifecycle *billing.Lifecycle, create *billing.CreateDocumentUseCase, payloads *billing.PayloadService, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{lifecycle: lifecycle, create: create, payloads: payloads, log: log}
}

// Create genera el documento con su CDC.
// POST /api/documents
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	issueDate, err := parseDate(in.IssueDate)
	if err != nil {
		return writeError(c, err)
	}
	doc, err := h.create.Execute(c.Context(), billing.CreateDocumentInput{
		IssuerID:      in.IssuerID,
		DocumentType:  in.DocumentType,
		Establishment: in.Establishment,
		Point:         in.Point,
		Number:        in.Number,
		IssueDate:     issueDate,
		Currency:      in.Currency,
		TotalAmount:   in.TotalAmount,
		TaxAmount:     in.TaxAmount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToDocumentResponse(doc))
}

// GetByID devuelve el documento.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	doc, err := h.lifecycle.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToDocumentResponse(doc))
}

// Events devuelve el historial ordenado.
// GET /api/documents/:id/events
func (h *DocumentHandler) Events(c *fiber.Ctx) error {
	events, err := h.lifecycle.History(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToEventResponses(events))
}

// AttachPayload adjunta el XML recibido en el cuerpo (se firma si la firma está habilitada).
// PUT /api/documents/:id/payload
func (h *DocumentHandler) AttachPayload(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)
	r, err := h.payloads.Attach(c.Context(), c.Params("id"), raw)
	return h.operation(c, r, err)
}

// Build arma el DE desde el documento guardado, lo firma y lo adjunta.
// POST /api/documents/:id/build
func (h *DocumentHandler) Build(c *fiber.Ctx) error {
	r, err := h.payloads.Build(c.Context(), c.Params("id"))
	return h.operation(c, r, err)
}

// Submit envía el DE a SIFEN.
// POST /api/documents/:id/submit
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	r, err := h.lifecycle.Submit(c.Context(), c.Params("id"))
	return h.operation(c, r, err)
}

// Query consulta el estado del DE en SIFEN.
// POST /api/documents/:id/query
func (h *DocumentHandler) Query(c *fiber.Ctx) error {
	r, err := h.lifecycle.Query(c.Context(), c.Params("id"))
	return h.operation(c, r, err)
}

// Cancel envía el evento de cancelación.
// POST /api/documents/:id/cancel
func (h *DocumentHandler) Cancel(c *fiber.Ctx) error {
	var in dto.EventReasonRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	r, err := h.payloads.Cancel(c.Context(), c.Params("id"), in.Reason)
	return h.operation(c, r, err)
}

// Void inutiliza el documento (rol operador o admin).
// POST /api/documents/:id/void
func (h *DocumentHandler) Void(c *fiber.Ctx) error {
	var in dto.EventReasonRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	r, err := h.payloads.Void(c.Context(), c.Params("id"), GetOperator(c), in.Reason)
	return h.operation(c, r, err)
}

// VoidRange inutiliza un rango de numeración (rol operador o admin).
// POST /api/documents/void-range
func (h *DocumentHandler) VoidRange(c *fiber.Ctx) error {
	var in dto.VoidRangeRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.payloads.VoidRange(c.Context(), billing.VoidRangeInput{
		IssuerID:      in.IssuerID,
		Establishment: in.Establishment,
		Point:         in.Point,
		From:          in.From,
		To:            in.To,
		Operator:      GetOperator(c),
	}, in.DocumentType, in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	resp := dto.VoidRangeResponse{
		Voided:  toDocumentResponses(out.Voided),
		Skipped: toDocumentResponses(out.Skipped),
		Remote:  toRemoteResponse(out.Remote, nil),
	}
	if out.EventErr != nil {
		resp.EventError = out.EventErr.Error()
	}
	return c.JSON(resp)
}

// operation responde el resultado de una operación del ciclo de vida. Con
// error se responde el error; el historial ya registró el intento.
func (h *DocumentHandler) operation(c *fiber.Ctx, r *billing.Result, err error) error {
	if err != nil {
		if r != nil && r.Document != nil {
			h.log.Warn().Err(err).
				Str("documento", r.Document.ID).
				Str("estado", string(r.Document.State)).
				Str("ruta", c.Path()).
				Msg("operación sin efecto")
		}
		return writeError(c, err)
	}
	resp := dto.OperationResponse{
		Document: dto.ToDocumentResponse(r.Document),
		Changed:  r.Changed,
		Remote:   toRemoteResponse(r.Remote, &r.Outcome),
	}
	if r.EventErr != nil {
		resp.EventError = r.EventErr.Error()
	}
	return c.JSON(resp)
}

func toRemoteResponse(res *infrasifen.RemoteResult, out *domainsifen.Outcome) *dto.RemoteResponse {
	if res == nil {
		return nil
	}
	r := &dto.RemoteResponse{
		Code:     res.Code,
		Message:  res.Message,
		Success:  res.Success,
		Attempts: res.Attempts,
		Source:   res.Source,
	}
	if out != nil {
		r.Transient = out.Transient
		r.Unknown = out.Unrecognized
	}
	return r
}

func toDocumentResponses(docs []*entity.Document) []dto.DocumentResponse {
	out := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, dto.ToDocumentResponse(d))
	}
	return out
}

// parseDate acepta YYYY-MM-DD o RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha %q: %w", s, domain.ErrInvalidInput)
	}
	return t, nil
}
