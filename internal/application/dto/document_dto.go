package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// CreateDocumentRequest body para POST /api/documents.
// IssueDate en formato YYYY-MM-DD o RFC3339.
type CreateDocumentRequest struct {
	IssuerID      string          `json:"issuer_id"`
	DocumentType  int             `json:"tipo_documento"`
	Establishment string          `json:"establecimiento"`
	Point         string          `json:"punto"`
	Number        string          `json:"numero"`
	IssueDate     string          `json:"fecha_emision"`
	Currency      string          `json:"moneda"`
	TotalAmount   decimal.Decimal `json:"total"`
	TaxAmount     decimal.Decimal `json:"iva"`
}

// EventReasonRequest body para cancelación e inutilización.
type EventReasonRequest struct {
	Reason string `json:"motivo"`
}

// VoidRangeRequest body para POST /api/documents/void-range.
type VoidRangeRequest struct {
	IssuerID      string `json:"issuer_id"`
	Establishment string `json:"establecimiento"`
	Point         string `json:"punto"`
	DocumentType  int    `json:"tipo_documento,omitempty"`
	From          string `json:"desde"`
	To            string `json:"hasta"`
	Reason        string `json:"motivo"`
}

// DocumentResponse documento en respuestas.
type DocumentResponse struct {
	ID            string          `json:"id"`
	IssuerID      string          `json:"issuer_id"`
	DocumentType  int             `json:"tipo_documento"`
	Establishment string          `json:"establecimiento"`
	Point         string          `json:"punto"`
	Number        string          `json:"numero"`
	IssueDate     string          `json:"fecha_emision"`
	Currency      string          `json:"moneda"`
	TotalAmount   decimal.Decimal `json:"total"`
	TaxAmount     decimal.Decimal `json:"iva"`
	ControlCode   string          `json:"cdc"`
	State         string          `json:"estado"`
	Observation   string          `json:"observacion,omitempty"`
	HasPayload    bool            `json:"tiene_xml"`
	ProcessedAt   *time.Time      `json:"procesado_en,omitempty"`
	CreatedAt     time.Time       `json:"creado_en"`
	UpdatedAt     time.Time       `json:"actualizado_en"`
}

// RemoteResponse respuesta de SIFEN incluida en el resultado de una operación.
type RemoteResponse struct {
	Code      string `json:"codigo"`
	Message   string `json:"mensaje"`
	Success   bool   `json:"exito"`
	Attempts  int    `json:"intentos"`
	Source    string `json:"fuente,omitempty"`
	Transient bool   `json:"transitorio,omitempty"`
	Unknown   bool   `json:"no_reconocido,omitempty"`
}

// OperationResponse resultado de submit, query, cancel y void.
type OperationResponse struct {
	Document   DocumentResponse `json:"documento"`
	Changed    bool             `json:"cambio_estado"`
	Remote     *RemoteResponse  `json:"sifen,omitempty"`
	EventError string           `json:"error_evento,omitempty"`
}

// VoidRangeResponse resultado de la inutilización por rango.
type VoidRangeResponse struct {
	Voided     []DocumentResponse `json:"inutilizados"`
	Skipped    []DocumentResponse `json:"omitidos"`
	Remote     *RemoteResponse    `json:"sifen,omitempty"`
	EventError string             `json:"error_evento,omitempty"`
}

// EventResponse evento del historial.
type EventResponse struct {
	ID          string            `json:"id"`
	Kind        string            `json:"tipo"`
	Description string            `json:"descripcion"`
	Details     map[string]string `json:"detalles,omitempty"`
	OccurredAt  time.Time         `json:"ocurrido_en"`
}

// ToDocumentResponse mapea la entidad a la respuesta.
func ToDocumentResponse(d *entity.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID,
		IssuerID:      d.IssuerID,
		DocumentType:  d.DocumentType,
		Establishment: d.Establishment,
		Point:         d.Point,
		Number:        d.Number,
		IssueDate:     d.IssueDate.Format(time.DateOnly),
		Currency:      d.Currency,
		TotalAmount:   d.TotalAmount,
		TaxAmount:     d.TaxAmount,
		ControlCode:   d.ControlCode,
		State:         string(d.State),
		Observation:   d.Observation,
		HasPayload:    d.HasPayload(),
		ProcessedAt:   d.ProcessedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToEventResponses mapea el historial.
func ToEventResponses(events []*entity.DocumentEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:          ev.ID,
			Kind:        ev.Kind,
			Description: ev.Description,
			Details:     ev.Details,
			OccurredAt:  ev.OccurredAt,
		})
	}
	return out
}
