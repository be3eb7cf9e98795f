package dto

import (
	"time"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// CreateIssuerRequest body para POST /api/issuers. Sin dv se calcula.
type CreateIssuerRequest struct {
	Name       string `json:"razon_social"`
	RUC        string `json:"ruc"`
	CheckDigit string `json:"dv,omitempty"`
}

// IssuerResponse emisor en respuestas.
type IssuerResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"razon_social"`
	RUC        string    `json:"ruc"`
	CheckDigit string    `json:"dv"`
	Status     string    `json:"estado"`
	CreatedAt  time.Time `json:"creado_en"`
}

// IssuerListResponse página de emisores.
type IssuerListResponse struct {
	Items []IssuerResponse `json:"items"`
	Page  PageResponse     `json:"page"`
}

// CreateTimbradoRequest body para POST /api/issuers/:id/timbrados (fechas YYYY-MM-DD).
type CreateTimbradoRequest struct {
	Number        string `json:"numero"`
	Establishment string `json:"establecimiento"`
	Point         string `json:"punto"`
	ValidFrom     string `json:"vigente_desde"`
	ValidTo       string `json:"vigente_hasta"`
}

// TimbradoResponse timbrado en respuestas.
type TimbradoResponse struct {
	ID            string `json:"id"`
	IssuerID      string `json:"issuer_id"`
	Number        string `json:"numero"`
	Establishment string `json:"establecimiento"`
	Point         string `json:"punto"`
	ValidFrom     string `json:"vigente_desde"`
	ValidTo       string `json:"vigente_hasta"`
	IsActive      bool   `json:"activo"`
}

// ToIssuerResponse mapea la entidad.
func ToIssuerResponse(i *entity.Issuer) IssuerResponse {
	return IssuerResponse{
		ID:         i.ID,
		Name:       i.Name,
		RUC:        i.RUC,
		CheckDigit: i.CheckDigit,
		Status:     i.Status,
		CreatedAt:  i.CreatedAt,
	}
}

// ToTimbradoResponse mapea la entidad.
func ToTimbradoResponse(t *entity.Timbrado) TimbradoResponse {
	return TimbradoResponse{
		ID:            t.ID,
		IssuerID:      t.IssuerID,
		Number:        t.Number,
		Establishment: t.Establishment,
		Point:         t.Point,
		ValidFrom:     t.ValidFrom.Format(time.DateOnly),
		ValidTo:       t.ValidTo.Format(time.DateOnly),
		IsActive:      t.IsActive,
	}
}
