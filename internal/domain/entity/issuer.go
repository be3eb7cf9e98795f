package entity

import "time"

// Estados del emisor.
const (
	IssuerStatusActive    = "active"
	IssuerStatusSuspended = "suspended"
)

// Issuer representa al contribuyente emisor de documentos electrónicos.
type Issuer struct {
	ID         string
	Name       string // Razón social
	RUC        string // RUC sin dígito verificador
	CheckDigit string // Dígito verificador del RUC
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
