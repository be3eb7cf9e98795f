package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentState estado del documento electrónico frente a SIFEN.
type DocumentState string

// Estados del ciclo de vida. Los finales no vuelven a un estado no final.
const (
	StateGenerated DocumentState = "GENERATED" // Creado con CDC asignado, aún no enviado
	StateSent      DocumentState = "SENT"      // Entregado al WS SIFEN, respuesta no definitiva
	StateAccepted  DocumentState = "ACCEPTED"  // Aprobado por SIFEN
	StateRejected  DocumentState = "REJECTED"  // Rechazado por SIFEN
	StateCancelled DocumentState = "CANCELLED" // Cancelado mediante evento
	StateVoided    DocumentState = "VOIDED"    // Inutilizado por un operador
	StateError     DocumentState = "ERROR"     // Falla no recuperable sin intervención (credencial rechazada)
)

// IsTerminal indica si el estado es final.
func (s DocumentState) IsTerminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateCancelled, StateVoided:
		return true
	}
	return false
}

// Valid indica si s es uno de los estados conocidos.
func (s DocumentState) Valid() bool {
	switch s {
	case StateGenerated, StateSent, StateAccepted, StateRejected, StateCancelled, StateVoided, StateError:
		return true
	}
	return false
}

// Document representa un documento electrónico (DE) y su estado frente a SIFEN.
type Document struct {
	ID               string
	IssuerID         string
	DocumentType     int    // 1–7, ver pkg/sifen
	IssuerRUC        string // RUC del emisor sin DV
	IssuerCheckDigit string // DV del RUC
	Establishment    string // 3 dígitos
	Point            string // 3 dígitos (punto de expedición)
	Number           string // 7 dígitos
	IssueDate        time.Time
	Currency         string // ISO 4217 (PYG, USD…)
	TotalAmount      decimal.Decimal
	TaxAmount        decimal.Decimal
	SecurityCode     string // 8 dígitos aleatorios incluidos en el CDC
	ControlCode      string // CDC de 44 dígitos; inmutable una vez asignado
	State            DocumentState
	Observation      string // Explicación derivada de la última respuesta
	Payload          []byte // XML firmado a transmitir
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPayload indica si el documento tiene XML firmado listo para enviar.
func (d *Document) HasPayload() bool {
	return len(d.Payload) > 0
}
