package entity

import "time"

// Tipos de evento de auditoría del documento.
const (
	EventCreated        = "created"
	EventQuery          = "query"
	EventQueryResponse  = "query-response"
	EventSubmit         = "submit"
	EventSubmitResponse = "submit-response"
	EventSubmitRejected = "submit-rejected"
	EventCancel         = "cancel"
	EventCancelResponse = "cancel-response"
	EventVoid           = "void"
	EventVoidResponse   = "void-response"
	EventPayload        = "payload"
	EventError          = "error"
)

// DocumentEvent registro inmutable de una acción sobre un documento.
// Solo se agregan; nunca se actualizan ni se eliminan.
type DocumentEvent struct {
	ID          string
	DocumentID  string
	Kind        string
	Description string
	Details     map[string]string // código, mensaje, estado_desde, estado_hasta, etc.
	OccurredAt  time.Time
	Seq         int64 // desempate asignado por el almacenamiento
}
