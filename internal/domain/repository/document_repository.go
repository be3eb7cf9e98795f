package repository

import (
	"context"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para documentos electrónicos.
// Los documentos nunca se eliminan.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	GetByControlCode(ctx context.Context, cdc string) (*entity.Document, error)
	// Update persiste estado, observación, payload y processed_at.
	// El CDC y los campos de identidad no se modifican.
	Update(ctx context.Context, doc *entity.Document) error
	// ListByRange devuelve los documentos de un emisor/establecimiento/punto con
	// número entre from y to (inclusive), ordenados por número.
	ListByRange(ctx context.Context, issuerID, establishment, point, from, to string) ([]*entity.Document, error)
	// ExistsNumber indica si ya existe un documento con esa numeración y tipo.
	ExistsNumber(ctx context.Context, issuerID string, docType int, establishment, point, number string) (bool, error)
}

// DocumentEventRepository define el puerto append-only del historial de auditoría.
type DocumentEventRepository interface {
	// Append agrega el evento y asigna Seq. No existe Update ni Delete.
	Append(ctx context.Context, ev *entity.DocumentEvent) error
	// ListByDocument devuelve los eventos ordenados por (OccurredAt, Seq).
	ListByDocument(ctx context.Context, documentID string) ([]*entity.DocumentEvent, error)
}
