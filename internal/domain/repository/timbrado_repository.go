package repository

import (
	"context"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
)

// TimbradoRepository define el puerto de persistencia para timbrados.
type TimbradoRepository interface {
	Create(ctx context.Context, t *entity.Timbrado) error
	GetByID(ctx context.Context, id string) (*entity.Timbrado, error)

	// GetActive devuelve el timbrado activo del emisor para el establecimiento y punto dados.
	// Sin timbrado vigente no se puede emitir el documento.
	GetActive(ctx context.Context, issuerID, establishment, point string) (*entity.Timbrado, error)

	ListByIssuer(ctx context.Context, issuerID string) ([]*entity.Timbrado, error)
}
