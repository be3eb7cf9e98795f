package billing

import (
	"context"

	"github.com/jhoicas/sifen-api/internal/domain/repository"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
)

// DocumentTxRunner ejecuta fn dentro de una transacción con los repos de
// documento y eventos: el cambio de estado y su evento se confirman juntos.
type DocumentTxRunner interface {
	RunDocument(ctx context.Context, fn func(
		docs repository.DocumentRepository,
		events repository.DocumentEventRepository,
	) error) error
}

// RemoteClient cliente del WS SIFEN (consulta, recepción de DE y eventos).
type RemoteClient = infrasifen.RemoteClient
