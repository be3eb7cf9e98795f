package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunDocument inicia una transacción, ejecuta fn con los repos de documento y
// eventos atados a la tx y hace Commit o Rollback. Las lecturas por ID dentro
// de fn bloquean la fila (SELECT … FOR UPDATE).
func (r *TxRunner) RunDocument(ctx context.Context, fn func(
	docs repository.DocumentRepository,
	events repository.DocumentEventRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docs := &DocumentRepo{q: tx, forUpdate: true}
	events := NewDocumentEventRepository(tx)

	if err := fn(docs, events); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
