package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

var _ repository.DocumentEventRepository = (*DocumentEventRepo)(nil)

// DocumentEventRepo historial append-only (solo INSERT y SELECT).
type DocumentEventRepo struct {
	q Querier
}

// NewDocumentEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentEventRepository(q Querier) *DocumentEventRepo {
	return &DocumentEventRepo{q: q}
}

// Append inserta el evento; seq lo asigna la secuencia de la tabla.
func (r *DocumentEventRepo) Append(ctx context.Context, ev *entity.DocumentEvent) error {
	details := ev.Details
	if details == nil {
		details = map[string]string{}
	}
	query := `
		INSERT INTO document_events (id, document_id, kind, description, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`
	if err := r.q.QueryRow(ctx, query,
		ev.ID, ev.DocumentID, ev.Kind, ev.Description, details, ev.OccurredAt,
	).Scan(&ev.Seq); err != nil {
		return fmt.Errorf("insert document event: %w", err)
	}
	return nil
}

// ListByDocument eventos del documento en orden (occurred_at, seq).
func (r *DocumentEventRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.DocumentEvent, error) {
	query := `
		SELECT id, document_id, kind, description, details, occurred_at, seq
		FROM document_events
		WHERE document_id = $1
		ORDER BY occurred_at, seq`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	defer rows.Close()

	var list []*entity.DocumentEvent
	for rows.Next() {
		var ev entity.DocumentEvent
		if err := rows.Scan(&ev.ID, &ev.DocumentID, &ev.Kind, &ev.Description, &ev.Details, &ev.OccurredAt, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan document event: %w", err)
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}
