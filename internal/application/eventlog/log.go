// Package eventlog historial de auditoría append-only por documento.
package eventlog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

// Clock fuente de tiempo inyectable.
type Clock interface {
	Now() time.Time
}

// SystemClock reloj real en UTC.
type SystemClock struct{}

// Now devuelve la hora actual en UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Log registra eventos de documentos. Append es la única mutación.
type Log struct {
	repo  repository.DocumentEventRepository
	clock Clock
}

// New crea el log sobre el repositorio dado.
func New(repo repository.DocumentEventRepository, clock Clock) *Log {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Log{repo: repo, clock: clock}
}

// Bind devuelve un Log que escribe en otro repositorio (p. ej. el de una transacción)
// compartiendo el mismo reloj.
func (l *Log) Bind(repo repository.DocumentEventRepository) *Log {
	return &Log{repo: repo, clock: l.clock}
}

// Now expone el reloj del log.
func (l *Log) Now() time.Time {
	return l.clock.Now()
}

// Append asigna ID y OccurredAt (si faltan) y persiste el evento.
func (l *Log) Append(ctx context.Context, ev *entity.DocumentEvent) error {
	if ev == nil || ev.DocumentID == "" || ev.Kind == "" {
		return fmt.Errorf("eventlog: %w: documento y tipo obligatorios", domain.ErrInvalidInput)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = l.clock.Now()
	}
	if ev.Details == nil {
		ev.Details = map[string]string{}
	}
	if err := l.repo.Append(ctx, ev); err != nil {
		return fmt.Errorf("eventlog: registrar %s: %w", ev.Kind, err)
	}
	return nil
}

// Record atajo para Append con tipo, descripción y detalles.
func (l *Log) Record(ctx context.Context, documentID, kind, description string, details map[string]string) error {
	return l.Append(ctx, &entity.DocumentEvent{
		DocumentID:  documentID,
		Kind:        kind,
		Description: description,
		Details:     details,
	})
}

// History devuelve los eventos del documento ordenados por (OccurredAt, Seq).
func (l *Log) History(ctx context.Context, documentID string) ([]*entity.DocumentEvent, error) {
	events, err := l.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: historial: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.Seq < b.Seq
	})
	return events, nil
}
