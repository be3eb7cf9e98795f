package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

// TxRunner ejecuta fn con repositorios que acumulan las escrituras y las
// confirma juntas al terminar sin error. Si fn falla no se persiste nada.
type TxRunner struct {
	s  *Store
	mu sync.Mutex // serializa transacciones entre sí
}

// NewTxRunner crea el runner sobre el Store.
func NewTxRunner(s *Store) *TxRunner {
	return &TxRunner{s: s}
}

// RunDocument ejecuta fn dentro de una transacción.
func (r *TxRunner) RunDocument(ctx context.Context, fn func(docs repository.DocumentRepository, events repository.DocumentEventRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{s: r.s, docs: map[string]*entity.Document{}}
	if err := fn(&txDocs{tx: tx, base: r.s.Documents()}, &txEvents{tx: tx, base: r.s.Events()}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return tx.commit()
}

type memTx struct {
	s       *Store
	creates []*entity.Document
	docs    map[string]*entity.Document // updates pendientes por ID
	order   []string
	events  []*entity.DocumentEvent
}

func (tx *memTx) commit() error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	// Validar todo antes de escribir
	for _, id := range tx.order {
		if _, ok := tx.s.documents[id]; !ok && !tx.created(id) {
			return fmt.Errorf("commit: documento %s: %w", id, domain.ErrNotFound)
		}
	}
	for _, doc := range tx.creates {
		if _, ok := tx.s.documents[doc.ID]; ok {
			return fmt.Errorf("commit: documento %s: %w", doc.ID, domain.ErrDuplicate)
		}
	}

	for _, doc := range tx.creates {
		if err := tx.s.createDocument(doc); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	for _, id := range tx.order {
		if err := tx.s.updateDocument(tx.docs[id]); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	for _, ev := range tx.events {
		if err := tx.s.appendEvent(ev); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

func (tx *memTx) created(id string) bool {
	for _, d := range tx.creates {
		if d.ID == id {
			return true
		}
	}
	return false
}

// ── Repositorios transaccionales ─────────────────────────────────────────────

type txDocs struct {
	tx   *memTx
	base *DocumentRepo
}

func (d *txDocs) Create(_ context.Context, doc *entity.Document) error {
	d.tx.creates = append(d.tx.creates, cloneDocument(doc))
	return nil
}

func (d *txDocs) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	if doc, ok := d.tx.docs[id]; ok {
		return cloneDocument(doc), nil
	}
	for _, doc := range d.tx.creates {
		if doc.ID == id {
			return cloneDocument(doc), nil
		}
	}
	return d.base.GetByID(ctx, id)
}

func (d *txDocs) GetByControlCode(ctx context.Context, cdc string) (*entity.Document, error) {
	for _, doc := range d.tx.creates {
		if doc.ControlCode == cdc {
			return cloneDocument(doc), nil
		}
	}
	doc, err := d.base.GetByControlCode(ctx, cdc)
	if err != nil {
		return nil, err
	}
	return d.GetByID(ctx, doc.ID)
}

func (d *txDocs) Update(_ context.Context, doc *entity.Document) error {
	if _, ok := d.tx.docs[doc.ID]; !ok {
		d.tx.order = append(d.tx.order, doc.ID)
	}
	d.tx.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (d *txDocs) ListByRange(ctx context.Context, issuerID, establishment, point, from, to string) ([]*entity.Document, error) {
	docs, err := d.base.ListByRange(ctx, issuerID, establishment, point, from, to)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if pending, ok := d.tx.docs[doc.ID]; ok {
			docs[i] = cloneDocument(pending)
		}
	}
	return docs, nil
}

func (d *txDocs) ExistsNumber(ctx context.Context, issuerID string, docType int, establishment, point, number string) (bool, error) {
	for _, doc := range d.tx.creates {
		if doc.IssuerID == issuerID && doc.DocumentType == docType &&
			doc.Establishment == establishment && doc.Point == point && doc.Number == number {
			return true, nil
		}
	}
	return d.base.ExistsNumber(ctx, issuerID, docType, establishment, point, number)
}

type txEvents struct {
	tx   *memTx
	base *EventRepo
}

func (e *txEvents) Append(_ context.Context, ev *entity.DocumentEvent) error {
	if ev.ID == "" || ev.DocumentID == "" {
		return fmt.Errorf("evento incompleto: %w", domain.ErrInvalidInput)
	}
	e.tx.events = append(e.tx.events, ev)
	return nil
}

func (e *txEvents) ListByDocument(ctx context.Context, documentID string) ([]*entity.DocumentEvent, error) {
	return e.base.ListByDocument(ctx, documentID)
}
