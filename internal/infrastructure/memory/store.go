// Package memory implementa los repositorios en memoria (APP_STORAGE=memory y tests).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

// Store guarda todas las tablas bajo un mismo lock para que TxRunner
// pueda confirmar documento y evento de forma atómica.
type Store struct {
	mu        sync.RWMutex
	documents map[string]*entity.Document
	byCDC     map[string]string
	events    map[string][]*entity.DocumentEvent
	seq       int64
	issuers   map[string]*entity.Issuer
	timbrados map[string]*entity.Timbrado
}

// NewStore crea un almacenamiento vacío.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]*entity.Document),
		byCDC:     make(map[string]string),
		events:    make(map[string][]*entity.DocumentEvent),
		issuers:   make(map[string]*entity.Issuer),
		timbrados: make(map[string]*entity.Timbrado),
	}
}

// Documents devuelve el repositorio de documentos.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Events devuelve el repositorio de eventos.
func (s *Store) Events() *EventRepo { return &EventRepo{s: s} }

// Issuers devuelve el repositorio de emisores.
func (s *Store) Issuers() *IssuerRepo { return &IssuerRepo{s: s} }

// Timbrados devuelve el repositorio de timbrados.
func (s *Store) Timbrados() *TimbradoRepo { return &TimbradoRepo{s: s} }

// ── Documentos ───────────────────────────────────────────────────────────────

// DocumentRepo implementa repository.DocumentRepository.
type DocumentRepo struct{ s *Store }

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

func (r *DocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createDocument(doc)
}

func (r *DocumentRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	doc, ok := r.s.documents[id]
	if !ok {
		return nil, fmt.Errorf("documento %s: %w", id, domain.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

func (r *DocumentRepo) GetByControlCode(ctx context.Context, cdc string) (*entity.Document, error) {
	r.s.mu.RLock()
	id, ok := r.s.byCDC[cdc]
	r.s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("CDC %s: %w", cdc, domain.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *DocumentRepo) Update(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.updateDocument(doc)
}

func (r *DocumentRepo) ListByRange(_ context.Context, issuerID, establishment, point, from, to string) ([]*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Document
	for _, d := range r.s.documents {
		if d.IssuerID != issuerID || d.Establishment != establishment || d.Point != point {
			continue
		}
		if d.Number < from || d.Number > to {
			continue
		}
		out = append(out, cloneDocument(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number == out[j].Number {
			return out[i].DocumentType < out[j].DocumentType
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r *DocumentRepo) ExistsNumber(_ context.Context, issuerID string, docType int, establishment, point, number string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.numberTaken(issuerID, docType, establishment, point, number), nil
}

// createDocument requiere r.s.mu tomado.
func (s *Store) createDocument(doc *entity.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("documento sin ID: %w", domain.ErrInvalidInput)
	}
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrDuplicate)
	}
	if _, ok := s.byCDC[doc.ControlCode]; ok && doc.ControlCode != "" {
		return fmt.Errorf("CDC %s: %w", doc.ControlCode, domain.ErrDuplicate)
	}
	if s.numberTaken(doc.IssuerID, doc.DocumentType, doc.Establishment, doc.Point, doc.Number) {
		return fmt.Errorf("numeración %s-%s-%s: %w", doc.Establishment, doc.Point, doc.Number, domain.ErrDuplicate)
	}
	s.documents[doc.ID] = cloneDocument(doc)
	if doc.ControlCode != "" {
		s.byCDC[doc.ControlCode] = doc.ID
	}
	return nil
}

// updateDocument requiere r.s.mu tomado. Solo cambian los campos mutables.
func (s *Store) updateDocument(doc *entity.Document) error {
	cur, ok := s.documents[doc.ID]
	if !ok {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrNotFound)
	}
	next := cloneDocument(cur)
	next.State = doc.State
	next.Observation = doc.Observation
	next.Payload = append([]byte(nil), doc.Payload...)
	next.ProcessedAt = doc.ProcessedAt
	next.UpdatedAt = doc.UpdatedAt
	s.documents[doc.ID] = next
	return nil
}

func (s *Store) numberTaken(issuerID string, docType int, establishment, point, number string) bool {
	for _, d := range s.documents {
		if d.IssuerID == issuerID && d.DocumentType == docType &&
			d.Establishment == establishment && d.Point == point && d.Number == number {
			return true
		}
	}
	return false
}

func cloneDocument(d *entity.Document) *entity.Document {
	c := *d
	c.Payload = append([]byte(nil), d.Payload...)
	if d.ProcessedAt != nil {
		t := *d.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// ── Eventos (append-only) ────────────────────────────────────────────────────

// EventRepo implementa repository.DocumentEventRepository.
type EventRepo struct{ s *Store }

var _ repository.DocumentEventRepository = (*EventRepo)(nil)

func (r *EventRepo) Append(_ context.Context, ev *entity.DocumentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appendEvent(ev)
}

func (r *EventRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.DocumentEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	src := r.s.events[documentID]
	out := make([]*entity.DocumentEvent, 0, len(src))
	for _, ev := range src {
		out = append(out, cloneEvent(ev))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// appendEvent requiere r.s.mu tomado; asigna Seq.
func (s *Store) appendEvent(ev *entity.DocumentEvent) error {
	if ev.ID == "" || ev.DocumentID == "" {
		return fmt.Errorf("evento incompleto: %w", domain.ErrInvalidInput)
	}
	for _, existing := range s.events[ev.DocumentID] {
		if existing.ID == ev.ID {
			return fmt.Errorf("evento %s: %w", ev.ID, domain.ErrDuplicate)
		}
	}
	s.seq++
	ev.Seq = s.seq
	s.events[ev.DocumentID] = append(s.events[ev.DocumentID], cloneEvent(ev))
	return nil
}

func cloneEvent(ev *entity.DocumentEvent) *entity.DocumentEvent {
	c := *ev
	c.Details = make(map[string]string, len(ev.Details))
	for k, v := range ev.Details {
		c.Details[k] = v
	}
	return &c
}

// ── Emisores ─────────────────────────────────────────────────────────────────

// IssuerRepo implementa repository.IssuerRepository.
type IssuerRepo struct{ s *Store }

var _ repository.IssuerRepository = (*IssuerRepo)(nil)

func (r *IssuerRepo) Create(_ context.Context, issuer *entity.Issuer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.issuers {
		if i.RUC == issuer.RUC {
			return fmt.Errorf("RUC %s: %w", issuer.RUC, domain.ErrDuplicate)
		}
	}
	c := *issuer
	r.s.issuers[issuer.ID] = &c
	return nil
}

func (r *IssuerRepo) GetByID(_ context.Context, id string) (*entity.Issuer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.issuers[id]
	if !ok {
		return nil, fmt.Errorf("emisor %s: %w", id, domain.ErrNotFound)
	}
	c := *i
	return &c, nil
}

func (r *IssuerRepo) GetByRUC(_ context.Context, ruc string) (*entity.Issuer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, i := range r.s.issuers {
		if i.RUC == ruc {
			c := *i
			return &c, nil
		}
	}
	return nil, fmt.Errorf("RUC %s: %w", ruc, domain.ErrNotFound)
}

func (r *IssuerRepo) List(_ context.Context, limit, offset int) ([]*entity.Issuer, error) {
	r.s.mu.RLock()
	all := make([]*entity.Issuer, 0, len(r.s.issuers))
	for _, i := range r.s.issuers {
		c := *i
		all = append(all, &c)
	}
	r.s.mu.RUnlock()
	sort.Slice(all, func(a, b int) bool { return all[a].Name < all[b].Name })
	if offset >= len(all) {
		return []*entity.Issuer{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ── Timbrados ────────────────────────────────────────────────────────────────

// TimbradoRepo implementa repository.TimbradoRepository.
type TimbradoRepo struct{ s *Store }

var _ repository.TimbradoRepository = (*TimbradoRepo)(nil)

func (r *TimbradoRepo) Create(_ context.Context, t *entity.Timbrado) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.timbrados[t.ID]; ok {
		return fmt.Errorf("timbrado %s: %w", t.ID, domain.ErrDuplicate)
	}
	c := *t
	r.s.timbrados[t.ID] = &c
	return nil
}

func (r *TimbradoRepo) GetByID(_ context.Context, id string) (*entity.Timbrado, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.timbrados[id]
	if !ok {
		return nil, fmt.Errorf("timbrado %s: %w", id, domain.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// GetActive devuelve el timbrado activo con fin de vigencia más lejano.
func (r *TimbradoRepo) GetActive(_ context.Context, issuerID, establishment, point string) (*entity.Timbrado, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *entity.Timbrado
	for _, t := range r.s.timbrados {
		if t.IssuerID != issuerID || t.Establishment != establishment || t.Point != point || !t.IsActive {
			continue
		}
		if best == nil || t.ValidTo.After(best.ValidTo) {
			best = t
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s-%s: %w", establishment, point, domain.ErrNoActiveTimbrado)
	}
	c := *best
	return &c, nil
}

func (r *TimbradoRepo) ListByIssuer(_ context.Context, issuerID string) ([]*entity.Timbrado, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Timbrado
	for _, t := range r.s.timbrados {
		if t.IssuerID == issuerID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out, nil
}
