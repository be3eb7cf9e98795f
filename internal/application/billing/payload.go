package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	infrasifen "github.com/jhoicas/sifen-api/internal/infrastructure/sifen"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// PayloadService arma y firma el XML del DE y de sus eventos antes de
// delegar en el Lifecycle.
type PayloadService struct {
	lifecycle *Lifecycle
	issuers   repository.IssuerRepository
	timbrados repository.TimbradoRepository
	builder   pkgsifen.DocumentBuilder
	signer    pkgsifen.Signer
	log       zerolog.Logger
}

// NewPayloadService construye el servicio. Un signer nil equivale a PassthroughSigner.
func NewPayloadService(
	lifecycle *Lifecycle,
	issuers repository.IssuerRepository,
	timbrados repository.TimbradoRepository,
	builder pkgsifen.DocumentBuilder,
	signer pkgsifen.Signer,
	log zerolog.Logger,
) *PayloadService {
	if signer == nil {
		signer = pkgsifen.PassthroughSigner{}
	}
	return &PayloadService{
		lifecycle: lifecycle,
		issuers:   issuers,
		timbrados: timbrados,
		builder:   builder,
		signer:    signer,
		log:       log,
	}
}

// Build genera el XML del DE a partir del documento guardado, lo firma y lo adjunta.
func (s *PayloadService) Build(ctx context.Context, id string) (*Result, error) {
	doc, err := s.lifecycle.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	issuer, err := s.issuerParams(ctx, doc.IssuerID, doc.Establishment, doc.Point)
	if err != nil {
		return nil, err
	}
	raw, err := s.builder.Build(issuer, map[string]any{
		infrasifen.KeyCDC:           doc.ControlCode,
		infrasifen.KeyDocType:       doc.DocumentType,
		infrasifen.KeyEstablishment: doc.Establishment,
		infrasifen.KeyPoint:         doc.Point,
		infrasifen.KeyNumber:        doc.Number,
		infrasifen.KeyIssueDate:     doc.IssueDate,
		infrasifen.KeyCurrency:      doc.Currency,
		infrasifen.KeyTotal:         doc.TotalAmount,
		infrasifen.KeyTax:           doc.TaxAmount,
		infrasifen.KeySecurityCode:  doc.SecurityCode,
	}, map[string]any{infrasifen.KeySignedAt: s.lifecycle.events.Now()})
	if err != nil {
		return nil, fmt.Errorf("armar DE: %v: %w", err, domain.ErrInvalidInput)
	}
	return s.Attach(ctx, id, raw)
}

// Attach firma el XML recibido y lo adjunta como payload.
func (s *PayloadService) Attach(ctx context.Context, id string, raw []byte) (*Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload vacío: %w", domain.ErrInvalidInput)
	}
	signed, err := s.signer.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("firmar DE: %w", err)
	}
	return s.lifecycle.AttachPayload(ctx, id, signed)
}

// Cancel arma y firma el evento de cancelación y lo envía. Si el documento
// no admite cancelación el Lifecycle lo rechaza antes de armar nada remoto.
func (s *PayloadService) Cancel(ctx context.Context, id, reason string) (*Result, error) {
	if reason == "" {
		return nil, fmt.Errorf("motivo obligatorio: %w", domain.ErrInvalidInput)
	}
	doc, err := s.lifecycle.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if doc.State == entity.StateAccepted {
		payload, err = s.event(ctx, doc.IssuerID, doc.Establishment, doc.Point, map[string]any{
			infrasifen.KeyEventType: infrasifen.EventTypeCancel,
			infrasifen.KeyCDC:       doc.ControlCode,
			infrasifen.KeyReason:    reason,
		})
		if err != nil {
			return nil, err
		}
	}
	return s.lifecycle.Cancel(ctx, id, payload)
}

// Void inutiliza el documento. El evento se arma sobre su propio número; si no
// se puede armar (p. ej. sin timbrado vigente) la inutilización local sigue.
func (s *PayloadService) Void(ctx context.Context, id, operator, reason string) (*Result, error) {
	doc, err := s.lifecycle.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if !doc.State.IsTerminal() && operator != "" {
		payload = s.voidEvent(ctx, doc.IssuerID, doc.Establishment, doc.Point, doc.DocumentType, doc.Number, doc.Number, reason)
	}
	return s.lifecycle.Void(ctx, id, operator, payload)
}

// VoidRange inutiliza el rango y envía un único evento por el rango completo.
func (s *PayloadService) VoidRange(ctx context.Context, in VoidRangeInput, docType int, reason string) (*VoidRangeResult, error) {
	if err := validateRange(in); err != nil {
		return nil, err
	}
	if docType == 0 {
		docType = 1
	}
	payload := s.voidEvent(ctx, in.IssuerID, in.Establishment, in.Point, docType, in.From, in.To, reason)
	return s.lifecycle.VoidRange(ctx, in, payload)
}

func (s *PayloadService) voidEvent(ctx context.Context, issuerID, est, point string, docType int, from, to, reason string) []byte {
	payload, err := s.event(ctx, issuerID, est, point, map[string]any{
		infrasifen.KeyEventType:     infrasifen.EventTypeVoid,
		infrasifen.KeyEstablishment: est,
		infrasifen.KeyPoint:         point,
		infrasifen.KeyDocType:       docType,
		infrasifen.KeyFrom:          from,
		infrasifen.KeyTo:            to,
		infrasifen.KeyReason:        reason,
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("establecimiento", est).
			Str("punto", point).
			Msg("evento de inutilización no armado, se inutiliza solo localmente")
		return nil
	}
	return payload
}

func (s *PayloadService) event(ctx context.Context, issuerID, est, point string, data map[string]any) ([]byte, error) {
	issuer, err := s.issuerParams(ctx, issuerID, est, point)
	if err != nil {
		return nil, err
	}
	now := s.lifecycle.events.Now()
	eventID := strconv.FormatInt(now.UnixNano()%1e10, 10)
	raw, err := s.builder.BuildEvent(eventID, issuer, data, map[string]any{infrasifen.KeySignedAt: now})
	if err != nil {
		return nil, fmt.Errorf("armar evento: %w", err)
	}
	signed, err := s.signer.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("firmar evento: %w", err)
	}
	return signed, nil
}

// issuerParams parámetros del emisor con el timbrado activo del establecimiento/punto.
func (s *PayloadService) issuerParams(ctx context.Context, issuerID, est, point string) (map[string]any, error) {
	issuer, err := s.issuers.GetByID(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("emisor %s: %w", issuerID, err)
	}
	params := map[string]any{
		infrasifen.KeyRUC:        issuer.RUC,
		infrasifen.KeyCheckDigit: issuer.CheckDigit,
		infrasifen.KeyName:       issuer.Name,
	}
	tim, err := s.timbrados.GetActive(ctx, issuerID, est, point)
	switch {
	case errors.Is(err, domain.ErrNoActiveTimbrado):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("timbrado: %w", err)
	}
	params[infrasifen.KeyTimbrado] = tim.Number
	return params, nil
}
