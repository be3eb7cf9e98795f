package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	domainsifen "github.com/jhoicas/sifen-api/internal/domain/sifen"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// CreateDocumentInput datos de negocio del DE a generar.
type CreateDocumentInput struct {
	IssuerID      string
	DocumentType  int
	Establishment string
	Point         string
	Number        string
	IssueDate     time.Time
	Currency      string
	TotalAmount   decimal.Decimal
	TaxAmount     decimal.Decimal
}

// CreateDocumentUseCase genera el documento con su CDC y lo deja en GENERATED.
type CreateDocumentUseCase struct {
	issuers   repository.IssuerRepository
	timbrados repository.TimbradoRepository
	docs      repository.DocumentRepository
	lifecycle *Lifecycle
	cdc       *domainsifen.CDCGeneratorService
	security  func() (string, error)
}

// NewCreateDocumentUseCase construye el caso de uso.
func NewCreateDocumentUseCase(
	issuers repository.IssuerRepository,
	timbrados repository.TimbradoRepository,
	docs repository.DocumentRepository,
	lifecycle *Lifecycle,
) *CreateDocumentUseCase {
	return &CreateDocumentUseCase{
		issuers:   issuers,
		timbrados: timbrados,
		docs:      docs,
		lifecycle: lifecycle,
		cdc:       domainsifen.NewCDCGeneratorService(),
		security:  domainsifen.NewSecurityCode,
	}
}

// Execute valida emisor, timbrado y numeración, asigna el CDC y persiste el
// documento con su evento "created".
func (uc *CreateDocumentUseCase) Execute(ctx context.Context, in CreateDocumentInput) (*entity.Document, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	issuer, err := uc.issuers.GetByID(ctx, in.IssuerID)
	if err != nil {
		return nil, fmt.Errorf("emisor %s: %w", in.IssuerID, err)
	}
	if issuer.Status == entity.IssuerStatusSuspended {
		return nil, fmt.Errorf("emisor %s suspendido: %w", issuer.ID, domain.ErrForbidden)
	}
	if err := pkgsifen.ValidateRUCCheckDigit(issuer.RUC, issuer.CheckDigit); err != nil {
		return nil, fmt.Errorf("emisor %s: %v: %w", issuer.ID, err, domain.ErrInvalidInput)
	}

	tim, err := uc.timbrados.GetActive(ctx, issuer.ID, in.Establishment, in.Point)
	if err != nil {
		return nil, err
	}
	if !tim.Covers(in.IssueDate) {
		return nil, fmt.Errorf("timbrado %s no vigente al %s: %w",
			tim.Number, in.IssueDate.Format(time.DateOnly), domain.ErrNoActiveTimbrado)
	}

	taken, err := uc.docs.ExistsNumber(ctx, issuer.ID, in.DocumentType, in.Establishment, in.Point, in.Number)
	if err != nil {
		return nil, fmt.Errorf("verificar numeración: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("numeración %s-%s-%s: %w", in.Establishment, in.Point, in.Number, domain.ErrDuplicate)
	}

	security, err := uc.security()
	if err != nil {
		return nil, err
	}
	cdc, err := uc.cdc.Generate(domainsifen.Identity{
		DocumentType:     in.DocumentType,
		IssuerRUC:        issuer.RUC,
		IssuerCheckDigit: issuer.CheckDigit,
		Establishment:    in.Establishment,
		Point:            in.Point,
		Number:           in.Number,
		IssueDate:        in.IssueDate,
		SecurityCode:     security,
	})
	if err != nil {
		return nil, err
	}

	now := uc.lifecycle.events.Now()
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = "PYG"
	}
	doc := &entity.Document{
		ID:               uuid.New().String(),
		IssuerID:         issuer.ID,
		DocumentType:     in.DocumentType,
		IssuerRUC:        issuer.RUC,
		IssuerCheckDigit: issuer.CheckDigit,
		Establishment:    in.Establishment,
		Point:            in.Point,
		Number:           in.Number,
		IssueDate:        in.IssueDate,
		Currency:         currency,
		TotalAmount:      in.TotalAmount,
		TaxAmount:        in.TaxAmount,
		SecurityCode:     security,
		ControlCode:      cdc,
		State:            entity.StateGenerated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.lifecycle.register(ctx, doc); err != nil {
		return nil, fmt.Errorf("registrar documento: %w", err)
	}
	return doc, nil
}

func validateCreate(in CreateDocumentInput) error {
	switch {
	case in.IssuerID == "":
		return fmt.Errorf("emisor obligatorio: %w", domain.ErrInvalidInput)
	case !pkgsifen.ValidDocumentType(in.DocumentType):
		return fmt.Errorf("tipo de documento %d: %w", in.DocumentType, domain.ErrInvalidInput)
	case len(in.Establishment) != 3 || len(in.Point) != 3 || len(in.Number) != 7:
		return fmt.Errorf("establecimiento (3), punto (3) y número (7) con ancho fijo: %w", domain.ErrInvalidInput)
	case in.IssueDate.IsZero():
		return fmt.Errorf("fecha de emisión obligatoria: %w", domain.ErrInvalidInput)
	case in.TotalAmount.IsNegative() || in.TaxAmount.IsNegative():
		return fmt.Errorf("montos negativos: %w", domain.ErrInvalidInput)
	case in.TaxAmount.GreaterThan(in.TotalAmount):
		return fmt.Errorf("el IVA supera el total: %w", domain.ErrInvalidInput)
	}
	return nil
}
