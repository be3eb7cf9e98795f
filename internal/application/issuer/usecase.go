// Package issuer alta y consulta de emisores y sus timbrados.
package issuer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	pkgsifen "github.com/jhoicas/sifen-api/pkg/sifen"
)

// CreateIssuerInput datos del emisor. Sin CheckDigit se calcula desde el RUC.
type CreateIssuerInput struct {
	Name       string
	RUC        string
	CheckDigit string
}

// CreateTimbradoInput timbrado de un establecimiento/punto.
type CreateTimbradoInput struct {
	Number        string
	Establishment string
	Point         string
	ValidFrom     time.Time
	ValidTo       time.Time
}

// UseCase casos de uso de emisores.
type UseCase struct {
	issuers   repository.IssuerRepository
	timbrados repository.TimbradoRepository
	now       func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(issuers repository.IssuerRepository, timbrados repository.TimbradoRepository) *UseCase {
	return &UseCase{issuers: issuers, timbrados: timbrados, now: func() time.Time { return time.Now().UTC() }}
}

// Create registra el emisor validando el DV del RUC.
func (uc *UseCase) Create(ctx context.Context, in CreateIssuerInput) (*entity.Issuer, error) {
	name := strings.TrimSpace(in.Name)
	ruc := strings.TrimSpace(in.RUC)
	if name == "" || ruc == "" {
		return nil, fmt.Errorf("razón social y RUC obligatorios: %w", domain.ErrInvalidInput)
	}
	dv := strings.TrimSpace(in.CheckDigit)
	if dv == "" {
		computed, err := pkgsifen.ComputeRUCCheckDigit(ruc)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
		}
		dv = string(computed)
	} else if err := pkgsifen.ValidateRUCCheckDigit(ruc, dv); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}

	now := uc.now()
	iss := &entity.Issuer{
		ID:         uuid.New().String(),
		Name:       name,
		RUC:        ruc,
		CheckDigit: dv,
		Status:     entity.IssuerStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.issuers.Create(ctx, iss); err != nil {
		return nil, err
	}
	return iss, nil
}

// Get devuelve el emisor.
func (uc *UseCase) Get(ctx context.Context, id string) (*entity.Issuer, error) {
	return uc.issuers.GetByID(ctx, id)
}

// List lista emisores paginados.
func (uc *UseCase) List(ctx context.Context, limit, offset int) ([]*entity.Issuer, error) {
	return uc.issuers.List(ctx, limit, offset)
}

// AddTimbrado registra un timbrado activo para el emisor.
func (uc *UseCase) AddTimbrado(ctx context.Context, issuerID string, in CreateTimbradoInput) (*entity.Timbrado, error) {
	if _, err := uc.issuers.GetByID(ctx, issuerID); err != nil {
		return nil, err
	}
	switch {
	case len(in.Number) != 8 || !digits(in.Number):
		return nil, fmt.Errorf("número de timbrado de 8 dígitos: %w", domain.ErrInvalidInput)
	case len(in.Establishment) != 3 || !digits(in.Establishment) || len(in.Point) != 3 || !digits(in.Point):
		return nil, fmt.Errorf("establecimiento y punto de 3 dígitos: %w", domain.ErrInvalidInput)
	case in.ValidFrom.IsZero() || in.ValidTo.IsZero() || in.ValidTo.Before(in.ValidFrom):
		return nil, fmt.Errorf("vigencia inválida: %w", domain.ErrInvalidInput)
	}
	now := uc.now()
	t := &entity.Timbrado{
		ID:            uuid.New().String(),
		IssuerID:      issuerID,
		Number:        in.Number,
		Establishment: in.Establishment,
		Point:         in.Point,
		ValidFrom:     in.ValidFrom,
		ValidTo:       in.ValidTo,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.timbrados.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Timbrados lista los timbrados del emisor.
func (uc *UseCase) Timbrados(ctx context.Context, issuerID string) ([]*entity.Timbrado, error) {
	if _, err := uc.issuers.GetByID(ctx, issuerID); err != nil {
		return nil, err
	}
	return uc.timbrados.ListByIssuer(ctx, issuerID)
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
