package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

// Asegura que IssuerRepo implementa repository.IssuerRepository.
var _ repository.IssuerRepository = (*IssuerRepo)(nil)

// IssuerRepo implementación del puerto IssuerRepository sobre PostgreSQL.
type IssuerRepo struct {
	pool *pgxpool.Pool
}

// NewIssuerRepository construye el adaptador de persistencia para emisores.
func NewIssuerRepository(pool *pgxpool.Pool) *IssuerRepo {
	return &IssuerRepo{pool: pool}
}

const issuerColumns = `id, name, ruc, check_digit, status, created_at, updated_at`

// Create persiste un nuevo emisor.
func (r *IssuerRepo) Create(ctx context.Context, issuer *entity.Issuer) error {
	if issuer.ID == "" {
		issuer.ID = uuid.New().String()
	}
	query := `
		INSERT INTO issuers (` + issuerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		issuer.ID, issuer.Name, issuer.RUC, issuer.CheckDigit, issuer.Status,
		issuer.CreatedAt, issuer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("RUC %s: %w", issuer.RUC, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

// GetByID obtiene un emisor por ID.
func (r *IssuerRepo) GetByID(ctx context.Context, id string) (*entity.Issuer, error) {
	return r.getOne(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE id = $1`, id)
}

// GetByRUC obtiene un emisor por RUC (sin DV).
func (r *IssuerRepo) GetByRUC(ctx context.Context, ruc string) (*entity.Issuer, error) {
	return r.getOne(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE ruc = $1`, ruc)
}

func (r *IssuerRepo) getOne(ctx context.Context, query, arg string) (*entity.Issuer, error) {
	i, err := scanIssuer(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("emisor %s: %w", arg, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get issuer: %w", err)
	}
	return i, nil
}

// List devuelve emisores con paginación.
func (r *IssuerRepo) List(ctx context.Context, limit, offset int) ([]*entity.Issuer, error) {
	query := `SELECT ` + issuerColumns + ` FROM issuers ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var list []*entity.Issuer
	for rows.Next() {
		i, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func scanIssuer(row pgxScanner) (*entity.Issuer, error) {
	var i entity.Issuer
	if err := row.Scan(&i.ID, &i.Name, &i.RUC, &i.CheckDigit, &i.Status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}
