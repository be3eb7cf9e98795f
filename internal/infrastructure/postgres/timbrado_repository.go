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

var _ repository.TimbradoRepository = (*TimbradoRepo)(nil)

// TimbradoRepo implementa TimbradoRepository sobre PostgreSQL.
type TimbradoRepo struct {
	pool *pgxpool.Pool
}

// NewTimbradoRepository construye el repositorio.
func NewTimbradoRepository(pool *pgxpool.Pool) *TimbradoRepo {
	return &TimbradoRepo{pool: pool}
}

func (r *TimbradoRepo) Create(ctx context.Context, t *entity.Timbrado) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO timbrados
			(id, issuer_id, number, establishment, point, valid_from, valid_to, is_active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`
	_, err := r.pool.Exec(ctx, q,
		t.ID, t.IssuerID, t.Number, t.Establishment, t.Point, t.ValidFrom, t.ValidTo, t.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("timbrado %s: %w", t.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert timbrado: %w", err)
	}
	return nil
}

func (r *TimbradoRepo) GetByID(ctx context.Context, id string) (*entity.Timbrado, error) {
	const q = `
		SELECT id, issuer_id, number, establishment, point,
		       valid_from, valid_to, is_active, created_at, updated_at
		FROM timbrados WHERE id = $1`
	t, err := scanTimbrado(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("timbrado %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get timbrado by id: %w", err)
	}
	return t, nil
}

// GetActive es la consulta crítica al crear un documento.
// Sin timbrado activo devuelve domain.ErrNoActiveTimbrado.
func (r *TimbradoRepo) GetActive(ctx context.Context, issuerID, establishment, point string) (*entity.Timbrado, error) {
	const q = `
		SELECT id, issuer_id, number, establishment, point,
		       valid_from, valid_to, is_active, created_at, updated_at
		FROM timbrados
		WHERE issuer_id     = $1
		  AND establishment = $2
		  AND point         = $3
		  AND is_active     = true
		ORDER BY valid_to DESC
		LIMIT 1`
	t, err := scanTimbrado(r.pool.QueryRow(ctx, q, issuerID, establishment, point))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s-%s: %w", establishment, point, domain.ErrNoActiveTimbrado)
		}
		return nil, fmt.Errorf("get active timbrado: %w", err)
	}
	return t, nil
}

func (r *TimbradoRepo) ListByIssuer(ctx context.Context, issuerID string) ([]*entity.Timbrado, error) {
	const q = `
		SELECT id, issuer_id, number, establishment, point,
		       valid_from, valid_to, is_active, created_at, updated_at
		FROM timbrados
		WHERE issuer_id = $1
		ORDER BY valid_from DESC`
	rows, err := r.pool.Query(ctx, q, issuerID)
	if err != nil {
		return nil, fmt.Errorf("list timbrados: %w", err)
	}
	defer rows.Close()
	var list []*entity.Timbrado
	for rows.Next() {
		t, err := scanTimbrado(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timbrado: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar los scan*.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanTimbrado(row pgxScanner) (*entity.Timbrado, error) {
	var t entity.Timbrado
	err := row.Scan(
		&t.ID, &t.IssuerID, &t.Number, &t.Establishment, &t.Point,
		&t.ValidFrom, &t.ValidTo,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
