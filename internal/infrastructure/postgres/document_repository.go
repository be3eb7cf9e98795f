package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q         Querier
	forUpdate bool // dentro de una tx, las lecturas por ID bloquean la fila
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `id, issuer_id, document_type, issuer_ruc, issuer_check_digit,
       establishment, point, number, issue_date, currency, total_amount, tax_amount,
       security_code, control_code, state, observation, payload, processed_at,
       created_at, updated_at`

// Create persiste el documento con su CDC.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.IssuerID, doc.DocumentType, doc.IssuerRUC, doc.IssuerCheckDigit,
		doc.Establishment, doc.Point, doc.Number, doc.IssueDate, doc.Currency,
		doc.TotalAmount, doc.TaxAmount, doc.SecurityCode, doc.ControlCode, string(doc.State),
		nullIfEmpty(doc.Observation), doc.Payload, doc.ProcessedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("documento %s-%s-%s: %w", doc.Establishment, doc.Point, doc.Number, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID obtiene el documento; domain.ErrNotFound si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, query, id)
}

// GetByControlCode obtiene el documento por CDC.
func (r *DocumentRepo) GetByControlCode(ctx context.Context, cdc string) (*entity.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE control_code = $1`, cdc)
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, arg string) (*entity.Document, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("documento %s: %w", arg, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Update persiste los campos mutables. El CDC y la identidad no cambian.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	query := `
		UPDATE documents
		SET state        = $2,
		    observation  = $3,
		    payload      = $4,
		    processed_at = $5,
		    updated_at   = $6
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, string(doc.State), nullIfEmpty(doc.Observation), doc.Payload, doc.ProcessedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByRange documentos del punto de expedición con número en [from, to].
func (r *DocumentRepo) ListByRange(ctx context.Context, issuerID, establishment, point, from, to string) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE issuer_id = $1 AND establishment = $2 AND point = $3 AND number BETWEEN $4 AND $5
		ORDER BY number, document_type`
	rows, err := r.q.Query(ctx, query, issuerID, establishment, point, from, to)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var list []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

// ExistsNumber indica si la numeración ya fue usada.
func (r *DocumentRepo) ExistsNumber(ctx context.Context, issuerID string, docType int, establishment, point, number string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE issuer_id = $1 AND document_type = $2 AND establishment = $3 AND point = $4 AND number = $5
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, issuerID, docType, establishment, point, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists document number: %w", err)
	}
	return exists, nil
}

func scanDocument(row pgxScanner) (*entity.Document, error) {
	var doc entity.Document
	var state string
	var observation *string
	err := row.Scan(
		&doc.ID, &doc.IssuerID, &doc.DocumentType, &doc.IssuerRUC, &doc.IssuerCheckDigit,
		&doc.Establishment, &doc.Point, &doc.Number, &doc.IssueDate, &doc.Currency,
		&doc.TotalAmount, &doc.TaxAmount, &doc.SecurityCode, &doc.ControlCode, &state,
		&observation, &doc.Payload, &doc.ProcessedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.State = entity.DocumentState(state)
	doc.Observation = derefStr(observation)
	return &doc, nil
}
