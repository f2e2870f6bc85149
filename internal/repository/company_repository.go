package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRepository persists customer tenants.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	GetByEmail(ctx context.Context, email string) (*domain.Company, error)
}

const companyColumns = `id, name, document, email, phone, password_hash, active, created_at, updated_at`

type companyRepository struct {
	db DBTX
}

// NewCompanyRepository returns a Postgres-backed implementation.
func NewCompanyRepository(db DBTX) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, document, email, phone, password_hash, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		company.Name,
		company.Document,
		company.Email,
		company.Phone,
		company.PasswordHash,
		company.Active,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	return duplicateOr(err)
}

func (r *companyRepository) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=$1`, id)
}

func (r *companyRepository) GetByEmail(ctx context.Context, email string) (*domain.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *companyRepository) getOne(ctx context.Context, query string, arg any) (*domain.Company, error) {
	var company domain.Company
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&company.ID,
		&company.Name,
		&company.Document,
		&company.Email,
		&company.Phone,
		&company.PasswordHash,
		&company.Active,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, notFoundOr(err)
	}
	return &company, nil
}
