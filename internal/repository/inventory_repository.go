package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// MaterialRepository tracks inventory items. Serial numbers are
// unique; Create maps collisions to ErrDuplicateKey.
type MaterialRepository interface {
	Create(ctx context.Context, m *domain.Material) error
	Update(ctx context.Context, m *domain.Material) error
	UpdateStatus(ctx context.Context, id, status, expected string) error
	GetByID(ctx context.Context, id string) (*domain.Material, error)
	List(ctx context.Context) ([]domain.Material, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	Delete(ctx context.Context, id string) error
}

// LoanRepository tracks material checkouts.
type LoanRepository interface {
	Create(ctx context.Context, l *domain.Loan) error
	Update(ctx context.Context, l *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	List(ctx context.Context) ([]domain.Loan, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

type materialRepository struct {
	pool *pgxpool.Pool
}

// NewMaterialRepository instantiates repository.
func NewMaterialRepository(pool *pgxpool.Pool) MaterialRepository {
	return &materialRepository{pool: pool}
}

const materialColumns = `id, category, model, serial_number, hostname, imei, status, created_at, updated_at`

func (r *materialRepository) Create(ctx context.Context, m *domain.Material) error {
	const query = `
        INSERT INTO materials (category, model, serial_number, hostname, imei, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		m.Category, m.Model, m.SerialNumber, m.Hostname, m.IMEI, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil && IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *materialRepository) Update(ctx context.Context, m *domain.Material) error {
	const query = `
        UPDATE materials SET category=$1, model=$2, serial_number=$3, hostname=$4, imei=$5, status=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query, m.Category, m.Model, m.SerialNumber, m.Hostname, m.IMEI, m.Status, m.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus flips availability only when the stored status matches
// expected, so two technicians cannot loan the same item.
func (r *materialRepository) UpdateStatus(ctx context.Context, id, status, expected string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE materials SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`, status, id, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *materialRepository) GetByID(ctx context.Context, id string) (*domain.Material, error) {
	var m domain.Material
	if err := r.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id=$1`, id).Scan(
		&m.ID, &m.Category, &m.Model, &m.SerialNumber, &m.Hostname, &m.IMEI, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *materialRepository) List(ctx context.Context) ([]domain.Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM materials ORDER BY category, model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Material
	for rows.Next() {
		var m domain.Material
		if err := rows.Scan(&m.ID, &m.Category, &m.Model, &m.SerialNumber, &m.Hostname, &m.IMEI, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *materialRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM materials WHERE status=$1`, status).Scan(&count)
	return count, err
}

func (r *materialRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type loanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository instantiates repository.
func NewLoanRepository(pool *pgxpool.Pool) LoanRepository {
	return &loanRepository{pool: pool}
}

const loanColumns = `id, material_id, technician_id, borrower_name, borrower_service, loan_type,
               accessories, checked_out_at, due_at, returned_at, status`

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	const query = `
        INSERT INTO loans (material_id, technician_id, borrower_name, borrower_service, loan_type, accessories, due_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, checked_out_at`
	return r.pool.QueryRow(ctx, query,
		l.MaterialID, l.TechnicianID, l.BorrowerName, l.BorrowerService,
		l.LoanType, l.Accessories, l.DueAt, l.Status,
	).Scan(&l.ID, &l.CheckedOutAt)
}

func (r *loanRepository) Update(ctx context.Context, l *domain.Loan) error {
	const query = `
        UPDATE loans SET returned_at=$1, status=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, l.ReturnedAt, l.Status, l.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	var l domain.Loan
	if err := r.pool.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id=$1`, id).Scan(
		&l.ID, &l.MaterialID, &l.TechnicianID, &l.BorrowerName, &l.BorrowerService,
		&l.LoanType, &l.Accessories, &l.CheckedOutAt, &l.DueAt, &l.ReturnedAt, &l.Status,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loanRepository) List(ctx context.Context) ([]domain.Loan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+loanColumns+` FROM loans ORDER BY status ASC, checked_out_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Loan
	for rows.Next() {
		var l domain.Loan
		if err := rows.Scan(
			&l.ID, &l.MaterialID, &l.TechnicianID, &l.BorrowerName, &l.BorrowerService,
			&l.LoanType, &l.Accessories, &l.CheckedOutAt, &l.DueAt, &l.ReturnedAt, &l.Status,
		); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *loanRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE status=$1`, status).Scan(&count)
	return count, err
}
