package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// TicketFilter captures listing parameters for dashboards.
type TicketFilter struct {
	AuthorID       *string
	SolverID       *string
	TargetServices []string
	Statuses       []domain.TicketStatus
	Categories     []string
	UnassignedOnly bool
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
//
// Create returns ErrDuplicateKey on a public-UID collision; the
// workflow engine treats that as the normal concurrency-control path
// and retries with a fresh sequence number. UpdateStatus is the
// compare-and-swap used by every transition.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByUID(ctx context.Context, uid string) (*domain.Ticket, error)
	CountByUIDPrefix(ctx context.Context, prefix string) (int, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, uid_public, title, description, author_id, target_service, category,
               status, solver_id, service_demandeur, fields, files, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (uid_public, title, description, author_id, target_service, category, status, solver_id, service_demandeur, fields, files)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.UIDPublic,
		ticket.Title,
		ticket.Description,
		ticket.AuthorID,
		ticket.TargetService,
		ticket.Category,
		ticket.Status,
		ticket.SolverID,
		ticket.ServiceDemandeur,
		ticket.Fields,
		ticket.Files,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil && IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, target_service=$3, category=$4, status=$5,
            solver_id=$6, service_demandeur=$7, fields=$8, files=$9, closed_at=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.TargetService,
		ticket.Category,
		ticket.Status,
		ticket.SolverID,
		ticket.ServiceDemandeur,
		ticket.Fields,
		ticket.Files,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus persists the ticket only if its stored status still
// equals expected; zero rows affected means another actor already
// transitioned it.
func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, solver_id=$2, target_service=$3, fields=$4, files=$5, closed_at=$6, updated_at=NOW()
        WHERE id=$7 AND status=$8`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.SolverID,
		ticket.TargetService,
		ticket.Fields,
		ticket.Files,
		ticket.ClosedAt,
		ticket.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByUID(ctx context.Context, uid string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE uid_public=$1`, uid)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.UIDPublic,
		&ticket.Title,
		&ticket.Description,
		&ticket.AuthorID,
		&ticket.TargetService,
		&ticket.Category,
		&ticket.Status,
		&ticket.SolverID,
		&ticket.ServiceDemandeur,
		&ticket.Fields,
		&ticket.Files,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) CountByUIDPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE uid_public LIKE $1`, prefix+"%").Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE author_id=$1 OR solver_id=$1`, userID).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("author_id=$%d", len(args)))
	}
	if filter.SolverID != nil {
		args = append(args, *filter.SolverID)
		clauses = append(clauses, fmt.Sprintf("solver_id=$%d", len(args)))
	}
	if filter.UnassignedOnly {
		clauses = append(clauses, "solver_id IS NULL")
	}
	if len(filter.TargetServices) > 0 {
		args = append(args, filter.TargetServices)
		clauses = append(clauses, fmt.Sprintf("target_service = ANY($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Categories) > 0 {
		args = append(args, filter.Categories)
		clauses = append(clauses, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UIDPublic,
			&ticket.Title,
			&ticket.Description,
			&ticket.AuthorID,
			&ticket.TargetService,
			&ticket.Category,
			&ticket.Status,
			&ticket.SolverID,
			&ticket.ServiceDemandeur,
			&ticket.Fields,
			&ticket.Files,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
