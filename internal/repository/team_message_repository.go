package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// TeamMessageRepository backs the per-service chat sidebar.
type TeamMessageRepository interface {
	Create(ctx context.Context, msg *domain.TeamMessage) error
	ListByService(ctx context.Context, service string, limit int) ([]domain.TeamMessage, error)
}

type teamMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTeamMessageRepository builds repository.
func NewTeamMessageRepository(pool *pgxpool.Pool) TeamMessageRepository {
	return &teamMessageRepository{pool: pool}
}

func (r *teamMessageRepository) Create(ctx context.Context, msg *domain.TeamMessage) error {
	const query = `
        INSERT INTO team_messages (service, author_id, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, msg.Service, msg.AuthorID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt)
}

func (r *teamMessageRepository) ListByService(ctx context.Context, service string, limit int) ([]domain.TeamMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, service, author_id, content, created_at
        FROM team_messages WHERE service=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, service, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMessage
	for rows.Next() {
		var msg domain.TeamMessage
		if err := rows.Scan(&msg.ID, &msg.Service, &msg.AuthorID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
