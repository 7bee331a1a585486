package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// RecruitmentRepository persists onboarding requests. UpdateStatus is
// the compare-and-swap used by the validation and dispatch
// transitions; Create maps UID collisions to ErrDuplicateKey so the
// allocator can retry.
type RecruitmentRepository interface {
	Create(ctx context.Context, rec *domain.Recruitment) error
	Update(ctx context.Context, rec *domain.Recruitment) error
	UpdateStatus(ctx context.Context, rec *domain.Recruitment, expected domain.RecruitmentStatus) error
	GetByID(ctx context.Context, id string) (*domain.Recruitment, error)
	CountByUIDPrefix(ctx context.Context, prefix string) (int, error)
	ListByStatuses(ctx context.Context, statuses []domain.RecruitmentStatus) ([]domain.Recruitment, error)
}

type recruitmentRepository struct {
	pool *pgxpool.Pool
}

// NewRecruitmentRepository instantiates repository.
func NewRecruitmentRepository(pool *pgxpool.Pool) RecruitmentRepository {
	return &recruitmentRepository{pool: pool}
}

const recruitmentColumns = `id, uid_public, author_id, status, agent_last_name, agent_first_name,
               position, agent_service, entry_date, contractual, work_time, recruitment_reason,
               work_location, security_comment, imago_active, imago_mobility, requested_equipment,
               it_access, cv_file_key, job_desc_file_key, photo_file_key, refusal_reason,
               child_ticket_ids, created_at, updated_at`

func (r *recruitmentRepository) Create(ctx context.Context, rec *domain.Recruitment) error {
	const query = `
        INSERT INTO recruitments (uid_public, author_id, status, agent_last_name, agent_first_name,
            position, agent_service, entry_date, contractual, work_time, recruitment_reason,
            work_location, security_comment, imago_active, imago_mobility, requested_equipment,
            it_access, cv_file_key, job_desc_file_key, photo_file_key, refusal_reason, child_ticket_ids)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		rec.UIDPublic, rec.AuthorID, rec.Status, rec.AgentLastName, rec.AgentFirstName,
		rec.Position, rec.AgentService, rec.EntryDate, rec.Contractual, rec.WorkTime,
		rec.RecruitmentReason, rec.WorkLocation, rec.SecurityComment, rec.ImagoActive,
		rec.ImagoMobility, rec.RequestedEquipment, rec.ITAccess, rec.CVFileKey,
		rec.JobDescFileKey, rec.PhotoFileKey, rec.RefusalReason, rec.ChildTicketIDs,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil && IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *recruitmentRepository) Update(ctx context.Context, rec *domain.Recruitment) error {
	const query = `
        UPDATE recruitments SET status=$1, refusal_reason=$2, child_ticket_ids=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, rec.Status, rec.RefusalReason, rec.ChildTicketIDs, rec.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *recruitmentRepository) UpdateStatus(ctx context.Context, rec *domain.Recruitment, expected domain.RecruitmentStatus) error {
	const query = `
        UPDATE recruitments SET status=$1, refusal_reason=$2, child_ticket_ids=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query, rec.Status, rec.RefusalReason, rec.ChildTicketIDs, rec.ID, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *recruitmentRepository) GetByID(ctx context.Context, id string) (*domain.Recruitment, error) {
	var rec domain.Recruitment
	if err := r.pool.QueryRow(ctx,
		`SELECT `+recruitmentColumns+` FROM recruitments WHERE id=$1`, id).Scan(
		&rec.ID, &rec.UIDPublic, &rec.AuthorID, &rec.Status, &rec.AgentLastName,
		&rec.AgentFirstName, &rec.Position, &rec.AgentService, &rec.EntryDate,
		&rec.Contractual, &rec.WorkTime, &rec.RecruitmentReason, &rec.WorkLocation,
		&rec.SecurityComment, &rec.ImagoActive, &rec.ImagoMobility, &rec.RequestedEquipment,
		&rec.ITAccess, &rec.CVFileKey, &rec.JobDescFileKey, &rec.PhotoFileKey,
		&rec.RefusalReason, &rec.ChildTicketIDs, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recruitmentRepository) CountByUIDPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recruitments WHERE uid_public LIKE $1`, prefix+"%").Scan(&count)
	return count, err
}

func (r *recruitmentRepository) ListByStatuses(ctx context.Context, statuses []domain.RecruitmentStatus) ([]domain.Recruitment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recruitmentColumns+` FROM recruitments WHERE status = ANY($1) ORDER BY created_at DESC`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Recruitment
	for rows.Next() {
		var rec domain.Recruitment
		if err := rows.Scan(
			&rec.ID, &rec.UIDPublic, &rec.AuthorID, &rec.Status, &rec.AgentLastName,
			&rec.AgentFirstName, &rec.Position, &rec.AgentService, &rec.EntryDate,
			&rec.Contractual, &rec.WorkTime, &rec.RecruitmentReason, &rec.WorkLocation,
			&rec.SecurityComment, &rec.ImagoActive, &rec.ImagoMobility, &rec.RequestedEquipment,
			&rec.ITAccess, &rec.CVFileKey, &rec.JobDescFileKey, &rec.PhotoFileKey,
			&rec.RefusalReason, &rec.ChildTicketIDs, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
