package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/repository"
)

// In-memory repositories honoring the same uniqueness and
// compare-and-swap semantics as the Postgres implementations.

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*domain.Ticket
	byUID   map[string]*domain.Ticket
	failUID map[string]int // uid -> remaining forced duplicate errors
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		byID:    make(map[string]*domain.Ticket),
		byUID:   make(map[string]*domain.Ticket),
		failUID: make(map[string]int),
	}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.failUID[ticket.UIDPublic]; n > 0 {
		r.failUID[ticket.UIDPublic] = n - 1
		return repository.ErrDuplicateKey
	}
	if _, exists := r.byUID[ticket.UIDPublic]; exists {
		return repository.ErrDuplicateKey
	}
	r.seq++
	ticket.ID = fmt.Sprintf("t-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.byID[ticket.ID] = &clone
	r.byUID[ticket.UIDPublic] = &clone
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	clone := *ticket
	clone.UpdatedAt = time.Now()
	*stored = clone
	return nil
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[ticket.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStateConflict
	}
	clone := *ticket
	clone.UpdatedAt = time.Now()
	*stored = clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeTicketRepo) GetByUID(_ context.Context, uid string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byUID[uid]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeTicketRepo) CountByUIDPrefix(_ context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for uid := range r.byUID {
		if strings.HasPrefix(uid, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.byID {
		if filter.AuthorID != nil && stored.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.SolverID != nil && (stored.SolverID == nil || *stored.SolverID != *filter.SolverID) {
			continue
		}
		if filter.UnassignedOnly && stored.SolverID != nil {
			continue
		}
		if len(filter.TargetServices) > 0 && !containsString(filter.TargetServices, stored.TargetService) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *fakeTicketRepo) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, stored := range r.byID {
		if stored.AuthorID == userID || (stored.SolverID != nil && *stored.SolverID == userID) {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[domain.TicketStatus]int)
	for _, stored := range r.byID {
		result[stored.Status]++
	}
	return result, nil
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(set []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	seq      int
	messages []domain.TicketMessage
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = fmt.Sprintf("m-%d", r.seq)
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketMessage
	for _, m := range r.messages {
		if m.TicketID == ticketID {
			result = append(result, m)
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Upsert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = "u-" + user.Username
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, u := range r.users {
		result = append(result, *u)
	}
	return result, nil
}

func (r *fakeUserRepo) ListByRoles(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, u := range r.users {
		for _, role := range roles {
			if u.Role == role {
				result = append(result, *u)
				break
			}
		}
	}
	return result, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

type fakeRecruitmentRepo struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Recruitment
}

func newFakeRecruitmentRepo() *fakeRecruitmentRepo {
	return &fakeRecruitmentRepo{byID: make(map[string]*domain.Recruitment)}
}

func (r *fakeRecruitmentRepo) Create(_ context.Context, rec *domain.Recruitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.UIDPublic == rec.UIDPublic {
			return repository.ErrDuplicateKey
		}
	}
	r.seq++
	rec.ID = fmt.Sprintf("r-%d", r.seq)
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	clone := *rec
	r.byID[rec.ID] = &clone
	return nil
}

func (r *fakeRecruitmentRepo) Update(_ context.Context, rec *domain.Recruitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[rec.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	clone := *rec
	*stored = clone
	return nil
}

func (r *fakeRecruitmentRepo) UpdateStatus(_ context.Context, rec *domain.Recruitment, expected domain.RecruitmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[rec.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStateConflict
	}
	clone := *rec
	*stored = clone
	return nil
}

func (r *fakeRecruitmentRepo) GetByID(_ context.Context, id string) (*domain.Recruitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeRecruitmentRepo) CountByUIDPrefix(_ context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.byID {
		if strings.HasPrefix(rec.UIDPublic, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRecruitmentRepo) ListByStatuses(_ context.Context, statuses []domain.RecruitmentStatus) ([]domain.Recruitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Recruitment
	for _, rec := range r.byID {
		for _, status := range statuses {
			if rec.Status == status {
				result = append(result, *rec)
				break
			}
		}
	}
	return result, nil
}

type fakeMaterialRepo struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Material
}

func newFakeMaterialRepo() *fakeMaterialRepo {
	return &fakeMaterialRepo{byID: make(map[string]*domain.Material)}
}

func (r *fakeMaterialRepo) Create(_ context.Context, m *domain.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.SerialNumber == m.SerialNumber {
			return repository.ErrDuplicateKey
		}
	}
	r.seq++
	m.ID = fmt.Sprintf("mat-%d", r.seq)
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	clone := *m
	r.byID[m.ID] = &clone
	return nil
}

func (r *fakeMaterialRepo) Update(_ context.Context, m *domain.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[m.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	clone := *m
	*stored = clone
	return nil
}

func (r *fakeMaterialRepo) UpdateStatus(_ context.Context, id, status, expected string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok || stored.Status != expected {
		return repository.ErrStateConflict
	}
	stored.Status = status
	return nil
}

func (r *fakeMaterialRepo) GetByID(_ context.Context, id string) (*domain.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeMaterialRepo) List(_ context.Context) ([]domain.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Material
	for _, m := range r.byID {
		result = append(result, *m)
	}
	return result, nil
}

func (r *fakeMaterialRepo) CountByStatus(_ context.Context, status string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.byID {
		if m.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeMaterialRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.byID, id)
	return nil
}

type fakeLoanRepo struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*domain.Loan
	failing bool
}

func newFakeLoanRepo() *fakeLoanRepo {
	return &fakeLoanRepo{byID: make(map[string]*domain.Loan)}
}

func (r *fakeLoanRepo) Create(_ context.Context, l *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return fmt.Errorf("loan insert failed")
	}
	r.seq++
	l.ID = fmt.Sprintf("loan-%d", r.seq)
	l.CheckedOutAt = time.Now()
	clone := *l
	r.byID[l.ID] = &clone
	return nil
}

func (r *fakeLoanRepo) Update(_ context.Context, l *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[l.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	clone := *l
	*stored = clone
	return nil
}

func (r *fakeLoanRepo) GetByID(_ context.Context, id string) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeLoanRepo) List(_ context.Context) ([]domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Loan
	for _, l := range r.byID {
		result = append(result, *l)
	}
	return result, nil
}

func (r *fakeLoanRepo) CountByStatus(_ context.Context, status string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, l := range r.byID {
		if l.Status == status {
			count++
		}
	}
	return count, nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	seq   int
	items []domain.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	n.ID = fmt.Sprintf("n-%d", r.seq)
	n.CreatedAt = time.Now()
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotificationRepo) ListUnread(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.items {
		if n.RecipientID == recipientID && !n.IsRead {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, recipientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, recipientID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == notificationID && r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
		}
	}
	return nil
}

type fakeTeamMessageRepo struct {
	mu   sync.Mutex
	seq  int
	msgs []domain.TeamMessage
}

func (r *fakeTeamMessageRepo) Create(_ context.Context, msg *domain.TeamMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = fmt.Sprintf("tm-%d", r.seq)
	msg.CreatedAt = time.Now()
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeTeamMessageRepo) ListByService(_ context.Context, service string, limit int) ([]domain.TeamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TeamMessage
	for _, m := range r.msgs {
		if m.Service == service {
			out = append(out, m)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// recordingSink captures notifications synchronously for assertions.
type recordingSink struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (s *recordingSink) Enqueue(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *recordingSink) Close() {}

func (s *recordingSink) forRecipient(id string) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.sent {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}
