package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/permission"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/pkg/util"
)

// TicketService owns the ticket lifecycle: submission with initial
// status resolution and UID allocation, the validation chain, the
// Finance DAF sub-chain, pool operations and the notification fan-out
// accompanying each committed transition.
type TicketService struct {
	tickets   repository.TicketRepository
	messages  repository.TicketMessageRepository
	users     repository.UserRepository
	materials repository.MaterialRepository
	loans     repository.LoanRepository
	notifier  notify.Sink
	services  []string
	logger    *zap.Logger
	now       func() time.Time
}

// TicketDependencies bundles collaborators for TicketService.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	UserRepo     repository.UserRepository
	MaterialRepo repository.MaterialRepository
	LoanRepo     repository.LoanRepository
	Notifier     notify.Sink
	Services     []string
	Logger       *zap.Logger
	Clock        func() time.Time
}

// TicketCreateInput describes a submission payload. Files carries
// stored file keys; upload happens before submission.
type TicketCreateInput struct {
	Title         string
	Description   string
	TargetService string
	Category      string
	OriginService string
	Fields        map[string]any
	Files         []string
}

// DashboardStats aggregates workload counters for the landing page.
type DashboardStats struct {
	TicketsByStatus    map[domain.TicketStatus]int
	MaterialsAvailable int
	MaterialsLoaned    int
	OpenLoans          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		messages:  deps.MessageRepo,
		users:     deps.UserRepo,
		materials: deps.MaterialRepo,
		loans:     deps.LoanRepo,
		notifier:  notifier,
		services:  permission.NormalizeSet(deps.Services),
		logger:    logger,
		now:       clock,
	}
}

// SubmitTicket creates a ticket, resolving its entry point in the
// validation chain and allocating a day-scoped public UID.
func (s *TicketService) SubmitTicket(ctx context.Context, author *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", nil)
	}

	targetService := permission.Normalize(input.TargetService)
	if !s.isKnownService(targetService) {
		return nil, util.NewValidationError("unknown target service", map[string]any{"target_service": input.TargetService})
	}

	category := permission.Normalize(input.Category)
	if category == "" {
		category = domain.CategoryStandard
	}

	actor := permission.ActorFor(author)
	origin, err := resolveOrigin(actor, input.OriginService)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		AuthorID:         author.ID,
		TargetService:    targetService,
		Category:         category,
		Status:           resolveInitialStatus(actor, targetService, category),
		ServiceDemandeur: origin,
		Fields:           input.Fields,
		Files:            input.Files,
	}

	prefix := uidDayPrefix("", s.now())
	count, err := s.tickets.CountByUIDPrefix(ctx, prefix)
	if err != nil {
		return nil, util.MapError(err)
	}
	if _, err := allocateUID(prefix, count, func(uid string) error {
		ticket.UIDPublic = uid
		return s.tickets.Create(ctx, ticket)
	}); err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Info("ticket submitted",
		zap.String("uid", ticket.UIDPublic),
		zap.String("target_service", ticket.TargetService),
		zap.String("status", string(ticket.Status)))

	s.fanOut(ctx, ticket, audienceForStatus(ticket.Status),
		fmt.Sprintf("Ticket %s (%s) awaits your action", ticket.UIDPublic, ticket.Title),
		domain.NotifyInfo)
	return ticket, nil
}

// resolveOrigin picks the service_demandeur routing N1 approval. A
// single-origin author gets it implicitly; multi-origin authors must
// choose, any-match rules forbid guessing for them.
func resolveOrigin(actor permission.Actor, requested string) (string, error) {
	origin := permission.Normalize(requested)
	if origin == "" {
		if len(actor.OriginServices) == 1 {
			return actor.OriginServices[0], nil
		}
		if len(actor.OriginServices) == 0 {
			return "", nil
		}
		return "", util.NewValidationError("origin service is required", nil)
	}
	if actor.IsAdmin() || actor.HasOrigin(origin) {
		return origin, nil
	}
	return "", util.NewValidationError("origin service not held by author", map[string]any{"origin_service": origin})
}

// GetTicket returns a ticket with its message thread, gated by the
// visibility predicate.
func (s *TicketService) GetTicket(ctx context.Context, viewer *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	if !permission.ActorFor(viewer).CanView(ticket) {
		return nil, nil, util.NewForbidden("not allowed to view this ticket")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	return ticket, msgs, nil
}

// ListMine returns tickets the user authored.
func (s *TicketService) ListMine(ctx context.Context, user *domain.User, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		AuthorID: &user.ID,
		Limit:    limit,
		Offset:   offset,
	})
}

// ListAssigned returns tickets assigned to the user as solver.
func (s *TicketService) ListAssigned(ctx context.Context, user *domain.User, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		SolverID: &user.ID,
		Statuses: []domain.TicketStatus{domain.StatusInProgress, domain.StatusWaitingUser, domain.StatusValidationFinance, domain.StatusFinanceSignature},
		Limit:    limit,
		Offset:   offset,
	})
}

// ListPool returns unassigned approved tickets matching the viewer's
// competencies. Admins see the whole pool.
func (s *TicketService) ListPool(ctx context.Context, viewer *domain.User, limit, offset int) ([]domain.Ticket, error) {
	actor := permission.ActorFor(viewer)
	filter := repository.TicketFilter{
		Statuses:       []domain.TicketStatus{domain.StatusPending},
		UnassignedOnly: true,
		Limit:          limit,
		Offset:         offset,
	}
	if !actor.IsAdmin() {
		if len(actor.AllowedServices) == 0 {
			return []domain.Ticket{}, nil
		}
		filter.TargetServices = actor.AllowedServices
	}
	return s.tickets.ListWithFilter(ctx, filter)
}

// ListAwaitingValidation returns tickets the viewer can currently
// validate at any stage of the chain.
func (s *TicketService) ListAwaitingValidation(ctx context.Context, viewer *domain.User, limit, offset int) ([]domain.Ticket, error) {
	actor := permission.ActorFor(viewer)
	candidates, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{
			domain.StatusValidationN1,
			domain.StatusValidationN2,
			domain.StatusValidationFinance,
			domain.StatusFinanceSignature,
		},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, util.MapError(err)
	}
	result := make([]domain.Ticket, 0, len(candidates))
	for i := range candidates {
		if canActAtStage(actor, &candidates[i]) {
			result = append(result, candidates[i])
		}
	}
	return result, nil
}

// ManagerAction validates or refuses a ticket awaiting approval.
// Refusals outside the DAF review stages are terminal and require a
// reason, recorded on the thread and relayed to the author.
func (s *TicketService) ManagerAction(ctx context.Context, actorUser *domain.User, ticketID string, action ManagerAction, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewConflict("ticket already settled", map[string]any{"status": ticket.Status})
	}

	actor := permission.ActorFor(actorUser)
	if !canActAtStage(actor, ticket) {
		return nil, util.NewForbidden("not allowed to act on this ticket at its current stage")
	}

	reason = strings.TrimSpace(reason)
	if action == ActionRefuse && reason == "" {
		return nil, util.NewValidationError("a refusal reason is required", nil)
	}

	outcome, ok := resolveTransition(ticket.Status, ticket.TargetService, ticket.Category, action)
	if !ok {
		return nil, util.NewConflict("action not applicable in current state", map[string]any{
			"status": ticket.Status,
			"action": action,
		})
	}

	expected := ticket.Status
	ticket.Status = outcome.next
	if outcome.next == domain.StatusRefused {
		now := s.now()
		ticket.ClosedAt = &now
	}
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	if action == ActionRefuse {
		s.appendSystemMessage(ctx, ticket, "Refused: "+reason)
	} else {
		s.appendSystemMessage(ctx, ticket, fmt.Sprintf("Validated (%s -> %s)", expected, ticket.Status))
	}

	message := fmt.Sprintf("Ticket %s moved to %s", ticket.UIDPublic, ticket.Status)
	category := domain.NotifyInfo
	if action == ActionRefuse {
		message = fmt.Sprintf("Ticket %s was refused: %s", ticket.UIDPublic, reason)
		category = domain.NotifyDanger
	}
	s.fanOut(ctx, ticket, outcome.notify, message, category)
	return ticket, nil
}

// canActAtStage applies the stage-appropriate capability check: N1 is
// routed by origin membership, everything later by target-service
// competency (with the Finance stages further narrowed by role).
func canActAtStage(actor permission.Actor, ticket *domain.Ticket) bool {
	switch ticket.Status {
	case domain.StatusValidationN1:
		return actor.CanValidateN1(ticket.ServiceDemandeur)
	case domain.StatusValidationN2:
		return actor.CanValidateN2(ticket.TargetService)
	case domain.StatusValidationFinance:
		return actor.CanReviewFinance()
	case domain.StatusFinanceSignature:
		return actor.CanSignFinance()
	}
	return false
}

// SolverSubmitPreparedDocument attaches the prepared purchase document
// and hands a Finance ticket to the DAF manager review stage.
func (s *TicketService) SolverSubmitPreparedDocument(ctx context.Context, solver *domain.User, ticketID, fileKey string) (*domain.Ticket, error) {
	if strings.TrimSpace(fileKey) == "" {
		return nil, util.NewValidationError("a prepared document is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if classifyService(ticket.TargetService) != svcFinance {
		return nil, util.NewValidationError("document preparation applies to finance tickets only", nil)
	}
	if ticket.Status != domain.StatusPending && ticket.Status != domain.StatusInProgress {
		return nil, util.NewConflict("ticket not awaiting document preparation", map[string]any{"status": ticket.Status})
	}
	actor := permission.ActorFor(solver)
	if !actor.CanSolve(ticket.TargetService) {
		return nil, util.NewForbidden("finance competency required")
	}

	expected := ticket.Status
	if ticket.SolverID == nil {
		ticket.SolverID = &solver.ID
	}
	ticket.Status = domain.StatusValidationFinance
	ticket.Files = append(ticket.Files, fileKey)
	if ticket.Fields == nil {
		ticket.Fields = map[string]any{}
	}
	ticket.Fields["prepared_document"] = fileKey
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.appendSystemMessage(ctx, ticket, "Prepared purchase document submitted for DAF review")
	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s: purchase document prepared, awaiting DAF review", ticket.UIDPublic), domain.NotifyInfo, ticketLink(ticket))
	s.fanOut(ctx, ticket, audienceFinanceManagers,
		fmt.Sprintf("Ticket %s awaits DAF manager review", ticket.UIDPublic), domain.NotifyInfo)
	return ticket, nil
}

// ManagerValidateFinance moves a reviewed purchase order to the
// director signature stage.
func (s *TicketService) ManagerValidateFinance(ctx context.Context, actorUser *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusValidationFinance {
		return nil, util.NewConflict("ticket not under DAF manager review", map[string]any{"status": ticket.Status})
	}
	if !permission.ActorFor(actorUser).CanReviewFinance() {
		return nil, util.NewForbidden("DAF manager review requires finance competency")
	}

	expected := ticket.Status
	ticket.Status = domain.StatusFinanceSignature
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.appendSystemMessage(ctx, ticket, "DAF manager review passed, awaiting signature")
	s.fanOut(ctx, ticket, audienceFinanceDirectors,
		fmt.Sprintf("Ticket %s awaits DAF signature", ticket.UIDPublic), domain.NotifyInfo)
	return ticket, nil
}

// DirectorSign closes a purchase order with the signed document.
func (s *TicketService) DirectorSign(ctx context.Context, actorUser *domain.User, ticketID, signedFileKey string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusFinanceSignature {
		return nil, util.NewConflict("ticket not awaiting signature", map[string]any{"status": ticket.Status})
	}
	if !permission.ActorFor(actorUser).CanSignFinance() {
		return nil, util.NewForbidden("DAF signature requires a finance director")
	}

	expected := ticket.Status
	now := s.now()
	ticket.Status = domain.StatusDone
	ticket.ClosedAt = &now
	if signedFileKey != "" {
		ticket.Files = append(ticket.Files, signedFileKey)
		if ticket.Fields == nil {
			ticket.Fields = map[string]any{}
		}
		ticket.Fields["signed_document"] = signedFileKey
	}
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.appendSystemMessage(ctx, ticket, "Signed by DAF director, ticket closed")
	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s signed and closed", ticket.UIDPublic), domain.NotifySuccess, ticketLink(ticket))
	if ticket.SolverID != nil {
		s.notifyUser(*ticket.SolverID, fmt.Sprintf("Ticket %s signed and closed", ticket.UIDPublic), domain.NotifySuccess, ticketLink(ticket))
	}
	return ticket, nil
}

// Take assigns the ticket to the calling solver. Self-assignment is
// forbidden: a requester may not resolve their own request.
func (s *TicketService) Take(ctx context.Context, actorUser *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusPending {
		return nil, util.NewConflict("ticket is not in the pool", map[string]any{"status": ticket.Status})
	}
	if !permission.ActorFor(actorUser).CanTake(ticket) {
		return nil, util.NewForbidden("cannot take this ticket")
	}

	expected := ticket.Status
	ticket.SolverID = &actorUser.ID
	ticket.Status = domain.StatusInProgress
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s picked up by %s", ticket.UIDPublic, actorUser.FullName), domain.NotifyInfo, ticketLink(ticket))
	return ticket, nil
}

// Assign routes a ticket to a named solver. The competency check
// applies to the target solver, not the assigner.
func (s *TicketService) Assign(ctx context.Context, actorUser *domain.User, ticketID, solverID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusPending && ticket.Status != domain.StatusInProgress {
		return nil, util.NewConflict("ticket cannot be assigned in its current state", map[string]any{"status": ticket.Status})
	}
	if !permission.ActorFor(actorUser).CanAssign() {
		return nil, util.NewForbidden("assignment requires a management role")
	}

	solver, err := s.users.GetByID(ctx, solverID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !permission.ActorFor(solver).CanSolve(ticket.TargetService) {
		return nil, util.NewValidationError("target solver lacks the required competency", map[string]any{"solver": solver.Username})
	}
	if solver.ID == ticket.AuthorID {
		return nil, util.NewValidationError("author cannot be assigned as solver", nil)
	}

	expected := ticket.Status
	ticket.SolverID = &solver.ID
	ticket.Status = domain.StatusInProgress
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.notifyUser(solver.ID, fmt.Sprintf("Ticket %s assigned to you", ticket.UIDPublic), domain.NotifyInfo, ticketLink(ticket))
	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s assigned to %s", ticket.UIDPublic, solver.FullName), domain.NotifyInfo, ticketLink(ticket))
	return ticket, nil
}

// Close marks a ticket done. Only the current solver or an admin may
// close.
func (s *TicketService) Close(ctx context.Context, actorUser *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusInProgress && ticket.Status != domain.StatusWaitingUser {
		return nil, util.NewConflict("ticket cannot be closed in its current state", map[string]any{"status": ticket.Status})
	}
	if !permission.ActorFor(actorUser).CanClose(ticket) {
		return nil, util.NewForbidden("only the assigned solver or an admin may close")
	}

	expected := ticket.Status
	now := s.now()
	ticket.Status = domain.StatusDone
	ticket.ClosedAt = &now
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s resolved", ticket.UIDPublic), domain.NotifySuccess, ticketLink(ticket))
	return ticket, nil
}

// Transfer reroutes a misfiled ticket into another service's pool.
// The solver is cleared and the ticket returns to PENDING for the new
// team to pick up.
func (s *TicketService) Transfer(ctx context.Context, actorUser *domain.User, ticketID, newService string) (*domain.Ticket, error) {
	target := permission.Normalize(newService)
	if !s.isKnownService(target) {
		return nil, util.NewValidationError("unknown target service", map[string]any{"target_service": newService})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusPending && ticket.Status != domain.StatusInProgress {
		return nil, util.NewConflict("ticket cannot be transferred in its current state", map[string]any{"status": ticket.Status})
	}
	if target == ticket.TargetService {
		return nil, util.NewValidationError("ticket already targets this service", nil)
	}
	actor := permission.ActorFor(actorUser)
	isAssigned := ticket.SolverID != nil && *ticket.SolverID == actorUser.ID
	if !actor.IsAdmin() && !isAssigned && !actor.CanSolve(ticket.TargetService) {
		return nil, util.NewForbidden("only staff of the current service may transfer")
	}

	expected := ticket.Status
	previous := ticket.TargetService
	ticket.TargetService = target
	ticket.SolverID = nil
	ticket.Status = domain.StatusPending
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.appendSystemMessage(ctx, ticket, fmt.Sprintf("Transferred from %s to %s", previous, target))
	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s rerouted to %s", ticket.UIDPublic, target), domain.NotifyInfo, ticketLink(ticket))
	s.fanOut(ctx, ticket, audiencePool,
		fmt.Sprintf("Ticket %s transferred into your pool", ticket.UIDPublic), domain.NotifyInfo)
	return ticket, nil
}

// RequestUserInput parks an in-progress ticket on the author pending
// clarification.
func (s *TicketService) RequestUserInput(ctx context.Context, actorUser *domain.User, ticketID, question string) (*domain.Ticket, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, util.NewValidationError("a question is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status != domain.StatusInProgress {
		return nil, util.NewConflict("ticket is not in progress", map[string]any{"status": ticket.Status})
	}
	actor := permission.ActorFor(actorUser)
	if !actor.IsAdmin() && (ticket.SolverID == nil || *ticket.SolverID != actorUser.ID) {
		return nil, util.NewForbidden("only the assigned solver may request input")
	}

	expected := ticket.Status
	ticket.Status = domain.StatusWaitingUser
	if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil {
		return nil, s.mapTransitionError(err)
	}

	s.addThreadMessage(ctx, ticket, &actorUser.ID, domain.MessageKindUser, question)
	s.notifyUser(ticket.AuthorID, fmt.Sprintf("Ticket %s needs your input", ticket.UIDPublic), domain.NotifyWarning, ticketLink(ticket))
	return ticket, nil
}

// AddMessage appends to the ticket thread. An author reply while the
// ticket waits on them resumes it.
func (s *TicketService) AddMessage(ctx context.Context, actorUser *domain.User, ticketID, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, util.NewValidationError("message body is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !permission.ActorFor(actorUser).CanView(ticket) {
		return nil, util.NewForbidden("not allowed to view this ticket")
	}

	msg := &domain.TicketMessage{
		TicketID: ticket.ID,
		AuthorID: &actorUser.ID,
		Kind:     domain.MessageKindUser,
		Body:     body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}

	if ticket.Status == domain.StatusWaitingUser && actorUser.ID == ticket.AuthorID {
		expected := ticket.Status
		ticket.Status = domain.StatusInProgress
		if err := s.tickets.UpdateStatus(ctx, ticket, expected); err != nil && !errors.Is(err, repository.ErrStateConflict) {
			return nil, util.MapError(err)
		}
	}

	if actorUser.ID == ticket.AuthorID {
		if ticket.SolverID != nil {
			s.notifyUser(*ticket.SolverID, fmt.Sprintf("New message on ticket %s", ticket.UIDPublic), domain.NotifyInfo, ticketLink(ticket))
		}
	} else {
		s.notifyUser(ticket.AuthorID, fmt.Sprintf("New message on ticket %s", ticket.UIDPublic), domain.NotifyInfo, ticketLink(ticket))
	}
	return msg, nil
}

// CreateOrUpdateChild is the idempotent primitive behind onboarding
// dispatch: matched by the deterministic public UID, an existing child
// is refreshed in place, a missing one is created. Returns whether a
// new ticket was created.
func (s *TicketService) CreateOrUpdateChild(ctx context.Context, child *domain.Ticket) (*domain.Ticket, bool, error) {
	existing, err := s.tickets.GetByUID(ctx, child.UIDPublic)
	switch {
	case err == nil:
		existing.Title = child.Title
		existing.Description = child.Description
		existing.Fields = child.Fields
		existing.Files = child.Files
		if err := s.tickets.Update(ctx, existing); err != nil {
			return nil, false, util.MapError(err)
		}
		return existing, false, nil
	case errors.Is(err, pgx.ErrNoRows):
		if err := s.tickets.Create(ctx, child); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				// Raced with a concurrent dispatch; the other writer won.
				winner, gerr := s.tickets.GetByUID(ctx, child.UIDPublic)
				if gerr != nil {
					return nil, false, util.MapError(gerr)
				}
				return winner, false, nil
			}
			return nil, false, util.MapError(err)
		}
		s.fanOut(ctx, child, audiencePool,
			fmt.Sprintf("Ticket %s (%s) awaits your action", child.UIDPublic, child.Title),
			domain.NotifyInfo)
		return child, true, nil
	default:
		return nil, false, util.MapError(err)
	}
}

// Stats aggregates dashboard counters, folding in inventory
// availability when the registry is wired.
func (s *TicketService) Stats(ctx context.Context) (*DashboardStats, error) {
	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	stats := &DashboardStats{TicketsByStatus: byStatus}
	if s.materials != nil {
		if stats.MaterialsAvailable, err = s.materials.CountByStatus(ctx, domain.MaterialAvailable); err != nil {
			return nil, util.MapError(err)
		}
		if stats.MaterialsLoaned, err = s.materials.CountByStatus(ctx, domain.MaterialLoaned); err != nil {
			return nil, util.MapError(err)
		}
	}
	if s.loans != nil {
		if stats.OpenLoans, err = s.loans.CountByStatus(ctx, domain.LoanOpen); err != nil {
			return nil, util.MapError(err)
		}
	}
	return stats, nil
}

func (s *TicketService) isKnownService(tag string) bool {
	if len(s.services) == 0 {
		return tag != ""
	}
	return permission.Contains(s.services, tag)
}

func (s *TicketService) mapTransitionError(err error) error {
	if errors.Is(err, repository.ErrStateConflict) {
		return util.NewConflict("ticket was modified concurrently, re-fetch and retry", nil)
	}
	return util.MapError(err)
}

// appendSystemMessage records an automated audit entry on the thread.
// Failures are logged, not surfaced: the transition already committed.
func (s *TicketService) appendSystemMessage(ctx context.Context, ticket *domain.Ticket, body string) {
	s.addThreadMessage(ctx, ticket, nil, domain.MessageKindSystem, body)
}

func (s *TicketService) addThreadMessage(ctx context.Context, ticket *domain.Ticket, authorID *string, kind domain.MessageKind, body string) {
	msg := &domain.TicketMessage{
		TicketID: ticket.ID,
		AuthorID: authorID,
		Kind:     kind,
		Body:     body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("thread message write failed",
			zap.String("ticket", ticket.UIDPublic), zap.Error(err))
	}
}

// fanOut resolves the audience into recipients and enqueues one
// notification per head. Always best-effort.
func (s *TicketService) fanOut(ctx context.Context, ticket *domain.Ticket, aud audience, message string, category domain.NotificationCategory) {
	for _, recipientID := range s.recipientsFor(ctx, ticket, aud) {
		s.notifyUser(recipientID, message, category, ticketLink(ticket))
	}
}

func (s *TicketService) notifyUser(recipientID, message string, category domain.NotificationCategory, link string) {
	if recipientID == "" {
		return
	}
	s.notifier.Enqueue(domain.Notification{
		RecipientID: recipientID,
		Message:     message,
		Category:    category,
		Link:        link,
	})
}

func (s *TicketService) recipientsFor(ctx context.Context, ticket *domain.Ticket, aud audience) []string {
	switch aud {
	case audienceNone:
		return nil
	case audienceAuthor:
		return []string{ticket.AuthorID}
	case audienceSolver:
		if ticket.SolverID != nil {
			return []string{*ticket.SolverID}
		}
		return []string{ticket.AuthorID}
	}

	var roles []domain.Role
	var matches func(permission.Actor) bool
	switch aud {
	case audienceN1Approvers:
		roles = []domain.Role{domain.RoleManager, domain.RoleDirecteur, domain.RoleAdmin}
		matches = func(a permission.Actor) bool { return a.CanValidateN1(ticket.ServiceDemandeur) }
	case audienceN2Approvers:
		roles = []domain.Role{domain.RoleManager, domain.RoleDirecteur, domain.RoleAdmin}
		matches = func(a permission.Actor) bool { return a.CanValidateN2(ticket.TargetService) }
	case audiencePool:
		roles = []domain.Role{domain.RoleSolver, domain.RoleAdmin}
		matches = func(a permission.Actor) bool { return a.CanSolve(ticket.TargetService) }
	case audienceFinanceManagers:
		roles = []domain.Role{domain.RoleManager, domain.RoleAdmin}
		matches = func(a permission.Actor) bool { return a.CanReviewFinance() }
	case audienceFinanceDirectors:
		roles = []domain.Role{domain.RoleDirecteur, domain.RoleAdmin}
		matches = func(a permission.Actor) bool { return a.CanSignFinance() }
	default:
		return nil
	}

	users, err := s.users.ListByRoles(ctx, roles)
	if err != nil {
		s.logger.Warn("recipient lookup failed", zap.Error(err))
		return nil
	}
	var ids []string
	for i := range users {
		if matches(permission.ActorFor(&users[i])) {
			ids = append(ids, users[i].ID)
		}
	}
	return ids
}

func ticketLink(ticket *domain.Ticket) string {
	return "/tickets/" + ticket.ID
}
