package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/permission"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/internal/storage"
	"github.com/spec-kit/service-desk/pkg/util"
)

// recruitmentUIDNamespace prefixes onboarding UIDs so they never
// collide with ticket UIDs: FCPI-YYYYMMDD-NNN.
const recruitmentUIDNamespace = "FCPI"

// childSpec is one row of the dispatch fan-out. Suffixes are a static
// table, deliberately not derived from service names, so child ids
// stay stable across service catalog edits.
type childSpec struct {
	suffix        string
	targetService string
	title         string
	description   string
	copyCV        bool
	copyPhoto     bool
	imagoOnly     bool
}

var dispatchChildren = []childSpec{
	{
		suffix:        "ADM",
		targetService: permission.ServiceHR,
		title:         "Administrative file",
		description:   "Open the administrative and payroll file for the new hire.",
		copyCV:        true,
	},
	{
		suffix:        "BDG",
		targetService: "SECU",
		title:         "Badge and site access",
		description:   "Produce the access badge and register site permissions.",
		copyPhoto:     true,
	},
	{
		suffix:        "EQP",
		targetService: permission.ServiceIT,
		title:         "Workstation and equipment",
		description:   "Prepare the workstation, phone and requested equipment.",
	},
	{
		suffix:        "ACC",
		targetService: permission.ServiceIT,
		title:         "Imago account",
		description:   "Create the Imago business account and mobility profile.",
		imagoOnly:     true,
	},
}

// RecruitmentService owns the onboarding state machine and the
// idempotent fan-out into child tickets on final approval.
type RecruitmentService struct {
	recruitments repository.RecruitmentRepository
	tickets      *TicketService
	users        repository.UserRepository
	store        storage.FileStore
	notifier     notify.Sink
	logger       *zap.Logger
	now          func() time.Time
}

// RecruitmentDependencies bundles collaborators for RecruitmentService.
type RecruitmentDependencies struct {
	RecruitmentRepo repository.RecruitmentRepository
	Tickets         *TicketService
	UserRepo        repository.UserRepository
	Store           storage.FileStore
	Notifier        notify.Sink
	Logger          *zap.Logger
	Clock           func() time.Time
}

// RecruitmentCreateInput is the submission payload for a new-hire
// onboarding request. File keys reference already-stored uploads.
type RecruitmentCreateInput struct {
	AgentLastName  string
	AgentFirstName string
	Position       string
	AgentService   string
	EntryDate      time.Time

	Contractual       bool
	WorkTime          string
	RecruitmentReason string

	WorkLocation    string
	SecurityComment string

	ImagoActive   bool
	ImagoMobility string

	RequestedEquipment string
	ITAccess           string

	CVFileKey      string
	JobDescFileKey string
	PhotoFileKey   string
}

// NewRecruitmentService constructs the service.
func NewRecruitmentService(deps RecruitmentDependencies) *RecruitmentService {
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
	return &RecruitmentService{
		recruitments: deps.RecruitmentRepo,
		tickets:      deps.Tickets,
		users:        deps.UserRepo,
		store:        deps.Store,
		notifier:     notifier,
		logger:       logger,
		now:          clock,
	}
}

// Submit files an onboarding request and routes it to HR managers.
func (s *RecruitmentService) Submit(ctx context.Context, author *domain.User, input RecruitmentCreateInput) (*domain.Recruitment, error) {
	actor := permission.ActorFor(author)
	if !actor.CanSubmitRecruitment() {
		return nil, util.NewForbidden("onboarding requests require a management role")
	}
	if strings.TrimSpace(input.AgentLastName) == "" || strings.TrimSpace(input.AgentFirstName) == "" {
		return nil, util.NewValidationError("agent first and last name are required", nil)
	}
	if input.EntryDate.IsZero() {
		return nil, util.NewValidationError("entry date is required", nil)
	}

	rec := &domain.Recruitment{
		AuthorID:           author.ID,
		Status:             domain.RecruitmentWaitingManager,
		AgentLastName:      strings.TrimSpace(input.AgentLastName),
		AgentFirstName:     strings.TrimSpace(input.AgentFirstName),
		Position:           strings.TrimSpace(input.Position),
		AgentService:       permission.Normalize(input.AgentService),
		EntryDate:          input.EntryDate,
		Contractual:        input.Contractual,
		WorkTime:           input.WorkTime,
		RecruitmentReason:  input.RecruitmentReason,
		WorkLocation:       input.WorkLocation,
		SecurityComment:    input.SecurityComment,
		ImagoActive:        input.ImagoActive,
		ImagoMobility:      input.ImagoMobility,
		RequestedEquipment: input.RequestedEquipment,
		ITAccess:           input.ITAccess,
		CVFileKey:          input.CVFileKey,
		JobDescFileKey:     input.JobDescFileKey,
		PhotoFileKey:       input.PhotoFileKey,
	}

	prefix := uidDayPrefix(recruitmentUIDNamespace, s.now())
	count, err := s.recruitments.CountByUIDPrefix(ctx, prefix)
	if err != nil {
		return nil, util.MapError(err)
	}
	if _, err := allocateUID(prefix, count, func(uid string) error {
		rec.UIDPublic = uid
		return s.recruitments.Create(ctx, rec)
	}); err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Info("onboarding request submitted",
		zap.String("uid", rec.UIDPublic),
		zap.String("agent", rec.AgentLastName))

	s.notifyHRStage(ctx, rec, domain.RecruitmentWaitingManager,
		fmt.Sprintf("Onboarding %s (%s %s) awaits HR manager validation", rec.UIDPublic, rec.AgentFirstName, rec.AgentLastName))
	return rec, nil
}

// Get returns one onboarding request, visible to its author and HR
// staff.
func (s *RecruitmentService) Get(ctx context.Context, viewer *domain.User, id string) (*domain.Recruitment, error) {
	rec, err := s.recruitments.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	actor := permission.ActorFor(viewer)
	if rec.AuthorID != viewer.ID && !actor.CanActOnRecruitment() {
		return nil, util.NewForbidden("not allowed to view this onboarding request")
	}
	return rec, nil
}

// ListOpen returns requests still in a waiting state, for the HR
// validation dashboards.
func (s *RecruitmentService) ListOpen(ctx context.Context, viewer *domain.User) ([]domain.Recruitment, error) {
	actor := permission.ActorFor(viewer)
	recs, err := s.recruitments.ListByStatuses(ctx, []domain.RecruitmentStatus{
		domain.RecruitmentWaitingManager,
		domain.RecruitmentWaitingDirector,
	})
	if err != nil {
		return nil, util.MapError(err)
	}
	if actor.CanActOnRecruitment() {
		return recs, nil
	}
	own := make([]domain.Recruitment, 0)
	for _, rec := range recs {
		if rec.AuthorID == viewer.ID {
			own = append(own, rec)
		}
	}
	return own, nil
}

// Refuse terminates an onboarding request with a reason.
func (s *RecruitmentService) Refuse(ctx context.Context, actorUser *domain.User, id, reason string) (*domain.Recruitment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, util.NewValidationError("a refusal reason is required", nil)
	}
	rec, err := s.recruitments.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	if rec.Status.IsTerminal() {
		return nil, util.NewConflict("onboarding request already settled", map[string]any{"status": rec.Status})
	}
	if !permission.ActorFor(actorUser).CanActOnRecruitment() {
		return nil, util.NewForbidden("HR competency required")
	}

	expected := rec.Status
	rec.Status = domain.RecruitmentRefused
	rec.RefusalReason = reason
	if err := s.recruitments.UpdateStatus(ctx, rec, expected); err != nil {
		return nil, s.mapStateError(err)
	}

	s.notifier.Enqueue(domain.Notification{
		RecipientID: rec.AuthorID,
		Message:     fmt.Sprintf("Onboarding %s refused: %s", rec.UIDPublic, reason),
		Category:    domain.NotifyDanger,
		Link:        recruitmentLink(rec),
	})
	return rec, nil
}

// Validate advances the onboarding chain. Manager approval hands the
// request to HR directors; director approval triggers the dispatch
// fan-out and settles the request as DISPATCHED.
func (s *RecruitmentService) Validate(ctx context.Context, actorUser *domain.User, id string) (*domain.Recruitment, error) {
	rec, err := s.recruitments.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	if rec.Status.IsTerminal() {
		return nil, util.NewConflict("onboarding request already settled", map[string]any{"status": rec.Status})
	}

	actor := permission.ActorFor(actorUser)
	if !actor.CanValidateRecruitment(rec.Status) {
		return nil, util.NewForbidden("not allowed to validate at this stage")
	}

	switch rec.Status {
	case domain.RecruitmentWaitingManager:
		expected := rec.Status
		rec.Status = domain.RecruitmentWaitingDirector
		if err := s.recruitments.UpdateStatus(ctx, rec, expected); err != nil {
			return nil, s.mapStateError(err)
		}
		s.notifyHRStage(ctx, rec, domain.RecruitmentWaitingDirector,
			fmt.Sprintf("Onboarding %s awaits HR director validation", rec.UIDPublic))
		return rec, nil

	case domain.RecruitmentWaitingDirector:
		return s.dispatch(ctx, rec)
	}
	return nil, util.NewConflict("onboarding request not awaiting validation", map[string]any{"status": rec.Status})
}

// dispatch fans the approved request out into child tickets. Children
// are matched by deterministic UID ({parent}-{suffix}) so a retry
// after partial failure updates what exists and creates what is
// missing instead of duplicating. The recruitment status only flips
// to DISPATCHED after every child committed.
func (s *RecruitmentService) dispatch(ctx context.Context, rec *domain.Recruitment) (*domain.Recruitment, error) {
	childIDs := make([]string, 0, len(dispatchChildren))
	created := 0
	for _, spec := range dispatchChildren {
		if spec.imagoOnly && !rec.ImagoActive {
			continue
		}

		childUID := rec.UIDPublic + "-" + spec.suffix
		files, err := s.copyChildFiles(ctx, rec, spec, childUID)
		if err != nil {
			return nil, util.MapError(fmt.Errorf("dispatch %s: %w", childUID, err))
		}

		child := &domain.Ticket{
			UIDPublic:        childUID,
			Title:            fmt.Sprintf("%s - %s %s", spec.title, rec.AgentFirstName, rec.AgentLastName),
			Description:      spec.description,
			AuthorID:         rec.AuthorID,
			TargetService:    spec.targetService,
			Category:         domain.CategoryOnboarding,
			Status:           domain.StatusPending,
			ServiceDemandeur: rec.AgentService,
			Fields:           childFields(rec),
			Files:            files,
		}

		persisted, wasCreated, err := s.tickets.CreateOrUpdateChild(ctx, child)
		if err != nil {
			return nil, err
		}
		if wasCreated {
			created++
		}
		childIDs = append(childIDs, persisted.ID)
	}

	expected := rec.Status
	rec.Status = domain.RecruitmentDispatched
	rec.ChildTicketIDs = childIDs
	if err := s.recruitments.UpdateStatus(ctx, rec, expected); err != nil {
		return nil, s.mapStateError(err)
	}

	s.logger.Info("onboarding dispatched",
		zap.String("uid", rec.UIDPublic),
		zap.Int("children", len(childIDs)),
		zap.Int("created", created))

	s.notifier.Enqueue(domain.Notification{
		RecipientID: rec.AuthorID,
		Message:     fmt.Sprintf("Onboarding %s approved, %d tickets generated", rec.UIDPublic, len(childIDs)),
		Category:    domain.NotifySuccess,
		Link:        recruitmentLink(rec),
	})
	return rec, nil
}

// copyChildFiles duplicates the relevant source documents into the
// child's namespace so the child's lifecycle no longer depends on the
// parent. A copy failure aborts the dispatch attempt.
func (s *RecruitmentService) copyChildFiles(ctx context.Context, rec *domain.Recruitment, spec childSpec, childUID string) ([]string, error) {
	var files []string
	copyOne := func(srcKey string) error {
		if srcKey == "" {
			return nil
		}
		dstKey := storage.Key(childUID, path.Base(srcKey))
		if err := s.store.Copy(ctx, srcKey, dstKey); err != nil {
			return err
		}
		files = append(files, dstKey)
		return nil
	}
	if spec.copyCV {
		if err := copyOne(rec.CVFileKey); err != nil {
			return nil, err
		}
		if err := copyOne(rec.JobDescFileKey); err != nil {
			return nil, err
		}
	}
	if spec.copyPhoto {
		if err := copyOne(rec.PhotoFileKey); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func childFields(rec *domain.Recruitment) map[string]any {
	return map[string]any{
		"onboarding_uid": rec.UIDPublic,
		"agent_name":     rec.AgentFirstName + " " + rec.AgentLastName,
		"position":       rec.Position,
		"agent_service":  rec.AgentService,
		"entry_date":     rec.EntryDate.Format("2006-01-02"),
		"work_location":  rec.WorkLocation,
		"equipment":      rec.RequestedEquipment,
		"it_access":      rec.ITAccess,
		"imago_active":   rec.ImagoActive,
	}
}

// notifyHRStage fans a message out to the HR heads able to act at the
// given stage.
func (s *RecruitmentService) notifyHRStage(ctx context.Context, rec *domain.Recruitment, stage domain.RecruitmentStatus, message string) {
	roles := []domain.Role{domain.RoleManager, domain.RoleAdmin}
	if stage == domain.RecruitmentWaitingDirector {
		roles = []domain.Role{domain.RoleDirecteur, domain.RoleAdmin}
	}
	users, err := s.users.ListByRoles(ctx, roles)
	if err != nil {
		s.logger.Warn("HR recipient lookup failed", zap.Error(err))
		return
	}
	for i := range users {
		if !permission.ActorFor(&users[i]).CanValidateRecruitment(stage) {
			continue
		}
		s.notifier.Enqueue(domain.Notification{
			RecipientID: users[i].ID,
			Message:     message,
			Category:    domain.NotifyInfo,
			Link:        recruitmentLink(rec),
		})
	}
}

func (s *RecruitmentService) mapStateError(err error) error {
	if errors.Is(err, repository.ErrStateConflict) {
		return util.NewConflict("onboarding request was modified concurrently", nil)
	}
	return util.MapError(err)
}

func recruitmentLink(rec *domain.Recruitment) string {
	return "/recruitments/" + rec.ID
}
