package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/config"
	"github.com/spec-kit/service-desk/internal/directory"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/pkg/util"
)

// AccountService syncs principals from the directory, issues tokens
// and carries the admin-side user management.
type AccountService struct {
	users   repository.UserRepository
	tickets repository.TicketRepository
	parser  *directory.Parser
	tokens  *auth.TokenManager
	authCfg config.AuthConfig
	logger  *zap.Logger
}

// AccountDependencies bundles collaborators for AccountService.
type AccountDependencies struct {
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	Parser     *directory.Parser
	Tokens     *auth.TokenManager
	AuthCfg    config.AuthConfig
	Logger     *zap.Logger
}

// DirectoryLogin is what the identity adapter resolved for a
// successfully authenticated principal: identity attributes plus the
// raw group memberships.
type DirectoryLogin struct {
	Username string
	FullName string
	Email    string
	Location string
	Groups   []string
}

// Session is the issued credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:   deps.UserRepo,
		tickets: deps.TicketRepo,
		parser:  deps.Parser,
		tokens:  deps.Tokens,
		authCfg: deps.AuthCfg,
		logger:  logger,
	}
}

// SyncFromDirectory upserts the principal from a directory login and
// issues a session. Role and membership sets are recomputed from the
// groups on every call, so directory edits apply at next login.
func (s *AccountService) SyncFromDirectory(ctx context.Context, login DirectoryLogin) (*Session, error) {
	username := strings.ToLower(strings.TrimSpace(login.Username))
	if username == "" {
		return nil, util.NewValidationError("username is required", nil)
	}

	profile := s.parser.Parse(login.Groups)
	user := &domain.User{
		Username:        username,
		FullName:        strings.TrimSpace(login.FullName),
		Email:           strings.TrimSpace(login.Email),
		Role:            profile.Role,
		OriginServices:  profile.OriginServices,
		AllowedServices: profile.AllowedServices,
		Location:        strings.TrimSpace(login.Location),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, util.MapError(err)
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Info("directory login",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// LocalAdminLogin is the break-glass path when the directory is
// unreachable: a single admin account backed by a bcrypt hash from
// configuration.
func (s *AccountService) LocalAdminLogin(ctx context.Context, username, password string) (*Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if s.authCfg.LocalAdminHash == "" || username != strings.ToLower(s.authCfg.LocalAdminUser) {
		return nil, util.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.authCfg.LocalAdminHash, password); err != nil {
		return nil, util.NewUnauthorized("invalid credentials")
	}

	user := &domain.User{
		Username: username,
		FullName: "Local Administrator",
		Role:     domain.RoleAdmin,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, util.MapError(err)
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Warn("local admin login used", zap.String("username", username))
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Get returns one principal.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return user, nil
}

// List returns all principals; admin only.
func (s *AccountService) List(ctx context.Context, actorUser *domain.User) ([]domain.User, error) {
	if !permission.ActorFor(actorUser).IsAdmin() {
		return nil, util.NewForbidden("admin required")
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return users, nil
}

// AdminUpdateInput is the admin-side override of a principal's
// workflow attributes.
type AdminUpdateInput struct {
	Role            domain.Role
	OriginServices  []string
	AllowedServices []string
	Location        string
}

// AdminUpdate overrides role and memberships; admin only. The change
// holds until the next directory sync rewrites it.
func (s *AccountService) AdminUpdate(ctx context.Context, actorUser *domain.User, id string, input AdminUpdateInput) (*domain.User, error) {
	if !permission.ActorFor(actorUser).IsAdmin() {
		return nil, util.NewForbidden("admin required")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	if input.Role != "" {
		user.Role = input.Role
	}
	user.OriginServices = permission.NormalizeSet(input.OriginServices)
	user.AllowedServices = permission.NormalizeSet(input.AllowedServices)
	if input.Location != "" {
		user.Location = input.Location
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, util.MapError(err)
	}
	return user, nil
}

// Delete removes a principal; admin only. Principals referenced as
// ticket author or solver are never deleted, the audit trail must
// keep resolving.
func (s *AccountService) Delete(ctx context.Context, actorUser *domain.User, id string) error {
	if !permission.ActorFor(actorUser).IsAdmin() {
		return util.NewForbidden("admin required")
	}
	if actorUser.ID == id {
		return util.NewValidationError("cannot delete own account", nil)
	}
	count, err := s.tickets.CountByUser(ctx, id)
	if err != nil {
		return util.MapError(err)
	}
	if count > 0 {
		return util.NewConflict("user is referenced by tickets", map[string]any{"ticket_count": count})
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return util.MapError(err)
	}
	return nil
}
