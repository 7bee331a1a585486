package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/pkg/util"
)

// InventoryService manages the IT material registry and loans. All
// operations require the IT competency or admin.
type InventoryService struct {
	materials repository.MaterialRepository
	loans     repository.LoanRepository
	now       func() time.Time
}

// NewInventoryService constructs the service.
func NewInventoryService(materials repository.MaterialRepository, loans repository.LoanRepository, clock func() time.Time) *InventoryService {
	if clock == nil {
		clock = time.Now
	}
	return &InventoryService{materials: materials, loans: loans, now: clock}
}

// MaterialInput describes a registry entry payload.
type MaterialInput struct {
	Category     string
	Model        string
	SerialNumber string
	Hostname     string
	IMEI         string
}

// LoanInput describes a checkout payload.
type LoanInput struct {
	MaterialID      string
	BorrowerName    string
	BorrowerService string
	LoanType        string
	Accessories     string
	DueAt           *time.Time
}

// AddMaterial registers a new item as available.
func (s *InventoryService) AddMaterial(ctx context.Context, actorUser *domain.User, input MaterialInput) (*domain.Material, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.SerialNumber) == "" {
		return nil, util.NewValidationError("serial number is required", nil)
	}
	m := &domain.Material{
		Category:     strings.TrimSpace(input.Category),
		Model:        strings.TrimSpace(input.Model),
		SerialNumber: strings.TrimSpace(input.SerialNumber),
		Hostname:     strings.TrimSpace(input.Hostname),
		IMEI:         strings.TrimSpace(input.IMEI),
		Status:       domain.MaterialAvailable,
	}
	if err := s.materials.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, util.NewConflict("serial number already registered", map[string]any{"serial_number": m.SerialNumber})
		}
		return nil, util.MapError(err)
	}
	return m, nil
}

// UpdateMaterial edits registry metadata.
func (s *InventoryService) UpdateMaterial(ctx context.Context, actorUser *domain.User, id string, input MaterialInput) (*domain.Material, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	m, err := s.materials.GetByID(ctx, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	m.Category = strings.TrimSpace(input.Category)
	m.Model = strings.TrimSpace(input.Model)
	m.SerialNumber = strings.TrimSpace(input.SerialNumber)
	m.Hostname = strings.TrimSpace(input.Hostname)
	m.IMEI = strings.TrimSpace(input.IMEI)
	if err := s.materials.Update(ctx, m); err != nil {
		return nil, util.MapError(err)
	}
	return m, nil
}

// DeleteMaterial removes an item. Loaned items cannot be removed.
func (s *InventoryService) DeleteMaterial(ctx context.Context, actorUser *domain.User, id string) error {
	if err := requireInventoryAccess(actorUser); err != nil {
		return err
	}
	m, err := s.materials.GetByID(ctx, id)
	if err != nil {
		return util.MapError(err)
	}
	if m.Status == domain.MaterialLoaned {
		return util.NewConflict("material is currently on loan", map[string]any{"material_id": id})
	}
	if err := s.materials.Delete(ctx, id); err != nil {
		return util.MapError(err)
	}
	return nil
}

// ListMaterials returns the registry.
func (s *InventoryService) ListMaterials(ctx context.Context, actorUser *domain.User) ([]domain.Material, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	items, err := s.materials.List(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return items, nil
}

// Checkout loans an available item to a borrower. The availability
// flip is a compare-and-swap, so two technicians racing on the same
// item cannot both succeed.
func (s *InventoryService) Checkout(ctx context.Context, actorUser *domain.User, input LoanInput) (*domain.Loan, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.BorrowerName) == "" {
		return nil, util.NewValidationError("borrower name is required", nil)
	}
	if _, err := s.materials.GetByID(ctx, input.MaterialID); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.materials.UpdateStatus(ctx, input.MaterialID, domain.MaterialLoaned, domain.MaterialAvailable); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, util.NewConflict("material is not available", map[string]any{"material_id": input.MaterialID})
		}
		return nil, util.MapError(err)
	}

	loan := &domain.Loan{
		MaterialID:      input.MaterialID,
		TechnicianID:    actorUser.ID,
		BorrowerName:    strings.TrimSpace(input.BorrowerName),
		BorrowerService: permission.Normalize(input.BorrowerService),
		LoanType:        input.LoanType,
		Accessories:     input.Accessories,
		DueAt:           input.DueAt,
		Status:          domain.LoanOpen,
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		// Release the item so it is not stranded in LOANED.
		_ = s.materials.UpdateStatus(ctx, input.MaterialID, domain.MaterialAvailable, domain.MaterialLoaned)
		return nil, util.MapError(err)
	}
	return loan, nil
}

// Return closes a loan and releases the item.
func (s *InventoryService) Return(ctx context.Context, actorUser *domain.User, loanID string) (*domain.Loan, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if loan.Status != domain.LoanOpen {
		return nil, util.NewConflict("loan already returned", map[string]any{"loan_id": loanID})
	}
	now := s.now()
	loan.Status = domain.LoanReturned
	loan.ReturnedAt = &now
	if err := s.loans.Update(ctx, loan); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.materials.UpdateStatus(ctx, loan.MaterialID, domain.MaterialAvailable, domain.MaterialLoaned); err != nil && !errors.Is(err, repository.ErrStateConflict) {
		return nil, util.MapError(err)
	}
	return loan, nil
}

// ListLoans returns loans, open first.
func (s *InventoryService) ListLoans(ctx context.Context, actorUser *domain.User) ([]domain.Loan, error) {
	if err := requireInventoryAccess(actorUser); err != nil {
		return nil, err
	}
	loans, err := s.loans.List(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return loans, nil
}

func requireInventoryAccess(actorUser *domain.User) error {
	if !permission.ActorFor(actorUser).CanManageInventory() {
		return util.NewForbidden("inventory access requires the IT competency")
	}
	return nil
}
