package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
)

func TestResolveTransitionValidate(t *testing.T) {
	cases := []struct {
		name     string
		current  domain.TicketStatus
		service  string
		category string
		want     domain.TicketStatus
	}{
		{"standard N1 to N2", domain.StatusValidationN1, "TECHNIQUE", domain.CategoryStandard, domain.StatusValidationN2},
		{"finance skips N2 from N1", domain.StatusValidationN1, permission.ServiceFinance, domain.CategoryPurchaseOrder, domain.StatusPending},
		{"standard N2 to pool", domain.StatusValidationN2, "TECHNIQUE", domain.CategoryStandard, domain.StatusPending},
		{"finance N2 to DAF review", domain.StatusValidationN2, permission.ServiceFinance, domain.CategoryPurchaseOrder, domain.StatusValidationFinance},
		{"equipment shortcut beats finance routing", domain.StatusValidationN2, permission.ServiceFinance, domain.CategoryEquipment, domain.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, ok := resolveTransition(tc.current, tc.service, tc.category, ActionValidate)
			assert.True(t, ok)
			assert.Equal(t, tc.want, outcome.next)
		})
	}
}

func TestResolveTransitionRefuse(t *testing.T) {
	outcome, ok := resolveTransition(domain.StatusValidationN1, "TECHNIQUE", domain.CategoryStandard, ActionRefuse)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusRefused, outcome.next)

	// Refusing under DAF review bounces to the solver instead of terminating.
	outcome, ok = resolveTransition(domain.StatusValidationFinance, permission.ServiceFinance, domain.CategoryPurchaseOrder, ActionRefuse)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, outcome.next)

	outcome, ok = resolveTransition(domain.StatusFinanceSignature, permission.ServiceFinance, domain.CategoryPurchaseOrder, ActionRefuse)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, outcome.next)
}

func TestResolveTransitionUnknownState(t *testing.T) {
	_, ok := resolveTransition(domain.StatusInProgress, "TECHNIQUE", domain.CategoryStandard, ActionValidate)
	assert.False(t, ok)

	_, ok = resolveTransition(domain.StatusDone, "TECHNIQUE", domain.CategoryStandard, ActionRefuse)
	assert.False(t, ok)
}

func TestResolveInitialStatus(t *testing.T) {
	userActor := permission.Actor{Role: domain.RoleUser}
	directorActor := permission.Actor{Role: domain.RoleDirecteur}
	adminActor := permission.Actor{Role: domain.RoleAdmin}

	cases := []struct {
		name     string
		actor    permission.Actor
		service  string
		category string
		want     domain.TicketStatus
	}{
		{"IT standard skips approval", userActor, permission.ServiceIT, domain.CategoryStandard, domain.StatusPending},
		{"IT incident skips approval", userActor, permission.ServiceIT, domain.CategoryIncident, domain.StatusPending},
		{"imago repair skips approval", userActor, "TECHNIQUE", domain.CategoryImagoRepair, domain.StatusPending},
		{"HR requests skip approval", userActor, permission.ServiceHR, domain.CategoryHRRequest, domain.StatusPending},
		{"equipment skips N1", userActor, permission.ServiceIT, domain.CategoryEquipment, domain.StatusValidationN2},
		{"user purchase order starts at N1", userActor, permission.ServiceFinance, domain.CategoryPurchaseOrder, domain.StatusValidationN1},
		{"director skips own N1", directorActor, permission.ServiceFinance, domain.CategoryPurchaseOrder, domain.StatusValidationN2},
		{"admin goes straight to pool", adminActor, "TECHNIQUE", domain.CategoryStandard, domain.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveInitialStatus(tc.actor, tc.service, tc.category))
		})
	}
}
