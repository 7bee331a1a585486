package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/pkg/util"
)

var testDay = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

type ticketFixture struct {
	svc       *TicketService
	tickets   *fakeTicketRepo
	messages  *fakeMessageRepo
	users     *fakeUserRepo
	materials *fakeMaterialRepo
	loans     *fakeLoanRepo
	sink      *recordingSink
}

func newTicketFixture(users ...*domain.User) *ticketFixture {
	f := &ticketFixture{
		tickets:   newFakeTicketRepo(),
		messages:  &fakeMessageRepo{},
		users:     newFakeUserRepo(users...),
		materials: newFakeMaterialRepo(),
		loans:     newFakeLoanRepo(),
		sink:      &recordingSink{},
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:   f.tickets,
		MessageRepo:  f.messages,
		UserRepo:     f.users,
		MaterialRepo: f.materials,
		LoanRepo:     f.loans,
		Notifier:     f.sink,
		Services:     []string{"INFORMATIQUE", "DAF", "DRH", "TECHNIQUE", "SECU"},
		Logger:       zap.NewNop(),
		Clock:        func() time.Time { return testDay },
	})
	return f
}

func requester(id string, origins ...string) *domain.User {
	return &domain.User{ID: id, Username: id, FullName: id, Role: domain.RoleUser, OriginServices: origins}
}

func solverUser(id string, competencies ...string) *domain.User {
	return &domain.User{ID: id, Username: id, FullName: id, Role: domain.RoleSolver, AllowedServices: competencies}
}

func managerUser(id string, origins, competencies []string) *domain.User {
	return &domain.User{ID: id, Username: id, FullName: id, Role: domain.RoleManager, OriginServices: origins, AllowedServices: competencies}
}

func TestSubmitTicketAllocatesDayScopedUID(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)

	first, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Broken chair",
		TargetService: "technique",
	})
	require.NoError(t, err)
	assert.Equal(t, "20260315-001", first.UIDPublic)
	assert.Equal(t, "TECHNIQUE", first.TargetService)
	assert.Equal(t, domain.StatusValidationN1, first.Status)
	assert.Equal(t, "TECHNIQUE", first.ServiceDemandeur, "single origin applied implicitly")

	second, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Another one",
		TargetService: "TECHNIQUE",
	})
	require.NoError(t, err)
	assert.Equal(t, "20260315-002", second.UIDPublic)
}

func TestSubmitTicketRetriesUIDOnCollision(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)
	f.tickets.failUID["20260315-001"] = 1

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Raced submission",
		TargetService: "TECHNIQUE",
	})
	require.NoError(t, err)
	assert.Equal(t, "20260315-002", ticket.UIDPublic)
}

func TestSubmitTicketConcurrentAuthorsGetDistinctUIDs(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
				Title:         fmt.Sprintf("req %d", i),
				TargetService: "TECHNIQUE",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.GreaterOrEqual(t, succeeded, 5, "bounded retry absorbs most collisions")
	assert.Len(t, f.tickets.byUID, succeeded, "every successful submission holds a distinct UID")
}

func TestSubmitTicketRejectsUnknownService(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)

	_, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "nope",
		TargetService: "CANTINE",
	})
	assert.Error(t, err)
}

func TestSubmitTicketMultiOriginRequiresChoice(t *testing.T) {
	author := requester("alice", "TECHNIQUE", "DAF")
	f := newTicketFixture(author)

	_, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "ambiguous",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
	})
	assert.Error(t, err, "multi-origin author must pick an origin")

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "explicit",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
		OriginService: "daf",
	})
	require.NoError(t, err)
	assert.Equal(t, "DAF", ticket.ServiceDemandeur)
}

func TestSubmitTicketRejectsForeignOrigin(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)

	_, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "spoofed",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
		OriginService: "DAF",
	})
	assert.Error(t, err)
}

func TestManagerActionValidateAdvancesChain(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	n1 := managerUser("n1", []string{"TECHNIQUE"}, nil)
	n2 := managerUser("n2", nil, []string{"INFORMATIQUE"})
	f := newTicketFixture(author, n1, n2)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "New user account",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidationN1, ticket.Status)

	ticket, err = f.svc.ManagerAction(context.Background(), n1, ticket.ID, ActionValidate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidationN2, ticket.Status)

	ticket, err = f.svc.ManagerAction(context.Background(), n2, ticket.ID, ActionValidate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ticket.Status)
}

func TestManagerActionWrongStageForbidden(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	n2only := managerUser("n2", nil, []string{"INFORMATIQUE"})
	f := newTicketFixture(author, n2only)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "New user account",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
	})
	require.NoError(t, err)

	_, err = f.svc.ManagerAction(context.Background(), n2only, ticket.ID, ActionValidate, "")
	assert.Error(t, err, "N1 requires origin membership, not target competency")
}

func TestManagerActionRefuseRequiresReasonAndIsTerminal(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	n1 := managerUser("n1", []string{"TECHNIQUE"}, nil)
	f := newTicketFixture(author, n1)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Doomed",
		TargetService: "INFORMATIQUE",
		Category:      "NEW_USER",
	})
	require.NoError(t, err)

	_, err = f.svc.ManagerAction(context.Background(), n1, ticket.ID, ActionRefuse, "  ")
	assert.Error(t, err, "refusal reason is mandatory")

	ticket, err = f.svc.ManagerAction(context.Background(), n1, ticket.ID, ActionRefuse, "no budget")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefused, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)

	_, err = f.svc.ManagerAction(context.Background(), n1, ticket.ID, ActionValidate, "")
	assert.Error(t, err, "refused is terminal")

	notes := f.sink.forRecipient(author.ID)
	require.NotEmpty(t, notes)
	assert.Equal(t, domain.NotifyDanger, notes[len(notes)-1].Category)
}

func TestEquipmentSkipsN1AndFastPathsFromN2(t *testing.T) {
	author := requester("alice", "DAF")
	n2 := managerUser("n2", nil, []string{"DAF"})
	f := newTicketFixture(author, n2)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Finance laptop",
		TargetService: "DAF",
		Category:      "EQUIPMENT",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidationN2, ticket.Status, "equipment skips N1")

	ticket, err = f.svc.ManagerAction(context.Background(), n2, ticket.ID, ActionValidate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ticket.Status,
		"equipment shortcut wins over finance routing")
}

func TestTakeForbidsSelfAssignment(t *testing.T) {
	author := solverUser("bob", "INFORMATIQUE")
	author.OriginServices = []string{"INFORMATIQUE"}
	f := newTicketFixture(author)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "My own incident",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, ticket.Status)

	_, err = f.svc.Take(context.Background(), author, ticket.ID)
	assert.Error(t, err, "author may not take their own ticket")
}

func TestTakeAssignsAndNotifiesAuthor(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	tech := solverUser("bob", "INFORMATIQUE")
	f := newTicketFixture(author, tech)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Printer on fire",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)

	ticket, err = f.svc.Take(context.Background(), tech, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	require.NotNil(t, ticket.SolverID)
	assert.Equal(t, tech.ID, *ticket.SolverID)
	assert.NotEmpty(t, f.sink.forRecipient(author.ID))
}

func TestTransferReroutesToNewPool(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	tech := solverUser("bob", "INFORMATIQUE")
	facilities := solverUser("carol", "TECHNIQUE")
	f := newTicketFixture(author, tech, facilities)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Flickering lights in server room",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)
	ticket, err = f.svc.Take(context.Background(), tech, ticket.ID)
	require.NoError(t, err)

	ticket, err = f.svc.Transfer(context.Background(), tech, ticket.ID, "technique")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ticket.Status)
	assert.Equal(t, "TECHNIQUE", ticket.TargetService)
	assert.Nil(t, ticket.SolverID, "transfer clears the assignment")

	assert.NotEmpty(t, f.sink.forRecipient(facilities.ID), "new pool hears about the transfer")

	// The new team can now take it.
	ticket, err = f.svc.Take(context.Background(), facilities, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.SolverID)
	assert.Equal(t, facilities.ID, *ticket.SolverID)
}

func TestTransferGuards(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	tech := solverUser("bob", "INFORMATIQUE")
	outsider := solverUser("carol", "DAF")
	f := newTicketFixture(author, tech, outsider)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Misfiled request",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), tech, ticket.ID, "LOGISTIQUE")
	assert.Error(t, err, "unknown service rejected")

	_, err = f.svc.Transfer(context.Background(), tech, ticket.ID, "informatique")
	assert.Error(t, err, "transfer to the current service rejected")

	_, err = f.svc.Transfer(context.Background(), outsider, ticket.ID, "TECHNIQUE")
	assert.Error(t, err, "staff without competency on the current service cannot transfer")
}

func TestAssignChecksTargetSolverCompetency(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	boss := managerUser("boss", nil, []string{"INFORMATIQUE"})
	wrongSolver := solverUser("carol", "DAF")
	rightSolver := solverUser("dave", "INFORMATIQUE")
	f := newTicketFixture(author, boss, wrongSolver, rightSolver)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Install software",
		TargetService: "INFORMATIQUE",
		Category:      "STANDARD",
	})
	require.NoError(t, err)

	_, err = f.svc.Assign(context.Background(), boss, ticket.ID, wrongSolver.ID)
	assert.Error(t, err, "target solver lacks the competency")

	ticket, err = f.svc.Assign(context.Background(), boss, ticket.ID, rightSolver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	assert.Equal(t, rightSolver.ID, *ticket.SolverID)
}

func TestFinancePurchaseOrderRoundTrip(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	n1 := managerUser("n1", []string{"TECHNIQUE"}, nil)
	finSolver := solverUser("fin", "DAF")
	finManager := managerUser("fm", nil, []string{"DAF"})
	finDirector := &domain.User{ID: "fd", Username: "fd", FullName: "fd", Role: domain.RoleDirecteur, AllowedServices: []string{"DAF"}}
	f := newTicketFixture(author, n1, finSolver, finManager, finDirector)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Office chairs x10",
		TargetService: "DAF",
		Category:      "PURCHASE_ORDER",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidationN1, ticket.Status)

	ticket, err = f.svc.ManagerAction(context.Background(), n1, ticket.ID, ActionValidate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ticket.Status, "finance skips N2")

	ticket, err = f.svc.SolverSubmitPreparedDocument(context.Background(), finSolver, ticket.ID, "20260315-001/bon-commande.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidationFinance, ticket.Status)
	assert.Equal(t, finSolver.ID, *ticket.SolverID, "implicit take on document submission")
	assert.Equal(t, "20260315-001/bon-commande.pdf", ticket.Fields["prepared_document"])

	ticket, err = f.svc.ManagerValidateFinance(context.Background(), finManager, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinanceSignature, ticket.Status)

	_, err = f.svc.DirectorSign(context.Background(), finManager, ticket.ID, "signed.pdf")
	assert.Error(t, err, "manager cannot sign")

	ticket, err = f.svc.DirectorSign(context.Background(), finDirector, ticket.ID, "20260315-001/signed.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)
	assert.Equal(t, "20260315-001/signed.pdf", ticket.Fields["signed_document"])
}

func TestFinanceRefuseUnderReviewBouncesToSolver(t *testing.T) {
	author := requester("alice", "DAF")
	finSolver := solverUser("fin", "DAF")
	finManager := managerUser("fm", nil, []string{"DAF"})
	admin := &domain.User{ID: "adm", Username: "adm", Role: domain.RoleAdmin}
	f := newTicketFixture(author, finSolver, finManager, admin)

	ticket, err := f.svc.SubmitTicket(context.Background(), admin, TicketCreateInput{
		Title:         "Servers",
		TargetService: "DAF",
		Category:      "PURCHASE_ORDER",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, ticket.Status)

	ticket, err = f.svc.SolverSubmitPreparedDocument(context.Background(), finSolver, ticket.ID, "doc.pdf")
	require.NoError(t, err)

	ticket, err = f.svc.ManagerAction(context.Background(), finManager, ticket.ID, ActionRefuse, "wrong supplier")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, ticket.Status, "DAF refusal is not terminal")
	assert.NotEmpty(t, f.sink.forRecipient(finSolver.ID))
}

func TestRequestUserInputAndAuthorReplyResumes(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	tech := solverUser("bob", "INFORMATIQUE")
	f := newTicketFixture(author, tech)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "VPN broken",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)
	ticket, err = f.svc.Take(context.Background(), tech, ticket.ID)
	require.NoError(t, err)

	ticket, err = f.svc.RequestUserInput(context.Background(), tech, ticket.ID, "Which network are you on?")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingUser, ticket.Status)

	_, err = f.svc.AddMessage(context.Background(), author, ticket.ID, "The office wifi")
	require.NoError(t, err)

	refreshed, _, err := f.svc.GetTicket(context.Background(), author, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, refreshed.Status, "author reply resumes the ticket")
}

func TestGetTicketVisibility(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	stranger := requester("eve", "DRH")
	f := newTicketFixture(author, stranger)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Private matter",
		TargetService: "INFORMATIQUE",
		Category:      "STANDARD",
	})
	require.NoError(t, err)

	_, _, err = f.svc.GetTicket(context.Background(), author, ticket.ID)
	assert.NoError(t, err)

	_, _, err = f.svc.GetTicket(context.Background(), stranger, ticket.ID)
	assert.Error(t, err)
}

func TestListPoolFiltersByCompetency(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	itSolver := solverUser("bob", "INFORMATIQUE")
	dafSolver := solverUser("carol", "DAF")
	f := newTicketFixture(author, itSolver, dafSolver)

	_, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "IT thing",
		TargetService: "INFORMATIQUE",
		Category:      "STANDARD",
	})
	require.NoError(t, err)

	pool, err := f.svc.ListPool(context.Background(), itSolver, 50, 0)
	require.NoError(t, err)
	assert.Len(t, pool, 1)

	pool, err = f.svc.ListPool(context.Background(), dafSolver, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestTakeTwiceConflicts(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	tech1 := solverUser("bob", "INFORMATIQUE")
	tech2 := solverUser("carol", "INFORMATIQUE")
	f := newTicketFixture(author, tech1, tech2)

	ticket, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "Contested",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)

	_, err = f.svc.Take(context.Background(), tech1, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Take(context.Background(), tech2, ticket.ID)
	require.Error(t, err)
	assert.True(t, util.IsConflict(err), "second taker gets a conflict, not success")
}

func TestStatsAggregatesTicketAndInventoryCounters(t *testing.T) {
	author := requester("alice", "TECHNIQUE")
	f := newTicketFixture(author)

	_, err := f.svc.SubmitTicket(context.Background(), author, TicketCreateInput{
		Title:         "one",
		TargetService: "INFORMATIQUE",
		Category:      "INCIDENT",
	})
	require.NoError(t, err)

	require.NoError(t, f.materials.Create(context.Background(), &domain.Material{SerialNumber: "SN1", Status: domain.MaterialAvailable}))
	require.NoError(t, f.materials.Create(context.Background(), &domain.Material{SerialNumber: "SN2", Status: domain.MaterialLoaned}))
	require.NoError(t, f.loans.Create(context.Background(), &domain.Loan{MaterialID: "mat-2", Status: domain.LoanOpen}))

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TicketsByStatus[domain.StatusPending])
	assert.Equal(t, 1, stats.MaterialsAvailable)
	assert.Equal(t, 1, stats.MaterialsLoaned)
	assert.Equal(t, 1, stats.OpenLoans)
}
