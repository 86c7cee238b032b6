package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/Dosada05/tournament-settlement/settlement"
	"github.com/shopspring/decimal"
)

const (
	adminID      = 1
	organizerID  = 2
	tournamentID = 10
	categoryID   = 20
	firstPlayer  = 100
)

var (
	admin     = models.Actor{UserID: adminID, Role: models.RoleAdmin, IPAddress: "127.0.0.1", UserAgent: "go-test"}
	organizer = models.Actor{UserID: organizerID, Role: models.RoleOrganizer}
)

func player(n int) models.Actor {
	return models.Actor{UserID: firstPlayer + n, Role: models.RolePlayer}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishToTournament(id int, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("tournament_%d:%s", id, event))
}

func (p *recordingPublisher) PublishToUser(id int, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("user_%d:%s", id, event))
}

type fixture struct {
	store   *repositories.MemoryStore
	pub     *recordingPublisher
	regs    *RegistrationService
	payouts *PayoutService
	gate    *RiskGate
	cancels *CancellationService
}

// newFixture seeds one published tournament with a single category and
// players numbered from firstPlayer.
func newFixture(t *testing.T, entryFee int64, players int) *fixture {
	t.Helper()
	return newFixtureWithStore(t, repositories.NewMemoryStore(), nil, entryFee, players)
}

func newFixtureWithStore(t *testing.T, mem *repositories.MemoryStore, store repositories.Store, entryFee int64, players int) *fixture {
	t.Helper()
	mem.PutUser(models.User{ID: adminID, FirstName: "Ada", LastName: "Admin", Email: "admin@example.com", Role: models.RoleAdmin})
	mem.PutUser(models.User{ID: organizerID, FirstName: "Oleg", LastName: "Organizer", Email: "org@example.com", Role: models.RoleOrganizer})
	for i := 0; i < players; i++ {
		mem.PutUser(models.User{ID: firstPlayer + i, FirstName: "Player", LastName: fmt.Sprint(i), Email: fmt.Sprintf("p%d@example.com", i), Role: models.RolePlayer})
	}
	mem.PutTournament(models.Tournament{ID: tournamentID, Name: "Spring Open", OrganizerID: organizerID, Status: models.TournamentPublished})
	mem.PutCategory(models.Category{ID: categoryID, TournamentID: tournamentID, Name: "Singles", EntryFee: decimal.NewFromInt(entryFee)})

	if store == nil {
		store = mem
	}
	pub := &recordingPublisher{}
	env := Env{Store: store, Publisher: pub}
	gate := NewRiskGate(store.Tournaments(), DefaultAssessmentPolicy(), DefaultProtectionPolicy(), nil)
	return &fixture{
		store:   mem,
		pub:     pub,
		regs:    NewRegistrationService(env, settlement.DefaultPolicy()),
		payouts: NewPayoutService(env),
		gate:    gate,
		cancels: NewCancellationService(env, gate, 8),
	}
}

func (f *fixture) submit(t *testing.T, n int) *models.Registration {
	t.Helper()
	reg, err := f.regs.Submit(context.Background(), player(n), SubmitRegistrationInput{
		TournamentID:     tournamentID,
		CategoryID:       categoryID,
		PaymentReference: fmt.Sprintf("UPI-%d", n),
		PaymentProofKey:  fmt.Sprintf("proofs/%d.png", n),
	})
	if err != nil {
		t.Fatalf("Submit player %d: %v", n, err)
	}
	return reg
}

func (f *fixture) confirmed(t *testing.T, n int) *models.Registration {
	t.Helper()
	reg := f.submit(t, n)
	out, err := f.regs.Confirm(context.Background(), admin, reg.ID)
	if err != nil {
		t.Fatalf("Confirm registration %d: %v", reg.ID, err)
	}
	return out
}

func (f *fixture) setTournamentStatus(t *testing.T, status models.TournamentStatus) {
	t.Helper()
	tour, err := f.store.Tournaments().GetByID(context.Background(), tournamentID)
	if err != nil {
		t.Fatalf("load tournament: %v", err)
	}
	tour.Status = status
	f.store.PutTournament(*tour)
}

func (f *fixture) ledger(t *testing.T) *models.TournamentPayment {
	t.Helper()
	p, err := f.store.Payments().GetByTournament(context.Background(), tournamentID)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return p
}

func (f *fixture) auditActions(entity models.AuditEntityType, id int) []models.AuditAction {
	var out []models.AuditAction
	for _, e := range f.store.AuditLogs() {
		if e.EntityType == entity && e.EntityID == fmt.Sprint(id) {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fixture) notifications(typ models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, n := range f.store.AllNotifications() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
