package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store. A transaction holds the store lock for
// its whole duration and works on a copy of the state that replaces the
// original only on commit, so units of work are serializable and roll back
// cleanly. Intended for tests and local runs without Postgres.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	tournaments   map[int]*models.Tournament
	categories    map[int]*models.Category
	users         map[int]*models.User
	registrations map[int]*models.Registration
	payments      map[int]*models.TournamentPayment // keyed by tournament id
	audit         []*models.AuditLog
	notifications []*models.Notification
	nextRegID     int
	nextPaymentID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			tournaments:   make(map[int]*models.Tournament),
			categories:    make(map[int]*models.Category),
			users:         make(map[int]*models.User),
			registrations: make(map[int]*models.Registration),
			payments:      make(map[int]*models.TournamentPayment),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		tournaments:   make(map[int]*models.Tournament, len(st.tournaments)),
		categories:    make(map[int]*models.Category, len(st.categories)),
		users:         make(map[int]*models.User, len(st.users)),
		registrations: make(map[int]*models.Registration, len(st.registrations)),
		payments:      make(map[int]*models.TournamentPayment, len(st.payments)),
		audit:         slices.Clone(st.audit),
		notifications: slices.Clone(st.notifications),
		nextRegID:     st.nextRegID,
		nextPaymentID: st.nextPaymentID,
	}
	for k, v := range st.tournaments {
		t := *v
		c.tournaments[k] = &t
	}
	for k, v := range st.categories {
		cat := *v
		c.categories[k] = &cat
	}
	for k, v := range st.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range st.registrations {
		c.registrations[k] = v.Clone()
	}
	for k, v := range st.payments {
		c.payments[k] = v.Clone()
	}
	return c
}

// txRepos binds repositories to a working copy; the caller already holds the lock.
func (s *MemoryStore) txRepos(st *memState) memRepositories {
	return memRepositories{
		st:   func() *memState { return st },
		lock: func() func() { return func() {} },
		now:  s.now,
	}
}

// shared binds repositories to the committed state, locking per call.
func (s *MemoryStore) shared() memRepositories {
	return memRepositories{
		st: func() *memState { return s.state },
		lock: func() func() {
			s.mu.Lock()
			return s.mu.Unlock
		},
		now: s.now,
	}
}

func (s *MemoryStore) Registrations() RegistrationRepository { return s.shared().Registrations() }
func (s *MemoryStore) Payments() PaymentRepository           { return s.shared().Payments() }
func (s *MemoryStore) Tournaments() TournamentRepository     { return s.shared().Tournaments() }
func (s *MemoryStore) Users() UserRepository                 { return s.shared().Users() }
func (s *MemoryStore) Audit() AuditRepository                { return s.shared().Audit() }
func (s *MemoryStore) Notifications() NotificationRepository { return s.shared().Notifications() }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(s.txRepos(work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

// PutTournament, PutCategory and PutUser seed reference data that the engine
// only reads.
func (s *MemoryStore) PutTournament(t models.Tournament) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.state.tournaments[t.ID] = &t
}

func (s *MemoryStore) PutCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.categories[c.ID] = &c
}

func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = &u
}

// DeleteUser and DeleteTournament simulate dangling references.
func (s *MemoryStore) DeleteUser(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.users, id)
}

func (s *MemoryStore) DeleteTournament(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.tournaments, id)
}

// AuditLogs returns a copy of every committed audit entry in append order.
func (s *MemoryStore) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, len(s.state.audit))
	for i, e := range s.state.audit {
		out[i] = *e
	}
	return out
}

// AllNotifications returns a copy of every committed notification.
func (s *MemoryStore) AllNotifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.state.notifications))
	for i, n := range s.state.notifications {
		out[i] = *n
	}
	return out
}

type memRepositories struct {
	st   func() *memState
	lock func() func()
	now  func() time.Time
}

func (r memRepositories) Registrations() RegistrationRepository { return memRegistrationRepo{r} }
func (r memRepositories) Payments() PaymentRepository           { return memPaymentRepo{r} }
func (r memRepositories) Tournaments() TournamentRepository     { return memTournamentRepo{r} }
func (r memRepositories) Users() UserRepository                 { return memUserRepo{r} }
func (r memRepositories) Audit() AuditRepository                { return memAuditRepo{r} }
func (r memRepositories) Notifications() NotificationRepository { return memNotificationRepo{r} }

type memRegistrationRepo struct{ memRepositories }

func (r memRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	defer r.lock()()
	st := r.st()
	if _, ok := st.tournaments[reg.TournamentID]; !ok {
		return ErrTournamentNotFound
	}
	if _, ok := st.categories[reg.CategoryID]; !ok {
		return ErrCategoryNotFound
	}
	if _, ok := st.users[reg.UserID]; !ok {
		return ErrUserNotFound
	}
	if findActive(st, reg.TournamentID, reg.CategoryID, reg.UserID) != nil {
		return ErrRegistrationConflict
	}
	st.nextRegID++
	reg.ID = st.nextRegID
	reg.CreatedAt = r.now()
	reg.UpdatedAt = reg.CreatedAt
	st.registrations[reg.ID] = reg.Clone()
	return nil
}

func (r memRegistrationRepo) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	defer r.lock()()
	reg, ok := r.st().registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return reg.Clone(), nil
}

func findActive(st *memState, tournamentID, categoryID, userID int) *models.Registration {
	for _, reg := range st.registrations {
		if reg.TournamentID == tournamentID && reg.CategoryID == categoryID && reg.UserID == userID &&
			reg.Status != models.RegistrationRejected && reg.Status != models.RegistrationCancelled {
			return reg
		}
	}
	return nil
}

func (r memRegistrationRepo) FindActive(ctx context.Context, tournamentID, categoryID, userID int) (*models.Registration, error) {
	defer r.lock()()
	reg := findActive(r.st(), tournamentID, categoryID, userID)
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}
	return reg.Clone(), nil
}

func (r memRegistrationRepo) Update(ctx context.Context, reg *models.Registration, guard StatusGuard) error {
	defer r.lock()()
	current, ok := r.st().registrations[reg.ID]
	if !ok {
		return ErrRegistrationNotFound
	}
	if current.Status != guard.Status || !sameRefundStatus(current.RefundStatus, guard.RefundStatus) {
		return ErrRegistrationStatusConflict
	}
	reg.UpdatedAt = r.now()
	next := reg.Clone()
	// Identity and amount columns are immutable, as in the SQL update.
	next.TournamentID, next.CategoryID, next.UserID = current.TournamentID, current.CategoryID, current.UserID
	next.AmountTotal, next.CreatedAt = current.AmountTotal, current.CreatedAt
	r.st().registrations[reg.ID] = next
	return nil
}

func sameRefundStatus(a, b *models.RefundStatus) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r memRegistrationRepo) ListByTournament(ctx context.Context, tournamentID int, statuses []models.RegistrationStatus) ([]*models.Registration, error) {
	defer r.lock()()
	out := make([]*models.Registration, 0)
	for _, reg := range r.st().registrations {
		if reg.TournamentID != tournamentID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, reg.Status) {
			continue
		}
		out = append(out, reg.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPaymentRepo struct{ memRepositories }

func (r memPaymentRepo) GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentPayment, error) {
	defer r.lock()()
	p, ok := r.st().payments[tournamentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return p.Clone(), nil
}

// GetForUpdate needs no row lock: a transaction already owns the whole store.
func (r memPaymentRepo) GetForUpdate(ctx context.Context, tournamentID int) (*models.TournamentPayment, error) {
	return r.GetByTournament(ctx, tournamentID)
}

func (r memPaymentRepo) EnsureExists(ctx context.Context, p *models.TournamentPayment) error {
	defer r.lock()()
	st := r.st()
	if _, ok := st.payments[p.TournamentID]; ok {
		return nil
	}
	st.nextPaymentID++
	c := p.Clone()
	c.ID = st.nextPaymentID
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	st.payments[p.TournamentID] = c
	return nil
}

func (r memPaymentRepo) Save(ctx context.Context, p *models.TournamentPayment) error {
	defer r.lock()()
	current, ok := r.st().payments[p.TournamentID]
	if !ok {
		return ErrPaymentNotFound
	}
	// Mirrors the SQL update: only totals and amounts are written.
	next := current.Clone()
	next.TotalCollected = p.TotalCollected
	next.TotalRegistrations = p.TotalRegistrations
	next.PlatformFeeAmount = p.PlatformFeeAmount
	next.OrganizerShare = p.OrganizerShare
	next.Installment1.Amount = p.Installment1.Amount
	next.Installment2.Amount = p.Installment2.Amount
	next.UpdatedAt = r.now()
	r.st().payments[p.TournamentID] = next
	return nil
}

func (r memPaymentRepo) MarkInstallmentPaid(ctx context.Context, tournamentID, index int, paidAt time.Time, paidBy int, notes *string) error {
	if index != 1 && index != 2 {
		return ErrInvalidInstallment
	}
	defer r.lock()()
	p, ok := r.st().payments[tournamentID]
	if !ok {
		return ErrPaymentNotFound
	}
	inst := p.Installment(index)
	if inst.IsPaid() {
		return ErrInstallmentAlreadyPaid
	}
	inst.Status = models.InstallmentPaid
	inst.PaidAt = &paidAt
	inst.PaidBy = &paidBy
	if notes != nil {
		n := *notes
		inst.Notes = &n
	}
	p.UpdatedAt = paidAt
	return nil
}

func (r memPaymentRepo) FreezePayouts(ctx context.Context, tournamentID int, at time.Time) error {
	defer r.lock()()
	p, ok := r.st().payments[tournamentID]
	if !ok {
		return ErrPaymentNotFound
	}
	p.PayoutsFrozen = true
	if p.FrozenAt == nil {
		p.FrozenAt = &at
	}
	return nil
}

func (r memPaymentRepo) ListPending(ctx context.Context, filter models.InstallmentFilter) ([]*models.TournamentPayment, error) {
	defer r.lock()()
	out := make([]*models.TournamentPayment, 0)
	for _, p := range r.st().payments {
		if p.PayoutsFrozen {
			continue
		}
		i1, i2 := !p.Installment1.IsPaid(), !p.Installment2.IsPaid()
		switch {
		case filter == models.FilterInstallment1 && !i1,
			filter == models.FilterInstallment2 && !i2,
			!i1 && !i2:
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TournamentID < out[j].TournamentID })
	return out, nil
}

type memTournamentRepo struct{ memRepositories }

func (r memTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	defer r.lock()()
	t, ok := r.st().tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r memTournamentRepo) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r memTournamentRepo) GetCategory(ctx context.Context, tournamentID, categoryID int) (*models.Category, error) {
	defer r.lock()()
	c, ok := r.st().categories[categoryID]
	if !ok || c.TournamentID != tournamentID {
		return nil, ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

func (r memTournamentRepo) UpdateStatus(ctx context.Context, id int, from, to models.TournamentStatus, at time.Time) error {
	defer r.lock()()
	t, ok := r.st().tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	if t.Status != from {
		return ErrTournamentStatusConflict
	}
	t.Status = to
	if to == models.TournamentCancelled {
		t.CancelledAt = &at
	}
	return nil
}

func (r memTournamentRepo) MarkFanOutCompleted(ctx context.Context, id int, at time.Time) error {
	defer r.lock()()
	t, ok := r.st().tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.FanOutCompletedAt = &at
	return nil
}

func (r memTournamentRepo) ListPendingFanOut(ctx context.Context) ([]*models.Tournament, error) {
	defer r.lock()()
	var out []*models.Tournament
	for _, t := range r.st().tournaments {
		if t.Status == models.TournamentCancelled && t.FanOutCompletedAt == nil {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTournamentRepo) RiskSnapshot(ctx context.Context, id int, recentSince time.Time) (*models.RiskSnapshot, error) {
	defer r.lock()()
	st := r.st()
	t, ok := st.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	snap := &models.RiskSnapshot{TournamentID: id, Status: t.Status, TotalRevenue: decimal.Zero}
	for _, reg := range st.registrations {
		if reg.TournamentID != id {
			continue
		}
		if reg.Status == models.RegistrationConfirmed {
			snap.ConfirmedRegistrations++
			snap.TotalRevenue = snap.TotalRevenue.Add(reg.AmountTotal)
		}
		if reg.Status != models.RegistrationRejected && !reg.CreatedAt.Before(recentSince) {
			snap.RecentRegistrations++
		}
	}
	return snap, nil
}

type memUserRepo struct{ memRepositories }

func (r memUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	defer r.lock()()
	u, ok := r.st().users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

type memAuditRepo struct{ memRepositories }

func (r memAuditRepo) Append(ctx context.Context, e *models.AuditLog) error {
	defer r.lock()()
	c := *e
	c.Details = slices.Clone(e.Details)
	st := r.st()
	st.audit = append(st.audit, &c)
	return nil
}

func (r memAuditRepo) LastDigest(ctx context.Context, entityType models.AuditEntityType, entityID string) (string, error) {
	defer r.lock()()
	audit := r.st().audit
	for i := len(audit) - 1; i >= 0; i-- {
		if audit[i].EntityType == entityType && audit[i].EntityID == entityID {
			return audit[i].Digest, nil
		}
	}
	return "", nil
}

func (r memAuditRepo) ListByEntity(ctx context.Context, entityType models.AuditEntityType, entityID string) ([]*models.AuditLog, error) {
	defer r.lock()()
	out := make([]*models.AuditLog, 0)
	for _, e := range r.st().audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

type memNotificationRepo struct{ memRepositories }

func (r memNotificationRepo) Enqueue(ctx context.Context, n *models.Notification) error {
	defer r.lock()()
	c := *n
	st := r.st()
	st.notifications = append(st.notifications, &c)
	return nil
}

func (r memNotificationRepo) ListByUser(ctx context.Context, userID int, limit int) ([]*models.Notification, error) {
	defer r.lock()()
	if limit <= 0 {
		limit = 50
	}
	out := make([]*models.Notification, 0)
	all := r.st().notifications
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].UserID == userID {
			c := *all[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
