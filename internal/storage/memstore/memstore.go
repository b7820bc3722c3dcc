package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// Store is an in-memory implementation of the storage interfaces. All
// conditional transitions happen under a single mutex, which makes every
// mutation linearizable. Used as the default driver and in tests.
type Store struct {
	mu       sync.Mutex
	chargers map[string]*models.Charger
	sessions map[string]*models.Session
	payments map[string]*models.Payment
	accounts map[string]*models.Account
}

// New returns an empty store.
func New() *Store {
	return &Store{
		chargers: make(map[string]*models.Charger),
		sessions: make(map[string]*models.Session),
		payments: make(map[string]*models.Payment),
		accounts: make(map[string]*models.Account),
	}
}

// Chargers exposes the charger store view.
func (s *Store) Chargers() storage.ChargerStore { return &chargerStore{s} }

// Sessions exposes the session store view.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{s} }

// Payments exposes the payment store view.
func (s *Store) Payments() storage.PaymentStore { return &paymentStore{s} }

// Accounts exposes the wallet account store view.
func (s *Store) Accounts() storage.AccountStore { return &accountStore{s} }

// PutCharger seeds or replaces a charger record.
func (s *Store) PutCharger(charger models.Charger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := charger
	s.chargers[c.ID] = &c
}

// PutAccount seeds or replaces a wallet account.
func (s *Store) PutAccount(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := account
	s.accounts[a.ID] = &a
}

type chargerStore struct{ s *Store }

func (cs *chargerStore) Get(ctx context.Context, id string) (*models.Charger, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.chargers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCharger(c), nil
}

func (cs *chargerStore) TransitionStatus(ctx context.Context, id string, from, to models.ChargerStatus) (*models.Charger, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.chargers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if c.Status != from {
		return nil, storage.ErrConflict
	}
	c.Status = to
	if to == models.ChargerAvailable {
		c.FaultReason = ""
	}
	c.UpdatedAt = time.Now().UTC()
	return cloneCharger(c), nil
}

func (cs *chargerStore) SetStatus(ctx context.Context, id string, to models.ChargerStatus, reason string) (*models.Charger, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.chargers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Status = to
	c.FaultReason = reason
	c.UpdatedAt = time.Now().UTC()
	return cloneCharger(c), nil
}

type sessionStore struct{ s *Store }

func (ss *sessionStore) Create(ctx context.Context, session *models.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if _, exists := ss.s.sessions[session.ID]; exists {
		return storage.ErrConflict
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	ss.s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (ss *sessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (ss *sessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	for _, sess := range ss.s.sessions {
		if sess.Token == token {
			return cloneSession(sess), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (ss *sessionStore) ActiveByCharger(ctx context.Context, chargerID string) (*models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	for _, sess := range ss.s.sessions {
		if sess.ChargerID == chargerID && sess.Status == models.SessionActive {
			return cloneSession(sess), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (ss *sessionStore) Complete(ctx context.Context, id string, endTime time.Time, energyKWh, pricePerKWh, totalCost float64, endSoc *int) (*models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if sess.Status != models.SessionActive {
		return nil, storage.ErrConflict
	}
	end := endTime
	sess.Status = models.SessionCompleted
	sess.EndTime = &end
	sess.EnergyKWh = energyKWh
	sess.PricePerKWh = pricePerKWh
	sess.TotalCost = totalCost
	sess.EndSoc = endSoc
	sess.UpdatedAt = time.Now().UTC()
	return cloneSession(sess), nil
}

func (ss *sessionStore) Cancel(ctx context.Context, id string, endTime time.Time) (*models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if sess.Status != models.SessionActive {
		return nil, storage.ErrConflict
	}
	end := endTime
	sess.Status = models.SessionCancelled
	sess.EndTime = &end
	sess.UpdatedAt = time.Now().UTC()
	return cloneSession(sess), nil
}

func (ss *sessionStore) SetPaymentRef(ctx context.Context, id, paymentID string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.PaymentID = paymentID
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (ss *sessionStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	var out []models.Session
	for _, sess := range ss.s.sessions {
		if sess.AccountID != nil && *sess.AccountID == accountID {
			out = append(out, *cloneSession(sess))
		}
	}
	sortSessions(out)
	return capSessions(out, limit), nil
}

func (ss *sessionStore) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	var out []models.Session
	for _, sess := range ss.s.sessions {
		if sess.Status == models.SessionActive {
			out = append(out, *cloneSession(sess))
		}
	}
	sortSessions(out)
	return capSessions(out, limit), nil
}

type paymentStore struct{ s *Store }

func (ps *paymentStore) CreateForSession(ctx context.Context, payment *models.Payment) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	for _, p := range ps.s.payments {
		if p.SessionID == payment.SessionID && p.Status == models.PaymentCompleted {
			return storage.ErrConflict
		}
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	ps.s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (ps *paymentStore) GetBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	var latest *models.Payment
	for _, p := range ps.s.payments {
		if p.SessionID != sessionID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return clonePayment(latest), nil
}

func (ps *paymentStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Payment, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	var out []models.Payment
	for _, p := range ps.s.payments {
		if p.AccountID != nil && *p.AccountID == accountID {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type accountStore struct{ s *Store }

func (as *accountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	a, ok := as.s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (as *accountStore) Debit(ctx context.Context, id string, amount float64) (*models.Account, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	a, ok := as.s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if a.Balance < amount {
		return nil, storage.ErrInsufficientFunds
	}
	a.Balance -= amount
	a.UpdatedAt = time.Now().UTC()
	clone := *a
	return &clone, nil
}

func (as *accountStore) Credit(ctx context.Context, id string, amount float64) (*models.Account, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	a, ok := as.s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
	clone := *a
	return &clone, nil
}

func cloneCharger(c *models.Charger) *models.Charger {
	clone := *c
	return &clone
}

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	if s.AccountID != nil {
		id := *s.AccountID
		clone.AccountID = &id
	}
	if s.EndTime != nil {
		t := *s.EndTime
		clone.EndTime = &t
	}
	if s.StartSoc != nil {
		v := *s.StartSoc
		clone.StartSoc = &v
	}
	if s.EndSoc != nil {
		v := *s.EndSoc
		clone.EndSoc = &v
	}
	return &clone
}

func clonePayment(p *models.Payment) *models.Payment {
	clone := *p
	if p.AccountID != nil {
		id := *p.AccountID
		clone.AccountID = &id
	}
	return &clone
}

func sortSessions(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartTime.After(sessions[j].StartTime) })
}

func capSessions(sessions []models.Session, limit int) []models.Session {
	if limit > 0 && len(sessions) > limit {
		return sessions[:limit]
	}
	return sessions
}
