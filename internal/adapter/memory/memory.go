// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"medreminder/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu          sync.Mutex
	medications map[int64]*domain.Medication
	users       []*domain.User
	sessions    map[string]*domain.Session

	medIDCounter  int64
	userIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		medications: make(map[int64]*domain.Medication),
		sessions:    make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.MedicationRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- MedicationRepository ---

// CreateMedication stores a copy of m under a new ID.
func (db *DB) CreateMedication(ctx context.Context, m domain.Medication) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.medIDCounter++
	stored := m.Clone()
	stored.ID = db.medIDCounter
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	db.medications[stored.ID] = &stored
	return stored.ID, nil
}

// GetMedication returns a copy of the user's medication.
func (db *DB) GetMedication(ctx context.Context, userID, id int64) (*domain.Medication, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, err := db.owned(userID, id)
	if err != nil {
		return nil, err
	}
	c := m.Clone()
	return &c, nil
}

// ListMedications returns copies of the user's medications ordered by ID.
func (db *DB) ListMedications(ctx context.Context, userID int64) ([]domain.Medication, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.Medication, 0)
	for _, m := range db.medications {
		if m.UserID == userID {
			result = append(result, m.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ReplaceSchedule swaps in a new schedule.
func (db *DB) ReplaceSchedule(ctx context.Context, userID, id int64, s domain.Schedule) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, err := db.owned(userID, id)
	if err != nil {
		return err
	}
	m.Schedule = domain.Schedule{
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Times:     append([]domain.TimeOfDay(nil), s.Times...),
	}
	return nil
}

// DeleteMedication removes the medication together with its ledger.
func (db *DB) DeleteMedication(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.owned(userID, id); err != nil {
		return err
	}
	delete(db.medications, id)
	return nil
}

// ApplyOutcomes runs fn on a working copy while holding the store lock and
// swaps the copy in only when fn succeeds.
func (db *DB) ApplyOutcomes(ctx context.Context, userID, id int64, fn func(m *domain.Medication) error) (*domain.Medication, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, err := db.owned(userID, id)
	if err != nil {
		return nil, err
	}
	work := m.Clone()
	if err := fn(&work); err != nil {
		return nil, err
	}
	// Only the ledger is writable through this path.
	m.Taken = work.Taken.Clone()

	out := m.Clone()
	return &out, nil
}

func (db *DB) owned(userID, id int64) (*domain.Medication, error) {
	m, ok := db.medications[id]
	if !ok || m.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	c := *u
	return &c, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
