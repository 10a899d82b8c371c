package auth

import (
	"context"
	"sync"
	"time"

	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/queue"
	"github.com/openlearn/auth-service/internal/repository"
	"github.com/openlearn/auth-service/internal/utils"
)

// In-memory store fakes mirroring the repository contracts, including the
// sentinel errors and the atomicity of Consume.

type memUserStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{nextID: 1, users: make(map[uint64]model.User)}
}

func (s *memUserStore) Create(_ context.Context, u *model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	id := s.nextID
	s.nextID++
	cp := *u
	cp.ID = id
	s.users[id] = cp
	return id, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) GetByProvider(_ context.Context, provider, providerID string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *memUserStore) LinkProvider(_ context.Context, id uint64, provider, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Provider = provider
	u.ProviderID = providerID
	if u.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		u.EmailVerifiedAt = &now
	}
	s.users[id] = u
	return nil
}

func (s *memUserStore) SetEmailVerified(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &at
	}
	s.users[id] = u
	return nil
}

func (s *memUserStore) delete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

type memTokenStore struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{rows: make(map[string]*model.RefreshToken)}
}

func (s *memTokenStore) Store(_ context.Context, userID uint64, jti string, exp time.Time, ua, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[jti] = &model.RefreshToken{UserID: userID, JTI: jti, ExpiresAt: exp, UserAgent: ua, IPAddress: ip, CreatedAt: time.Now().UTC()}
	return nil
}

// Consume mirrors the SQL conditional UPDATE: the check and the revocation
// happen under one critical section.
func (s *memTokenStore) Consume(_ context.Context, jti string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[jti]
	if !ok || row.RevokedAt != nil || time.Now().UTC().After(row.ExpiresAt) {
		return 0, repository.ErrTokenNotFound
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	return row.UserID, nil
}

func (s *memTokenStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[jti]; ok && row.RevokedAt == nil {
		now := time.Now().UTC()
		row.RevokedAt = &now
	}
	return nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
		}
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for jti, row := range s.rows {
		if row.RevokedAt != nil || now.After(row.ExpiresAt) {
			delete(s.rows, jti)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) activeCount(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil && now.Before(row.ExpiresAt) {
			n++
		}
	}
	return n
}

type memActionStore struct {
	mu   sync.Mutex
	rows map[string]model.ActionToken
}

func newMemActionStore() *memActionStore {
	return &memActionStore{rows: make(map[string]model.ActionToken)}
}

func (s *memActionStore) Create(_ context.Context, userID uint64, purpose string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, row := range s.rows {
		if row.UserID == userID && row.Purpose == purpose {
			delete(s.rows, tok)
		}
	}
	tok, err := utils.RandomHex(32)
	if err != nil {
		return "", err
	}
	s.rows[tok] = model.ActionToken{Token: tok, UserID: userID, Purpose: purpose, ExpiresAt: time.Now().UTC().Add(ttl)}
	return tok, nil
}

func (s *memActionStore) Consume(_ context.Context, token, purpose string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[token]
	if !ok || row.Purpose != purpose {
		return 0, repository.ErrActionTokenInvalid
	}
	delete(s.rows, token)
	if time.Now().UTC().After(row.ExpiresAt) {
		return 0, repository.ErrActionTokenInvalid
	}
	return row.UserID, nil
}

func (s *memActionStore) lastTokenFor(userID uint64, purpose string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, row := range s.rows {
		if row.UserID == userID && row.Purpose == purpose {
			return tok
		}
	}
	return ""
}

// memMail records published events; optionally fails every publish.
type memMail struct {
	mu     sync.Mutex
	events []queue.MailEvent
	fail   bool
}

func (m *memMail) PublishMail(_ context.Context, ev queue.MailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memMail) sent() []queue.MailEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.MailEvent, len(m.events))
	copy(out, m.events)
	return out
}
