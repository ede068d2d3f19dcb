// Package nonce issues single-use anti-replay tokens for state-changing
// requests. A nonce is a short-lived JWT bound to the caller's subject;
// consumed ids are remembered until they would have expired anyway.
package nonce

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	audience      = "s3offload-nonce"
	maxRemembered = 100_000
)

var (
	ErrInvalid = errors.New("invalid or expired nonce")
	ErrReplay  = errors.New("nonce already used")
)

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used *expirable.LRU[string, struct{}]
}

func NewManager(secret []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		used:   expirable.NewLRU[string, struct{}](maxRemembered, nil, ttl),
	}
}

// Issue returns a nonce for subject and its expiry.
func (m *Manager) Issue(subject string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, expires, nil
}

// Consume validates the nonce for subject and marks it used.
func (m *Manager) Consume(token, subject string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid || claims.ID == "" {
		return ErrInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.used.Contains(claims.ID) {
		return ErrReplay
	}
	m.used.Add(claims.ID, struct{}{})
	return nil
}
