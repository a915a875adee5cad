// Package auth manages the OAuth credential pair used for remote API
// access. Refreshes are single-flight: concurrent callers needing a new
// token share one in-flight refresh instead of each hitting the
// authorization endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ExpiryBuffer is the safety margin subtracted from a token's expiry:
// a token inside the buffer is treated as already expired.
const ExpiryBuffer = 5 * time.Minute

// ErrNotInitialized is returned when no credentials have been installed.
var ErrNotInitialized = errors.New("auth: no credentials initialized")

// Credentials is one access/refresh token pair.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// valid reports whether the access token is usable at time t, keeping
// the safety buffer.
func (c Credentials) valid(t time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return t.Before(c.Expiry.Add(-ExpiryBuffer))
}

// Provider performs the remote authorization operations.
type Provider interface {
	ExchangeCode(ctx context.Context, code string) (Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
}

// Manager owns the process-wide token state. It satisfies
// oauth2.TokenSource so the API client can be built directly on it, and
// retry.Refresher so the executor can force a refresh on an
// auth-expired error.
type Manager struct {
	provider Provider

	mu    sync.RWMutex
	creds Credentials

	group singleflight.Group
	now   func() time.Time
}

// NewManager creates a manager backed by the given provider.
func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider, now: time.Now}
}

// Initialize installs credentials, typically loaded from configuration
// or obtained through ExchangeCode at setup time.
func (m *Manager) Initialize(creds Credentials) {
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
}

// ExchangeCode swaps an authorization code for credentials and installs
// them.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (Credentials, error) {
	creds, err := m.provider.ExchangeCode(ctx, code)
	if err != nil {
		return Credentials{}, fmt.Errorf("exchange code: %w", err)
	}
	m.Initialize(creds)
	return creds, nil
}

// GetValidToken returns credentials whose access token is valid for at
// least the expiry buffer, refreshing first when necessary. Callers
// block until the shared refresh resolves.
func (m *Manager) GetValidToken(ctx context.Context) (Credentials, error) {
	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()

	if creds.valid(m.now()) {
		return creds, nil
	}

	if err := m.Refresh(ctx); err != nil {
		return Credentials{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

// Refresh obtains a fresh access token. Concurrent calls share one
// in-flight provider request; on failure every waiter of that round
// receives the same error and may independently retry.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		m.mu.RLock()
		refreshToken := m.creds.RefreshToken
		m.mu.RUnlock()

		if refreshToken == "" {
			return nil, ErrNotInitialized
		}

		fresh, err := m.provider.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		if fresh.RefreshToken == "" {
			// Providers commonly omit the refresh token on renewal.
			fresh.RefreshToken = refreshToken
		}

		m.mu.Lock()
		m.creds = fresh
		m.mu.Unlock()
		return nil, nil
	})
	return err
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	creds, err := m.GetValidToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.Expiry,
		TokenType:    "Bearer",
	}, nil
}
