package gateway

import (
	"context"
	"fmt"
	"sync"
)

// CachedSessions is a SessionProvider that memoizes credentials per account
// and re-runs the login function after Invalidate.
type CachedSessions struct {
	login func(ctx context.Context, accountID int64) (string, error)

	mu     sync.Mutex
	tokens map[int64]string
}

func NewCachedSessions(login func(ctx context.Context, accountID int64) (string, error)) *CachedSessions {
	return &CachedSessions{login: login, tokens: map[int64]string{}}
}

func (c *CachedSessions) Token(ctx context.Context, accountID int64) (string, error) {
	c.mu.Lock()
	tok, ok := c.tokens[accountID]
	c.mu.Unlock()
	if ok {
		return tok, nil
	}
	tok, err := c.login(ctx, accountID)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.tokens[accountID] = tok
	c.mu.Unlock()
	return tok, nil
}

func (c *CachedSessions) Invalidate(accountID int64) {
	c.mu.Lock()
	delete(c.tokens, accountID)
	c.mu.Unlock()
}

// StaticSessions serves fixed access tokens, e.g. from config.
// Invalidate is a no-op: a rejected static token stays rejected, which is
// exactly what cascading deactivation reports to the user.
type StaticSessions map[int64]string

func (s StaticSessions) Token(_ context.Context, accountID int64) (string, error) {
	tok, ok := s[accountID]
	if !ok || tok == "" {
		return "", fmt.Errorf("no session for account %d: %w", accountID, ErrInvalidCredentials)
	}
	return tok, nil
}

func (s StaticSessions) Invalidate(int64) {}
