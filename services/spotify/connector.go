package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core/music"
)

const (
	connectScope = "playlist-modify-public playlist-modify-private"

	// a pending authorization must complete within this window.
	stateTTL = 5 * time.Minute
)

var (
	ErrStateMismatch = errors.New("unknown or expired authorization state")
	ErrNotConnected  = errors.New("no catalog account connected")
)

// Account is a connected catalog account belonging to an admin.
type Account struct {
	ProfileID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Connector drives the authorization-code flow that links an admin's catalog
// account. State nonces and tokens are held in memory only; a restart simply
// requires reconnecting.
type Connector struct {
	catalog music.CatalogService

	mut      sync.Mutex
	states   map[string]time.Time // nonce -> expiry
	accounts map[string]Account   // admin user id -> account
}

func NewConnector(catalog music.CatalogService) *Connector {
	return &Connector{
		catalog:  catalog,
		states:   make(map[string]time.Time),
		accounts: make(map[string]Account),
	}
}

// BeginAuth returns the URL the admin's browser should be sent to, registering
// a one-time state nonce.
func (c *Connector) BeginAuth() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generating state")
	}
	state := hex.EncodeToString(buf)

	c.mut.Lock()
	now := time.Now()
	for s, exp := range c.states {
		if now.After(exp) {
			delete(c.states, s)
		}
	}
	c.states[state] = now.Add(stateTTL)
	c.mut.Unlock()

	return c.catalog.AuthCodeURL(connectScope, state), nil
}

// CompleteAuth consumes the state nonce, exchanges the code and stores the
// resulting account under the admin's id.
func (c *Connector) CompleteAuth(ctx context.Context, adminID, state, code string) (Account, error) {
	c.mut.Lock()
	exp, ok := c.states[state]
	delete(c.states, state)
	c.mut.Unlock()
	if !ok || time.Now().After(exp) {
		return Account{}, ErrStateMismatch
	}

	tokens, err := c.catalog.ExchangeAuthCode(ctx, code)
	if err != nil {
		return Account{}, errors.Wrap(err, "exchanging auth code")
	}
	profileID, err := c.catalog.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return Account{}, errors.Wrap(err, "fetching profile")
	}

	acct := Account{
		ProfileID:    profileID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}
	c.mut.Lock()
	c.accounts[adminID] = acct
	c.mut.Unlock()
	return acct, nil
}

// Account returns the connected account for an admin, or ErrNotConnected.
func (c *Connector) Account(adminID string) (Account, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	acct, ok := c.accounts[adminID]
	if !ok {
		return Account{}, ErrNotConnected
	}
	return acct, nil
}
