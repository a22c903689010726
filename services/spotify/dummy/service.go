package dummyspotify

import (
	"context"
	"net/url"
	"sync"

	"github.com/jorgead/ritmatiza/core/music"
)

// Service is an in-memory music.CatalogService for tests. Set Err to make
// every remote call fail.
type Service struct {
	mu     sync.Mutex
	Err    error
	Tracks []music.Track
	Tokens music.TokenSet

	TokenCalls  int
	SearchCalls int
}

var _ music.CatalogService = (*Service)(nil)

func NewService() *Service {
	return &Service{Tokens: music.TokenSet{AccessToken: "app-token", RefreshToken: "refresh-token", ExpiresIn: 3600}}
}

func (svc *Service) ClientCredentialsToken(ctx context.Context) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.TokenCalls++
	if svc.Err != nil {
		return "", svc.Err
	}
	return svc.Tokens.AccessToken, nil
}

func (svc *Service) ExchangeAuthCode(ctx context.Context, code string) (music.TokenSet, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.Err != nil {
		return music.TokenSet{}, svc.Err
	}
	return svc.Tokens, nil
}

func (svc *Service) Search(ctx context.Context, query, token string) ([]music.Track, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.SearchCalls++
	if svc.Err != nil {
		return nil, svc.Err
	}
	return svc.Tracks, nil
}

func (svc *Service) FetchProfile(ctx context.Context, token string) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.Err != nil {
		return "", svc.Err
	}
	return "dummy-profile", nil
}

func (svc *Service) AuthCodeURL(scope, state string) string {
	q := url.Values{"scope": {scope}, "state": {state}}
	return "https://accounts.example.com/authorize?" + q.Encode()
}
