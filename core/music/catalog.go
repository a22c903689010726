package music

import "context"

type (
	// Track is a song as described by the external catalog.
	Track struct {
		RefID      string `json:"ref_id"`
		Title      string `json:"title"`
		Artist     string `json:"artist"`
		Album      string `json:"album"`
		PreviewURL string `json:"preview_url"`
	}

	// TokenSet is the result of an authorization-code exchange.
	TokenSet struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"` // seconds
	}

	// CatalogService is the remote music-catalog collaborator. All calls are
	// black-box and bounded by the given context; retries belong to the
	// implementation, not to callers.
	CatalogService interface {
		// ClientCredentialsToken returns an app-level token, cached until
		// near-expiry.
		ClientCredentialsToken(ctx context.Context) (string, error)
		ExchangeAuthCode(ctx context.Context, code string) (TokenSet, error)
		Search(ctx context.Context, query, token string) ([]Track, error)
		// FetchProfile returns the remote catalog user id for a token.
		FetchProfile(ctx context.Context, token string) (string, error)
		AuthCodeURL(scope, state string) string
	}
)
