package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jorgead/ritmatiza/core"
)

func newTestService(t *testing.T, handler http.Handler) (*service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewService(&core.Config{
		Spotify: core.SpotifyConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "http://localhost/callback",
			Timeout:      2 * time.Second,
		},
	})
	svc.accountsURL = srv.URL
	svc.apiURL = srv.URL
	return svc, srv
}

func TestService_ClientCredentialsToken_cachesUntilNearExpiry(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Basic ") {
			t.Errorf("token request auth = %q, want Basic", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	tok, err := svc.ClientCredentialsToken(ctx)
	if err != nil {
		t.Fatalf("ClientCredentialsToken() failed: %v", err)
	}
	if tok != "tok" {
		t.Errorf("token = %q, want tok", tok)
	}

	// second call is served from the cache
	if _, err = svc.ClientCredentialsToken(ctx); err != nil {
		t.Fatalf("ClientCredentialsToken() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}

	// a token inside the expiry margin is refreshed
	svc.appTokenExp = time.Now().Add(-time.Second)
	if _, err = svc.ClientCredentialsToken(ctx); err != nil {
		t.Fatalf("ClientCredentialsToken() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("token endpoint called %d times after expiry, want 2", calls)
	}
}

func TestService_ClientCredentialsToken_remoteFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	svc, _ := newTestService(t, mux)

	if _, err := svc.ClientCredentialsToken(context.Background()); err == nil {
		t.Error("ClientCredentialsToken() should fail on a non-200 response")
	}
}

func TestService_ExchangeAuthCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.PostForm.Get("code"); got != "the-code" {
			t.Errorf("code = %q, want the-code", got)
		}
		if got := r.PostForm.Get("redirect_uri"); got != "http://localhost/callback" {
			t.Errorf("redirect_uri = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "acc", "refresh_token": "ref", "expires_in": 3600,
		})
	})
	svc, _ := newTestService(t, mux)

	tokens, err := svc.ExchangeAuthCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("ExchangeAuthCode() failed: %v", err)
	}
	if tokens.AccessToken != "acc" || tokens.RefreshToken != "ref" || tokens.ExpiresIn != 3600 {
		t.Errorf("ExchangeAuthCode() = %+v", tokens)
	}
}

func TestService_Search(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("search auth = %q, want Bearer tok", got)
		}
		q := r.URL.Query()
		if q.Get("q") != "daft punk" || q.Get("type") != "track" || q.Get("limit") != "10" {
			t.Errorf("search query = %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": map[string]interface{}{
				"items": []map[string]interface{}{
					{
						"id":      "trk1",
						"name":    "One More Time",
						"artists": []map[string]string{{"name": "Daft Punk"}},
						"album":   map[string]string{"name": "Discovery"},
					},
				},
			},
		})
	})
	svc, _ := newTestService(t, mux)

	tracks, err := svc.Search(context.Background(), "daft punk", "tok")
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Search() returned %d tracks, want 1", len(tracks))
	}
	got := tracks[0]
	if got.RefID != "trk1" || got.Title != "One More Time" || got.Artist != "Daft Punk" || got.Album != "Discovery" {
		t.Errorf("Search() track = %+v", got)
	}
}

func TestService_FetchProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "spotify-user"})
	})
	svc, _ := newTestService(t, mux)

	id, err := svc.FetchProfile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchProfile() failed: %v", err)
	}
	if id != "spotify-user" {
		t.Errorf("FetchProfile() = %q, want spotify-user", id)
	}
}

func TestService_AuthCodeURL(t *testing.T) {
	svc, _ := newTestService(t, http.NewServeMux())

	raw := svc.AuthCodeURL("some-scope", "state123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "client-id" ||
		q.Get("scope") != "some-scope" || q.Get("state") != "state123" {
		t.Errorf("AuthCodeURL() = %q", raw)
	}
}
