package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/music"
)

const (
	accountsBaseURL = "https://accounts.spotify.com"
	apiBaseURL      = "https://api.spotify.com/v1"

	searchLimit = 10

	// tokens are refreshed this long before their actual expiry so a cached
	// token never dies mid-request.
	expiryMargin = 5 * time.Minute
)

type service struct {
	client       *http.Client
	clientID     string
	clientSecret string
	redirectURI  string

	accountsURL string
	apiURL      string

	mut         sync.Mutex
	appToken    string
	appTokenExp time.Time
}

var _ music.CatalogService = (*service)(nil) // interface compliance check

func NewService(conf *core.Config) *service {
	return &service{
		client:       &http.Client{Timeout: conf.Spotify.Timeout},
		clientID:     conf.Spotify.ClientID,
		clientSecret: conf.Spotify.ClientSecret,
		redirectURI:  conf.Spotify.RedirectURI,
		accountsURL:  accountsBaseURL,
		apiURL:       apiBaseURL,
	}
}

func (svc *service) basicAuth() string {
	creds := svc.clientID + ":" + svc.clientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (svc *service) requestToken(ctx context.Context, form url.Values) (tokenResponse, error) {
	var tr tokenResponse

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, svc.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return tr, errors.Wrap(err, "creating token request")
	}
	req.Header.Set("Authorization", svc.basicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := svc.client.Do(req)
	if err != nil {
		return tr, errors.Wrap(err, "requesting token")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return tr, errors.Wrap(err, "reading token response")
	}
	if resp.StatusCode != http.StatusOK {
		return tr, errors.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}
	if err = json.Unmarshal(body, &tr); err != nil {
		return tr, errors.Wrap(err, "decoding token response")
	}
	return tr, nil
}

func (svc *service) ClientCredentialsToken(ctx context.Context) (string, error) {
	svc.mut.Lock()
	defer svc.mut.Unlock()

	if svc.appToken != "" && time.Now().Before(svc.appTokenExp) {
		return svc.appToken, nil
	}

	tr, err := svc.requestToken(ctx, url.Values{"grant_type": {"client_credentials"}})
	if err != nil {
		return "", err
	}
	svc.appToken = tr.AccessToken
	svc.appTokenExp = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)
	return svc.appToken, nil
}

func (svc *service) ExchangeAuthCode(ctx context.Context, code string) (music.TokenSet, error) {
	tr, err := svc.requestToken(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {svc.redirectURI},
	})
	if err != nil {
		return music.TokenSet{}, err
	}
	return music.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

func (svc *service) AuthCodeURL(scope, state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {svc.clientID},
		"redirect_uri":  {svc.redirectURI},
		"scope":         {scope},
		"state":         {state},
	}
	return svc.accountsURL + "/authorize?" + q.Encode()
}

func (svc *service) apiGet(ctx context.Context, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.apiURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "creating api request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling api")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading api response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("api returned %d: %s", resp.StatusCode, body)
	}
	return errors.Wrap(json.Unmarshal(body, out), "decoding api response")
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name string `json:"name"`
			} `json:"album"`
			PreviewURL string `json:"preview_url"`
		} `json:"items"`
	} `json:"tracks"`
}

func (svc *service) Search(ctx context.Context, query, token string) ([]music.Track, error) {
	q := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {fmt.Sprint(searchLimit)},
	}

	var sr searchResponse
	if err := svc.apiGet(ctx, "/search?"+q.Encode(), token, &sr); err != nil {
		return nil, err
	}

	tracks := make([]music.Track, 0, len(sr.Tracks.Items))
	for _, item := range sr.Tracks.Items {
		artists := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			artists = append(artists, a.Name)
		}
		tracks = append(tracks, music.Track{
			RefID:      item.ID,
			Title:      item.Name,
			Artist:     strings.Join(artists, ", "),
			Album:      item.Album.Name,
			PreviewURL: item.PreviewURL,
		})
	}
	return tracks, nil
}

func (svc *service) FetchProfile(ctx context.Context, token string) (string, error) {
	var profile struct {
		ID string `json:"id"`
	}
	if err := svc.apiGet(ctx, "/me", token, &profile); err != nil {
		return "", err
	}
	return profile.ID, nil
}
