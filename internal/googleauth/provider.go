// Package googleauth exchanges authorization codes for calendar credentials.
//
// It implements only the leg the assistant needs: building the consent URL
// and trading the pasted code for tokens. Token refresh is the remote
// calendar's concern, not ours.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sadrozzy/Assistant-AI/internal/storage"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	calendarScope   = "https://www.googleapis.com/auth/calendar"

	httpTimeout  = 10 * time.Second
	maxErrorBody = int64(1 << 20) // 1 MiB
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthURL/TokenURL override the Google endpoints; used by tests.
	AuthURL    string
	TokenURL   string
	HTTPClient *http.Client
}

type Provider struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Provider {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	return &Provider{cfg: cfg, http: client}
}

// Enabled reports whether an OAuth client is configured at all.
func (p *Provider) Enabled() bool {
	return p != nil && p.cfg.ClientID != "" && p.cfg.ClientSecret != "" && p.cfg.RedirectURI != ""
}

// AuthURL builds the consent URL the user opens in a browser. Offline
// access with forced consent keeps the refresh token coming back.
func (p *Provider) AuthURL() string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", calendarScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("include_granted_scopes", "true")
	return p.cfg.AuthURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Exchange trades an authorization code for calendar credentials.
func (p *Provider) Exchange(ctx context.Context, code string) (storage.Credentials, error) {
	form := url.Values{}
	form.Set("code", strings.TrimSpace(code))
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return storage.Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return storage.Credentials{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return storage.Credentials{}, fmt.Errorf("token exchange: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return storage.Credentials{}, fmt.Errorf("token exchange: decode: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return storage.Credentials{}, fmt.Errorf("token exchange: incomplete grant (offline access not granted?)")
	}

	return storage.Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
