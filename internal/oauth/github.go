package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

const (
	githubAuthorizeURL = "https://github.com/login/oauth/authorize"
	githubTokenURL     = "https://github.com/login/oauth/access_token"
	githubAPIURL       = "https://api.github.com"
)

// GitHubProvider implements Provider against the GitHub OAuth and REST APIs.
type GitHubProvider struct {
	clientID     string
	clientSecret string
	scopes       string
	redirectURL  string

	authorizeURL string
	tokenURL     string
	apiURL       string
	httpClient   *http.Client
}

// NewGitHubProvider constructs a GitHub provider. redirectURL is the absolute
// callback URL registered with the OAuth app.
func NewGitHubProvider(clientID, clientSecret, scopes, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		redirectURL:  redirectURL,
		authorizeURL: githubAuthorizeURL,
		tokenURL:     githubTokenURL,
		apiURL:       githubAPIURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoints overrides the upstream URLs, used in tests.
func (p *GitHubProvider) WithEndpoints(authorizeURL, tokenURL, apiURL string, client *http.Client) {
	if authorizeURL != "" {
		p.authorizeURL = authorizeURL
	}
	if tokenURL != "" {
		p.tokenURL = tokenURL
	}
	if apiURL != "" {
		p.apiURL = apiURL
	}
	if client != nil {
		p.httpClient = client
	}
}

// Name implements Provider.
func (p *GitHubProvider) Name() string { return "github" }

// AuthorizeURL implements Provider.
func (p *GitHubProvider) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", p.clientID)
	query.Set("redirect_uri", p.redirectURL)
	query.Set("scope", p.scopes)
	query.Set("state", state)
	return p.authorizeURL + "?" + query.Encode()
}

// Exchange implements Provider.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", p.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange code: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Scope       string `json:"scope"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.Error != "" || payload.AccessToken == "" {
		return nil, ErrBadCode
	}

	return &TokenSet{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Scope:       payload.Scope,
	}, nil
}

// FetchProfile implements Provider. The numeric GitHub account id is the
// stable identifier; logins can be renamed.
func (p *GitHubProvider) FetchProfile(ctx context.Context, token *TokenSet) (string, domain.ProviderProfile, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := p.apiGet(ctx, token, "/user", &payload); err != nil {
		return "", domain.ProviderProfile{}, err
	}

	profile := domain.ProviderProfile{
		Username:  payload.Login,
		Login:     payload.Login,
		Name:      payload.Name,
		Email:     strings.ToLower(payload.Email),
		AvatarURL: payload.AvatarURL,
	}
	return strconv.FormatInt(payload.ID, 10), profile, nil
}

// FetchEmails implements Provider.
func (p *GitHubProvider) FetchEmails(ctx context.Context, token *TokenSet) ([]ProviderEmail, error) {
	var payload []struct {
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
		Primary  bool   `json:"primary"`
	}
	if err := p.apiGet(ctx, token, "/user/emails", &payload); err != nil {
		return nil, err
	}

	emails := make([]ProviderEmail, 0, len(payload))
	for _, entry := range payload {
		emails = append(emails, ProviderEmail{
			Address:  strings.ToLower(entry.Email),
			Verified: entry.Verified,
			Primary:  entry.Primary,
		})
	}
	return emails, nil
}

func (p *GitHubProvider) apiGet(ctx context.Context, token *TokenSet, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("build api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call github api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode github api response: %w", err)
	}
	return nil
}
