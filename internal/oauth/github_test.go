package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newGitHubFixture(t *testing.T, handler http.Handler) *GitHubProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewGitHubProvider("client-id", "client-secret", "user:email", "https://postgres.garden/auth/github/callback")
	provider.WithEndpoints(server.URL+"/authorize", server.URL+"/token", server.URL, server.Client())
	return provider
}

func TestGitHubAuthorizeURL(t *testing.T) {
	provider := NewGitHubProvider("client-id", "secret", "user:email", "https://postgres.garden/auth/github/callback")

	raw := provider.AuthorizeURL("state-token")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthorizeURL produced an unparseable URL: %v", err)
	}
	query := parsed.Query()
	if query.Get("client_id") != "client-id" || query.Get("state") != "state-token" {
		t.Fatalf("unexpected query: %v", query)
	}
	if query.Get("redirect_uri") != "https://postgres.garden/auth/github/callback" {
		t.Fatalf("unexpected redirect_uri: %q", query.Get("redirect_uri"))
	}
	if query.Get("scope") != "user:email" {
		t.Fatalf("unexpected scope: %q", query.Get("scope"))
	}
}

func TestGitHubExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		if r.FormValue("code") != "good-code" || r.FormValue("client_secret") != "client-secret" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_abc","token_type":"bearer","scope":"user:email"}`))
	})
	provider := newGitHubFixture(t, mux)

	token, err := provider.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}
	if token.AccessToken != "gho_abc" || token.TokenType != "bearer" {
		t.Fatalf("unexpected token set: %+v", token)
	}
}

func TestGitHubExchangeRejectedCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
	})
	provider := newGitHubFixture(t, mux)

	if _, err := provider.Exchange(context.Background(), "stale"); !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}
}

func TestGitHubExchangeEmptyToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	provider := newGitHubFixture(t, mux)

	if _, err := provider.Exchange(context.Background(), "whatever"); !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode for an empty grant, got %v", err)
	}
}

func TestGitHubFetchProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":12345,"login":"DanielFGray","name":"Daniel","email":"Daniel@Example.COM","avatar_url":"https://avatars.example/u/12345"}`))
	})
	provider := newGitHubFixture(t, mux)

	identifier, profile, err := provider.FetchProfile(context.Background(), &TokenSet{AccessToken: "gho_abc"})
	if err != nil {
		t.Fatalf("FetchProfile returned error: %v", err)
	}
	if identifier != "12345" {
		t.Fatalf("the numeric account id is the identifier, got %q", identifier)
	}
	if profile.Login != "DanielFGray" || profile.Name != "Daniel" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.Email != "daniel@example.com" {
		t.Fatalf("the profile email must be lowercased, got %q", profile.Email)
	}
}

func TestGitHubFetchEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"email":"Old@Example.com","verified":false,"primary":false},
			{"email":"Daniel@Example.com","verified":true,"primary":true}
		]`))
	})
	provider := newGitHubFixture(t, mux)

	emails, err := provider.FetchEmails(context.Background(), &TokenSet{AccessToken: "gho_abc"})
	if err != nil {
		t.Fatalf("FetchEmails returned error: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(emails))
	}
	if emails[1].Address != "daniel@example.com" || !emails[1].Verified || !emails[1].Primary {
		t.Fatalf("unexpected address entry: %+v", emails[1])
	}
}

func TestGitHubAPIErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})
	provider := newGitHubFixture(t, mux)

	if _, _, err := provider.FetchProfile(context.Background(), &TokenSet{AccessToken: "revoked"}); err == nil {
		t.Fatalf("expected an error for a 401 from the api")
	}
}
