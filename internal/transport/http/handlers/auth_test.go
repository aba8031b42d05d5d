package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

const testCookieName = "session"

type authFixture struct {
	router *gin.Engine
	users  *stubUsers
	creds  *stubCredentials
	emails *stubEmails
}

// newAuthFixture wires real services over in-memory stores behind a router
// with the session middleware, so the cookie round-trip is exercised
// end to end.
func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &authFixture{
		users:  newStubUsers(),
		creds:  newStubCredentials(),
		emails: newStubEmails(),
	}

	sessions := usecase.NewSessionService(f.users, newStubLedger(), newStubCache(), nil)
	identity := usecase.NewIdentityService(f.users, f.creds, f.emails, stubUnregistered{}, nopTx{}, sessions, nil, nil)
	registration := usecase.NewRegistrationService(f.users, f.creds, f.emails, nil, nopTx{}, nil, nil)

	r := gin.New()
	r.Use(middleware.SessionAuth(testCookieName, sessions, nil))
	handler := NewAuthHandler(identity, registration, sessions, config.CookieSettings{Name: testCookieName})
	handler.RegisterRoutes(&r.RouterGroup)

	f.router = r
	return f
}

func (f *authFixture) addAccount(t *testing.T, id, username, email, password string, verified bool) {
	t.Helper()
	f.users.add(domain.User{ID: id, Username: username, Role: domain.RoleUser, Verified: verified})
	encoded, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	f.creds.add(domain.UserSecret{UserID: id, PasswordHash: &encoded})
	f.emails.add(domain.UserEmail{
		ID: id + "-email", UserID: id, Address: email,
		Verified: verified, Primary: verified, CreatedAt: time.Now().UTC(),
	})
}

func (f *authFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	t.Fatalf("expected a %s cookie on the response", testCookieName)
	return nil
}

func decodeUserEnvelope(t *testing.T, w *httptest.ResponseRecorder) *UserResponse {
	t.Helper()
	var envelope struct {
		User *UserResponse `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode /me response: %v", err)
	}
	return envelope.User
}

func TestRegisterMeLogoutRoundTrip(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/register",
		gin.H{"username": "alice", "email": "alice@test.com", "password": "Password123!"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register: got status %d, body %s", w.Code, w.Body.String())
	}
	var created UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if created.ID == "" || created.Username != "alice" {
		t.Fatalf("unexpected register body %+v", created)
	}
	cookie := sessionCookie(t, w)
	if cookie.Value == "" {
		t.Fatalf("register must set a session cookie")
	}

	w = f.do(t, http.MethodGet, "/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me: got status %d", w.Code)
	}
	if user := decodeUserEnvelope(t, w); user == nil || user.Username != "alice" {
		t.Fatalf("expected the registered user back, got %+v", user)
	}

	w = f.do(t, http.MethodPost, "/logout", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: got status %d", w.Code)
	}
	var out SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode logout response: %v", err)
	}
	if !out.Success {
		t.Fatalf("logout must report success")
	}
	if cleared := sessionCookie(t, w); cleared.Value != "" {
		t.Fatalf("logout must clear the session cookie")
	}

	w = f.do(t, http.MethodGet, "/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me after logout: got status %d", w.Code)
	}
	if user := decodeUserEnvelope(t, w); user != nil {
		t.Fatalf("a revoked session must read as anonymous, got %+v", user)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/register",
		gin.H{"username": "bob", "email": "bob@test.com", "password": "Password123!"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first register: got status %d, body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/register",
		gin.H{"username": "bob", "email": "bob-other@test.com", "password": "Password123!"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: got status %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestLoginUnverifiedUser(t *testing.T) {
	f := newAuthFixture(t)
	f.addAccount(t, "u1", "carol", "carol@test.com", "Password123!", false)

	w := f.do(t, http.MethodPost, "/login",
		gin.H{"username": "carol", "password": "Password123!"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got status %d, body %s", w.Code, w.Body.String())
	}
	var user UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if user.Username != "carol" || user.Verified {
		t.Fatalf("unexpected login body %+v", user)
	}
	if cookie := sessionCookie(t, w); cookie.Value == "" {
		t.Fatalf("login must set a session cookie")
	}
}
