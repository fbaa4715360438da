package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dom "lendtrack/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInactive = fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrAccountInactive)

type fakeChecker struct {
	users map[string]dom.User // by username
	pass  map[string]string   // username -> password
	err   error
}

func (f *fakeChecker) ValidateCredentials(_ context.Context, name, password string) (dom.User, error) {
	if f.err != nil {
		return dom.User{}, f.err
	}
	u, ok := f.users[name]
	if !ok || f.pass[name] != password {
		return dom.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return u, errInactive
	}
	return u, nil
}

func (f *fakeChecker) ValidatePrincipal(_ context.Context, p Principal) (dom.User, error) {
	if f.err != nil {
		return dom.User{}, f.err
	}
	u, ok := f.users[p.UserName]
	if !ok || u.ID != p.UserID {
		return dom.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return u, errInactive
	}
	return u, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(checker CredentialChecker, tokens *TokenService, opts ...Option) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireCredentials(checker, tokens, opts...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":    UserIDFromContext(c),
			"name":  UserNameFromContext(c),
			"token": TokenFromContext(c),
		})
	})
	return r
}

func TestRequireCredentials(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, "lendtrack")
	checker := &fakeChecker{
		users: map[string]dom.User{
			"alice": {ID: "u-1", UserName: "alice", Active: true},
			"bob":   {ID: "u-2", UserName: "bob", Active: false},
		},
		pass: map[string]string{"alice": "p1", "bob": "p2"},
	}
	aliceToken, err := tokens.Issue(Principal{UserID: "u-1", UserName: "alice"})
	require.NoError(t, err)
	bobToken, err := tokens.Issue(Principal{UserID: "u-2", UserName: "bob"})
	require.NoError(t, err)

	basic := func(user, pass string) func(*http.Request) {
		return func(r *http.Request) { r.SetBasicAuth(user, pass) }
	}
	bearer := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}

	tests := []struct {
		name       string
		auth       func(*http.Request)
		wantStatus int
	}{
		{name: "basic ok", auth: basic("alice", "p1"), wantStatus: http.StatusOK},
		{name: "bearer ok", auth: bearer(aliceToken), wantStatus: http.StatusOK},
		{name: "no header", auth: func(*http.Request) {}, wantStatus: http.StatusUnauthorized},
		{name: "unknown scheme", auth: func(r *http.Request) { r.Header.Set("Authorization", "Digest abc") }, wantStatus: http.StatusUnauthorized},
		{name: "wrong password", auth: basic("alice", "nope"), wantStatus: http.StatusUnauthorized},
		{name: "unknown user", auth: basic("mallory", "p1"), wantStatus: http.StatusUnauthorized},
		{name: "inactive user basic", auth: basic("bob", "p2"), wantStatus: http.StatusUnauthorized},
		{name: "inactive user bearer", auth: bearer(bobToken), wantStatus: http.StatusUnauthorized},
		{name: "bad bearer", auth: bearer("garbage"), wantStatus: http.StatusUnauthorized},
		{name: "malformed basic", auth: func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!") }, wantStatus: http.StatusUnauthorized},
	}
	r := newProtectedRouter(checker, tokens)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.auth(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"id":"u-1"`)
				assert.Contains(t, w.Body.String(), `"name":"alice"`)
			}
		})
	}
}

func TestRequireCredentials_FailuresAreIndistinguishable(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, "lendtrack")
	checker := &fakeChecker{
		users: map[string]dom.User{"alice": {ID: "u-1", UserName: "alice", Active: true}},
		pass:  map[string]string{"alice": "p1"},
	}
	r := newProtectedRouter(checker, tokens)

	do := func(user, pass string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.SetBasicAuth(user, pass)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	unknown := do("nobody", "p1")
	wrong := do("alice", "wrong")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestRequireCredentials_BasicIssuesUsableToken(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, "lendtrack")
	checker := &fakeChecker{
		users: map[string]dom.User{"alice": {ID: "u-1", UserName: "alice", Active: true}},
		pass:  map[string]string{"alice": "p1"},
	}
	var issued string
	r := gin.New()
	r.GET("/me", RequireCredentials(checker, tokens), func(c *gin.Context) {
		issued = TokenFromContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.SetBasicAuth("alice", "p1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	p, err := tokens.Parse(issued)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
}

func TestRequireCredentials_StoreErrorIsNot401(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, "lendtrack")
	r := newProtectedRouter(&fakeChecker{err: errors.New("db down")}, tokens)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.SetBasicAuth("alice", "p1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireCredentials_AllowInactive(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, "lendtrack")
	checker := &fakeChecker{
		users: map[string]dom.User{"bob": {ID: "u-2", UserName: "bob", Active: false}},
		pass:  map[string]string{"bob": "p2"},
	}
	bobToken, err := tokens.Issue(Principal{UserID: "u-2", UserName: "bob"})
	require.NoError(t, err)
	r := newProtectedRouter(checker, tokens, AllowInactive())

	serve := func(setup func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		setup(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := serve(func(req *http.Request) { req.SetBasicAuth("bob", "p2") })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u-2"`)

	w = serve(func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+bobToken) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u-2"`)

	// Only the inactive state is waived; bad credentials still fail.
	w = serve(func(req *http.Request) { req.SetBasicAuth("bob", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = serve(func(req *http.Request) { req.SetBasicAuth("mallory", "p2") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
