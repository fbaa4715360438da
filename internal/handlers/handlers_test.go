package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lendtrack/internal/auth"
	dom "lendtrack/internal/domain"
	"lendtrack/internal/dto"
	"lendtrack/internal/logging"
	"lendtrack/internal/repo/repotest"
	"lendtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	email string
	err   error
}

func (s *stubVerifier) Verify(context.Context, string) (service.Identity, error) {
	if s.err != nil {
		return service.Identity{}, s.err
	}
	return service.Identity{Email: s.email}, nil
}

type testEnv struct {
	r        *gin.Engine
	users    *repotest.UserRepo
	items    *repotest.ItemRepo
	tokens   *auth.TokenService
	verifier *stubVerifier
}

func newTestEnv(t *testing.T, items ...dom.Item) *testEnv {
	t.Helper()
	log := logging.Discard()
	ur := repotest.NewUserRepo()
	ir := repotest.NewItemRepo(items...)
	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour, "lendtrack-test")
	users, err := service.NewUserService(ur, nil, tokens, service.UserOptions{BcryptCost: bcrypt.MinCost}, log)
	require.NoError(t, err)
	v := &stubVerifier{email: "g@x.io"}
	fed := service.NewFederationService(v, users, "google", log)
	lifecycle := service.NewLifecycleService(users, service.NewItemService(ir), log)

	r := gin.New()
	requireAuth := auth.RequireCredentials(users, tokens)
	ah := NewAuthHandler(users, fed, log)
	r.POST("/signup", ah.Signup)
	r.POST("/signin", requireAuth, ah.Signin)
	r.POST("/oauth", ah.OAuth)
	uh := NewUserHandler(users, lifecycle, log)
	r.GET("/user", uh.List)
	r.GET("/user/active", uh.ListActive)
	r.GET("/user/name/:userName", uh.GetByUsername)
	r.GET("/user/:id", uh.GetByID)
	r.POST("/user", uh.Create)
	r.PUT("/user/:id", requireAuth, uh.Update)
	r.DELETE("/user/:id", auth.RequireCredentials(users, tokens, auth.AllowInactive()), uh.Delete)

	return &testEnv{r: r, users: ur, items: ir, tokens: tokens, verifier: v}
}

func (e *testEnv) do(method, path, body string, setup func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func basic(name, password string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(name, password) }
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

const aliceBody = `{"userName":"alice","password":"pw1","email":"a@x.io","address":"1 Main St"}`

// signup registers alice and returns her id and token.
func (e *testEnv) signup(t *testing.T) (string, string) {
	t.Helper()
	w := e.do(http.MethodPost, "/signup", aliceBody, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p, err := e.tokens.Parse(w.Body.String())
	require.NoError(t, err)
	return p.UserID, w.Body.String()
}

func TestSignup(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/signup", aliceBody, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	p, err := e.tokens.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserName)

	w = e.do(http.MethodPost, "/signup", aliceBody, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"This username has already been used, try other username"}`, w.Body.String())
	assert.Equal(t, 1, e.users.Count())
}

func TestSignup_BadInput(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/signup", `{"userName":"alice","password":"pw1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email")

	w = e.do(http.MethodPost, "/signup", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, e.users.Count())
}

func TestSignin(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.signup(t)

	w := e.do(http.MethodPost, "/signin", "", basic("alice", "pw1"))
	require.Equal(t, http.StatusOK, w.Code)
	p, err := e.tokens.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)

	wrongPw := e.do(http.MethodPost, "/signin", "", basic("alice", "nope"))
	unknown := e.do(http.MethodPost, "/signin", "", basic("bob", "pw1"))
	none := e.do(http.MethodPost, "/signin", "", nil)
	for _, w := range []*httptest.ResponseRecorder{wrongPw, unknown, none} {
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	assert.Equal(t, wrongPw.Body.String(), unknown.Body.String())
	assert.Equal(t, wrongPw.Body.String(), none.Body.String())
}

func TestOAuth(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/oauth", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/oauth", `{"id_token":"tok"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first, err := e.tokens.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "g@x.io", first.UserName)

	w = e.do(http.MethodPost, "/oauth", `{"id_token":"tok"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second, err := e.tokens.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, e.users.Creates)

	e.verifier.err = service.ErrFederation
	w = e.do(http.MethodPost, "/oauth", `{"id_token":"tok"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuth_StoreFailure(t *testing.T) {
	e := newTestEnv(t)
	e.users.ErrGet = errors.New("db down")

	w := e.do(http.MethodPost, "/oauth", `{"id_token":"tok"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestListUsers_NoPasswords(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.signup(t)
	w := e.do(http.MethodPost, "/signup", `{"userName":"bob","password":"pw2","email":"b@x.io","address":"2 Elm St"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.do(http.MethodDelete, "/user/"+id, "", basic("alice", "pw1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/user", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")
	var all []dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = e.do(http.MethodGet, "/user/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].UserName)
}

func TestGetUser(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.signup(t)

	w := e.do(http.MethodGet, "/user/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.NotContains(t, w.Body.String(), "password")

	w = e.do(http.MethodGet, "/user/name/Alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/user/nope", "/user/2d1c2b6e-7c43-4f0e-8a39-3f0a4b1c9d10", "/user/name/bob"} {
		w = e.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.JSONEq(t, `{"error":"No matching user found"}`, w.Body.String(), path)
	}
}

func TestCreateUser(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/user", aliceBody, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var got dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "alice", got.UserName)
	assert.True(t, got.Active)

	w = e.do(http.MethodPost, "/user", aliceBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/user", `{"userName":"bob"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, e.users.Count())
}

func TestUpdateUser(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.signup(t)

	body := `{"email":"new@x.io","userName":"mallory","active":false,"password":"x"}`
	w := e.do(http.MethodPut, "/user/"+id, body, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "new@x.io", got.Email)
	assert.Equal(t, "alice", got.UserName)
	assert.Equal(t, "1 Main St", got.Address)
	assert.True(t, got.Active)

	// Password was not changed by the body above.
	w = e.do(http.MethodPost, "/signin", "", basic("alice", "pw1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPut, "/user/"+id, `{"email":"  "}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/user/"+id, `{"email":"x@x.io"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateUser_OnlySelf(t *testing.T) {
	e := newTestEnv(t)
	aliceID, _ := e.signup(t)
	w := e.do(http.MethodPost, "/signup", `{"userName":"bob","password":"pw2","email":"b@x.io","address":"2 Elm St"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	bobToken := w.Body.String()

	w = e.do(http.MethodPut, "/user/"+aliceID, `{"email":"bob@x.io"}`, bearer(bobToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodDelete, "/user/"+aliceID, "", bearer(bobToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteUser(t *testing.T) {
	items := func(owner, other string) []dom.Item {
		return []dom.Item{
			{ID: "i1", OwnerID: owner, CustodyID: owner, Status: dom.ItemAvailable},
			{ID: "i2", OwnerID: owner, CustodyID: other, Status: dom.ItemLoaned},
		}
	}
	e := newTestEnv(t)
	id, token := e.signup(t)
	for _, it := range items(id, "someone-else") {
		e.items.Put(it)
	}

	w := e.do(http.MethodDelete, "/user/"+id, "", basic("alice", "pw1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ack dto.DeactivateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "Your account is successfully deactivated!", ack.Message)
	assert.Equal(t, id, ack.UserID)
	assert.Equal(t, []string{"i1"}, ack.AffectedItems)
	assert.EqualValues(t, 1, ack.Retired)
	assert.Equal(t, dom.ItemInactive, e.items.Get("i1").Status)
	assert.Equal(t, dom.ItemLoaned, e.items.Get("i2").Status)

	// The account can no longer sign in or edit its profile.
	w = e.do(http.MethodPost, "/signin", "", basic("alice", "pw1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodPut, "/user/"+id, `{"email":"x@x.io"}`, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Deactivating again succeeds and retires nothing new.
	w = e.do(http.MethodDelete, "/user/"+id, "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var again dto.DeactivateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, ack.Message, again.Message)
	assert.Equal(t, ack.AffectedItems, again.AffectedItems)
	assert.Zero(t, again.Retired)

	// Bad credentials are still refused on the repeat.
	w = e.do(http.MethodDelete, "/user/"+id, "", basic("alice", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, "/user/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)
}

func TestDeleteUser_ItemFailure(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.signup(t)
	e.items.ErrFind = errors.New("items down")

	w := e.do(http.MethodDelete, "/user/"+id, "", bearer(token))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "items down")
}
