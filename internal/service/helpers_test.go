package service

import (
	"testing"
	"time"

	"lendtrack/internal/auth"
	"lendtrack/internal/cache"
	"lendtrack/internal/logging"
	"lendtrack/internal/repo/repotest"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTokens() *auth.TokenService {
	return auth.NewTokenService(testSecret, time.Hour, "lendtrack-test")
}

func newUserService(t *testing.T, opts UserOptions, c *cache.UserCache) (*UserService, *repotest.UserRepo) {
	t.Helper()
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	r := repotest.NewUserRepo()
	svc, err := NewUserService(r, c, newTokens(), opts, logging.Discard())
	require.NoError(t, err)
	return svc, r
}

func aliceInput() SignupInput {
	return SignupInput{UserName: "alice", Password: "pw1", Email: "a@x.io", Address: "1 Main St"}
}
