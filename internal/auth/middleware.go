package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	dom "lendtrack/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUserID   = "user_id"
	contextKeyUserName = "user_name"
	contextKeyToken    = "token"
)

// unauthorizedBody is the one response for every authentication failure,
// so callers cannot tell an unknown user from a wrong password.
var unauthorizedBody = gin.H{"error": "invalid credentials"}

// CredentialChecker verifies presented credentials against the user store.
// Both methods return ErrInvalidCredentials for any rejection. When the only
// problem is a deactivated account, the error also wraps ErrAccountInactive
// and the user is returned alongside it.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context, userName, password string) (dom.User, error)
	ValidatePrincipal(ctx context.Context, p Principal) (dom.User, error)
}

// UserIDFromContext returns the user ID set by RequireCredentials. "" if not set.
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// UserNameFromContext returns the username set by RequireCredentials.
func UserNameFromContext(c *gin.Context) string {
	return c.GetString(contextKeyUserName)
}

// TokenFromContext returns the token bound to the authenticated caller:
// freshly issued for Basic credentials, the presented one for Bearer.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}

type options struct {
	allowInactive bool
}

// Option tunes RequireCredentials.
type Option func(*options)

// AllowInactive admits callers whose credentials are valid but whose account
// has been deactivated.
func AllowInactive() Option {
	return func(o *options) { o.allowInactive = true }
}

func (o options) admit(err error) error {
	if o.allowInactive && errors.Is(err, ErrAccountInactive) {
		return nil
	}
	return err
}

// RequireCredentials returns a middleware that accepts either
// "Authorization: Basic <user:pass>" or "Authorization: Bearer <token>".
// On success it stores the caller's id, username and token in the context.
// Missing or bad credentials get a 401 with a fixed body.
func RequireCredentials(users CredentialChecker, tokens *TokenService, opts ...Option) gin.HandlerFunc {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		header := strings.TrimSpace(c.GetHeader("Authorization"))

		var (
			user  dom.User
			token string
			err   error
		)
		switch {
		case hasScheme(header, "Basic"):
			name, password, ok := c.Request.BasicAuth()
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorizedBody)
				return
			}
			user, err = users.ValidateCredentials(ctx, name, password)
			err = o.admit(err)
			if err == nil {
				token, err = tokens.Issue(Principal{UserID: user.ID, UserName: user.UserName})
			}
		case hasScheme(header, "Bearer"):
			token = strings.TrimSpace(header[len("Bearer"):])
			var p Principal
			p, err = tokens.Parse(token)
			if err == nil {
				user, err = users.ValidatePrincipal(ctx, p)
				err = o.admit(err)
			}
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorizedBody)
			return
		}

		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorizedBody)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
			return
		}

		c.Set(contextKeyUserID, user.ID)
		c.Set(contextKeyUserName, user.UserName)
		c.Set(contextKeyToken, token)
		c.Next()
	}
}

func hasScheme(header, scheme string) bool {
	return len(header) > len(scheme) &&
		strings.EqualFold(header[:len(scheme)], scheme) &&
		header[len(scheme)] == ' '
}
