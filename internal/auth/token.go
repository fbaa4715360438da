package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	// ErrAccountInactive marks a rejection caused only by a deactivated
	// account. It is always wrapped together with ErrInvalidCredentials.
	ErrAccountInactive = errors.New("account inactive")
)

// Principal is the identity a token is bound to.
type Principal struct {
	UserID   string
	UserName string
}

// Claims is the JWT payload: registered claims plus the username.
type Claims struct {
	jwt.RegisteredClaims
	UserName string `json:"usr"`
}

// TokenService mints and checks HS256 bearer tokens. It holds no mutable
// state; the secret is fixed at construction.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService returns a TokenService.
func NewTokenService(secret string, ttl time.Duration, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue encodes p into a signed token. It does not touch storage.
func (s *TokenService) Issue(p Principal) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserName: p.UserName,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse validates signature, algorithm, issuer and expiry and returns the
// bound principal. Every failure is ErrInvalidToken.
func (s *TokenService) Parse(token string) (Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.UserName == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.Subject, UserName: claims.UserName}, nil
}
