package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dom "lendtrack/internal/domain"
	"lendtrack/internal/logging"
)

// maxTokenInfoBody caps how much of the token-info response is read.
const maxTokenInfoBody = 1 << 20

// Identity is what a third party vouches for.
type Identity struct {
	Email   string
	Subject string
}

// Verifier exchanges a third-party id token for a verified identity.
// Every failure wraps ErrFederation.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// GoogleVerifier checks id tokens against Google's token-info endpoint.
type GoogleVerifier struct {
	client   *http.Client
	endpoint string
	clientID string
	timeout  time.Duration
}

// NewGoogleVerifier returns a verifier for endpoint. When clientID is set, the
// token's audience must match it. The call never outlives timeout.
func NewGoogleVerifier(endpoint, clientID string, timeout time.Duration) *GoogleVerifier {
	return &GoogleVerifier{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		clientID: clientID,
		timeout:  timeout,
	}
}

type tokenInfo struct {
	Email         string          `json:"email"`
	EmailVerified json.RawMessage `json:"email_verified"`
	Aud           string          `json:"aud"`
	Sub           string          `json:"sub"`
}

// Verify calls GET <endpoint>?id_token=<token>.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Identity{}, fmt.Errorf("%w: empty id token", ErrFederation)
	}

	u, err := url.Parse(v.endpoint)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad token info url: %v", ErrFederation, err)
	}
	q := u.Query()
	q.Set("id_token", idToken)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrFederation, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: token info request: %v", ErrFederation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%w: token info returned %d", ErrFederation, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenInfoBody)).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("%w: decode token info: %v", ErrFederation, err)
	}
	info.Email = strings.TrimSpace(info.Email)
	if info.Email == "" {
		return Identity{}, fmt.Errorf("%w: no email claim", ErrFederation)
	}
	// Google sends "true"/"false" as strings; accept a JSON bool too.
	if strings.Trim(string(info.EmailVerified), `"`) == "false" {
		return Identity{}, fmt.Errorf("%w: email not verified", ErrFederation)
	}
	if v.clientID != "" && info.Aud != v.clientID {
		return Identity{}, fmt.Errorf("%w: audience mismatch", ErrFederation)
	}
	return Identity{Email: info.Email, Subject: info.Sub}, nil
}

// FederationService logs users in with a third-party id token, provisioning
// a local account on first sight.
type FederationService struct {
	verifier Verifier
	users    *UserService
	address  string
	log      logging.Logger
}

// NewFederationService returns a FederationService. address is stored on
// accounts it provisions.
func NewFederationService(v Verifier, users *UserService, address string, log logging.Logger) *FederationService {
	return &FederationService{verifier: v, users: users, address: address, log: log}
}

// Login verifies idToken, finds or creates the account whose username is the
// verified email, and returns a token for it.
func (s *FederationService) Login(ctx context.Context, idToken string) (dom.User, string, error) {
	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.log.Warn(ctx, "federated verification failed", "err", err)
		if !errors.Is(err, ErrFederation) {
			err = fmt.Errorf("%w: %v", ErrFederation, err)
		}
		return dom.User{}, "", err
	}

	u, created, err := s.users.findOrCreateFederated(ctx, id.Email, s.address)
	if err != nil {
		return dom.User{}, "", err
	}
	if !u.Active {
		return dom.User{}, "", ErrInvalidCredentials
	}
	if created {
		s.log.Info(ctx, "federated account provisioned", "user_id", u.ID)
	}

	token, err := s.users.IssueToken(u)
	if err != nil {
		return dom.User{}, "", err
	}
	return u, token, nil
}
