package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"lendtrack/internal/auth"
	"lendtrack/internal/cache"
	dom "lendtrack/internal/domain"
	"lendtrack/internal/logging"
	"lendtrack/internal/repo"
	"lendtrack/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

// SignupInput is a new account's credentials and profile. All fields are required.
type SignupInput struct {
	UserName string
	Password string
	Email    string
	Address  string
}

// UserOptions holds the account policy knobs.
type UserOptions struct {
	// CaseSensitive keeps usernames as typed. Otherwise they are lower-cased,
	// so "Alice" and "alice" are the same account.
	CaseSensitive bool
	BcryptCost    int
}

// UserService handles signup, credential checks and profile reads/writes.
type UserService struct {
	repo      repo.UserRepo
	cache     *cache.UserCache
	tokens    *auth.TokenService
	opts      UserOptions
	log       logging.Logger
	sf        singleflight.Group
	dummyHash []byte
}

// NewUserService returns a UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, c *cache.UserCache, tokens *auth.TokenService, opts UserOptions, log logging.Logger) (*UserService, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	// Compared against when the username is unknown, so both paths cost one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte("lendtrack-no-such-user"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &UserService{
		repo:      r,
		cache:     c,
		tokens:    tokens,
		opts:      opts,
		log:       log,
		dummyHash: dummy,
	}, nil
}

// NormalizeUserName applies the configured case policy.
func (s *UserService) NormalizeUserName(name string) string {
	name = strings.TrimSpace(name)
	if !s.opts.CaseSensitive {
		name = strings.ToLower(name)
	}
	return name
}

// Signup creates an active account and returns it with a token bound to it.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (dom.User, string, error) {
	u, err := s.Create(ctx, in)
	if err != nil {
		return dom.User{}, "", err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return dom.User{}, "", err
	}
	return u, token, nil
}

// Create validates and stores a new active account. A duplicate username is
// detected by the store's unique constraint, never by a prior lookup.
func (s *UserService) Create(ctx context.Context, in SignupInput) (dom.User, error) {
	in.UserName = s.NormalizeUserName(in.UserName)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)

	var missing []string
	if in.UserName == "" {
		missing = append(missing, "userName")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return dom.User{}, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return dom.User{}, err
	}
	return s.insert(ctx, dom.User{
		ID:           uuid.NewString(),
		UserName:     in.UserName,
		PasswordHash: hash,
		Email:        in.Email,
		Address:      in.Address,
		Active:       true,
	})
}

func (s *UserService) insert(ctx context.Context, u dom.User) (dom.User, error) {
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrUsernameTaken
		}
		return dom.User{}, fmt.Errorf("create user: %w", err)
	}
	s.invalidateCache(ctx)
	s.log.Info(ctx, "user created", "user_id", created.ID)
	return created, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IssueToken mints a token bound to u.
func (s *UserService) IssueToken(u dom.User) (string, error) {
	return s.tokens.Issue(auth.Principal{UserID: u.ID, UserName: u.UserName})
}

// ValidateCredentials checks username and password; returns user if valid.
// Every rejection is ErrInvalidCredentials. A deactivated account with the
// right password also wraps auth.ErrAccountInactive and comes back with the user.
func (s *UserService) ValidateCredentials(ctx context.Context, userName, password string) (dom.User, error) {
	userName = s.NormalizeUserName(userName)
	if userName == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	u, err := s.repo.GetByUsername(ctx, userName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dom.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return u, errAccountInactive
	}
	return u, nil
}

// ValidatePrincipal confirms a token's subject still exists, is active and
// still has the username the token was issued for.
func (s *UserService) ValidatePrincipal(ctx context.Context, p auth.Principal) (dom.User, error) {
	u, err := s.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	if u.UserName != p.UserName {
		return dom.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return u, errAccountInactive
	}
	return u, nil
}

// GetByID returns the user or ErrNotFound. Ids that are not UUIDs cannot match.
func (s *UserService) GetByID(ctx context.Context, id string) (dom.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return dom.User{}, ErrNotFound
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}

// GetByUsername returns the user or ErrNotFound.
func (s *UserService) GetByUsername(ctx context.Context, userName string) (dom.User, error) {
	userName = s.NormalizeUserName(userName)
	if userName == "" {
		return dom.User{}, ErrNotFound
	}
	u, err := s.repo.GetByUsername(ctx, userName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]dom.User, error) {
	return s.list(ctx, false)
}

// ListActive returns accounts that have not been deactivated.
func (s *UserService) ListActive(ctx context.Context) ([]dom.User, error) {
	return s.list(ctx, true)
}

func (s *UserService) list(ctx context.Context, activeOnly bool) ([]dom.User, error) {
	if s.cache == nil {
		return s.repo.List(ctx, activeOnly)
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.Warn(ctx, "user cache unavailable", "err", err)
		return s.repo.List(ctx, activeOnly)
	}
	key := fmt.Sprintf("list:%t:%d", activeOnly, gen)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if list, err := s.cache.GetList(ctx, gen, activeOnly); err == nil && list != nil {
			return list, nil
		}
		list, err := s.repo.List(ctx, activeOnly)
		if err != nil {
			return nil, err
		}
		_ = s.cache.SetList(ctx, gen, activeOnly, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.User), nil
}

// Update changes profile fields. Username, password and active state are
// not reachable through it.
func (s *UserService) Update(ctx context.Context, id string, patch dom.UserPatch) (dom.User, error) {
	if patch.Email != nil {
		v := strings.TrimSpace(*patch.Email)
		if v == "" {
			return dom.User{}, fmt.Errorf("%w: email cannot be empty", ErrValidation)
		}
		patch.Email = &v
	}
	if patch.Address != nil {
		v := strings.TrimSpace(*patch.Address)
		if v == "" {
			return dom.User{}, fmt.Errorf("%w: address cannot be empty", ErrValidation)
		}
		patch.Address = &v
	}
	if _, err := uuid.Parse(id); err != nil {
		return dom.User{}, ErrNotFound
	}
	u, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, fmt.Errorf("update user: %w", err)
	}
	s.invalidateCache(ctx)
	return u, nil
}

// setActive is the lifecycle hook; it is idempotent.
func (s *UserService) setActive(ctx context.Context, id string, active bool) (dom.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return dom.User{}, ErrNotFound
	}
	u, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, fmt.Errorf("set active: %w", err)
	}
	s.invalidateCache(ctx)
	return u, nil
}

// findOrCreateFederated looks the account up by username and creates it on a
// miss. An existing record always wins and is returned untouched, including
// when a concurrent login created it between the lookup and the insert.
func (s *UserService) findOrCreateFederated(ctx context.Context, email, address string) (dom.User, bool, error) {
	name := s.NormalizeUserName(email)
	u, err := s.repo.GetByUsername(ctx, name)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return dom.User{}, false, fmt.Errorf("lookup federated user: %w", err)
	}

	placeholder, err := randomSecret()
	if err != nil {
		return dom.User{}, false, err
	}
	hash, err := s.hashPassword(placeholder)
	if err != nil {
		return dom.User{}, false, err
	}
	created, err := s.insert(ctx, dom.User{
		ID:           uuid.NewString(),
		UserName:     name,
		PasswordHash: hash,
		Email:        strings.TrimSpace(email),
		Address:      address,
		Active:       true,
	})
	if errors.Is(err, ErrUsernameTaken) {
		u, err := s.repo.GetByUsername(ctx, name)
		if err != nil {
			return dom.User{}, false, fmt.Errorf("reload federated user: %w", err)
		}
		return u, false, nil
	}
	if err != nil {
		return dom.User{}, false, err
	}
	return created, true, nil
}

func (s *UserService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.log.Warn(ctx, "user cache invalidation failed", "err", err)
		}
	}
}

// randomSecret is the password of accounts that only sign in through federation.
// Nobody knows it, so the password path stays closed for them.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
