package repo

import (
	"context"

	dom "lendtrack/internal/domain"

	"github.com/jackc/pgx/v5"
)

// UserRepo provides user persistence. Lookups that match nothing return pgx.ErrNoRows.
// Create returns the driver's unique violation when the username is taken.
type UserRepo interface {
	Create(ctx context.Context, u dom.User) (dom.User, error)
	GetByID(ctx context.Context, id string) (dom.User, error)
	GetByUsername(ctx context.Context, userName string) (dom.User, error)
	List(ctx context.Context, activeOnly bool) ([]dom.User, error)
	Update(ctx context.Context, id string, patch dom.UserPatch) (dom.User, error)
	SetActive(ctx context.Context, id string, active bool) (dom.User, error)
}

const userColumns = `id, user_name, password_hash, email, address, active, created_at, updated_at`

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db DBTX
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db DBTX) *PGUserRepo {
	return &PGUserRepo{db: db}
}

func scanUser(row pgx.Row) (dom.User, error) {
	var u dom.User
	err := row.Scan(&u.ID, &u.UserName, &u.PasswordHash, &u.Email, &u.Address,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a new user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	query := `
		INSERT INTO users (id, user_name, password_hash, email, address, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, u.ID, u.UserName, u.PasswordHash, u.Email, u.Address, u.Active))
}

// GetByID returns the user by id.
func (r *PGUserRepo) GetByID(ctx context.Context, id string) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsername returns the user by username.
func (r *PGUserRepo) GetByUsername(ctx context.Context, userName string) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_name = $1`, userName))
}

// List returns all users, or only active ones, oldest first.
func (r *PGUserRepo) List(ctx context.Context, activeOnly bool) ([]dom.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ($1 = FALSE OR active) ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Update applies the non-nil patch fields.
func (r *PGUserRepo) Update(ctx context.Context, id string, patch dom.UserPatch) (dom.User, error) {
	query := `
		UPDATE users SET
			email = COALESCE($2, email),
			address = COALESCE($3, address),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, patch.Email, patch.Address))
}

// SetActive sets the active flag. Setting it to its current value changes nothing.
func (r *PGUserRepo) SetActive(ctx context.Context, id string, active bool) (dom.User, error) {
	query := `
		UPDATE users SET
			active = $2,
			updated_at = CASE WHEN active = $2 THEN updated_at ELSE NOW() END
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, active))
}
