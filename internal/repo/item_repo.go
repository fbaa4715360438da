package repo

import (
	"context"

	dom "lendtrack/internal/domain"

	"github.com/jackc/pgx/v5"
)

// ItemRepo is the slice of item persistence the user lifecycle needs.
type ItemRepo interface {
	// FindHeldByOwner returns items the user both owns and currently holds.
	FindHeldByOwner(ctx context.Context, userID string) ([]dom.Item, error)
	// MarkInactive flips the given items to inactive, skipping any whose custody
	// has moved away from the owner since they were read. Returns rows changed.
	MarkInactive(ctx context.Context, ids []string) (int64, error)
}

type PGItemRepo struct {
	db DBTX
}

func NewPGItemRepo(db DBTX) *PGItemRepo {
	return &PGItemRepo{db: db}
}

func (r *PGItemRepo) FindHeldByOwner(ctx context.Context, userID string) ([]dom.Item, error) {
	query := `
		SELECT id, name, owner_id, custody_id, status, created_at, updated_at
		FROM items WHERE owner_id = $1 AND custody_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

func (r *PGItemRepo) MarkInactive(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE items SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND custody_id = owner_id AND status <> $2`,
		ids, string(dom.ItemInactive))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanItem(row pgx.Row) (dom.Item, error) {
	var (
		it     dom.Item
		status string
	)
	err := row.Scan(&it.ID, &it.Name, &it.OwnerID, &it.CustodyID, &status, &it.CreatedAt, &it.UpdatedAt)
	it.Status = dom.ItemStatus(status)
	return it, err
}
