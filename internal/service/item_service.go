package service

import (
	"context"
	"fmt"

	dom "lendtrack/internal/domain"
	"lendtrack/internal/repo"
)

// ItemService owns the item side of the custody relation.
type ItemService struct {
	repo repo.ItemRepo
}

func NewItemService(r repo.ItemRepo) *ItemService {
	return &ItemService{repo: r}
}

// FindHeldByOwner returns items the user both owns and holds.
// Items the user owns but has lent out are not included.
func (s *ItemService) FindHeldByOwner(ctx context.Context, userID string) ([]dom.Item, error) {
	items, err := s.repo.FindHeldByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find held items: %w", err)
	}
	return items, nil
}

// Reevaluate retires items whose owner has been deactivated while still
// holding them. Items already inactive are skipped. The store re-checks
// custody, so an item lent out in the meantime keeps its state.
func (s *ItemService) Reevaluate(ctx context.Context, items []dom.Item) (int64, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.HeldByOwner() && it.Status != dom.ItemInactive {
			ids = append(ids, it.ID)
		}
	}
	n, err := s.repo.MarkInactive(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("mark items inactive: %w", err)
	}
	return n, nil
}
