package service

import (
	"context"

	dom "lendtrack/internal/domain"
	"lendtrack/internal/logging"
)

// DeactivatedMessage is returned to the caller once the cascade has finished.
const DeactivatedMessage = "Your account is successfully deactivated!"

// ItemCollaborator is what account deactivation needs from the item side.
type ItemCollaborator interface {
	FindHeldByOwner(ctx context.Context, userID string) ([]dom.Item, error)
	Reevaluate(ctx context.Context, items []dom.Item) (int64, error)
}

// Ack reports a finished deactivation.
type Ack struct {
	UserID string
	// AffectedItems are the ids of items the user owned and held.
	AffectedItems []string
	// Retired counts items this call moved to inactive.
	Retired int64
	Message string
}

// LifecycleService deactivates accounts and cascades to the items they hold.
type LifecycleService struct {
	users *UserService
	items ItemCollaborator
	log   logging.Logger
}

func NewLifecycleService(users *UserService, items ItemCollaborator, log logging.Logger) *LifecycleService {
	return &LifecycleService{users: users, items: items, log: log}
}

// Deactivate marks the user inactive, then hands the items they both own and
// hold to the item collaborator. Each step is awaited and any failure is
// returned. Deactivating an inactive user succeeds again.
func (s *LifecycleService) Deactivate(ctx context.Context, userID string) (Ack, error) {
	u, err := s.users.setActive(ctx, userID, false)
	if err != nil {
		return Ack{}, err
	}

	items, err := s.items.FindHeldByOwner(ctx, u.ID)
	if err != nil {
		return Ack{}, err
	}
	retired, err := s.items.Reevaluate(ctx, items)
	if err != nil {
		return Ack{}, err
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	s.log.Info(ctx, "user deactivated", "user_id", u.ID, "held_items", len(ids), "retired", retired)
	return Ack{UserID: u.ID, AffectedItems: ids, Retired: retired, Message: DeactivatedMessage}, nil
}
