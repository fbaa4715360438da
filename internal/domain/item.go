package domain

import "time"

// ItemStatus is the lending state of an item.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemLoaned    ItemStatus = "loaned"
	ItemInactive  ItemStatus = "inactive"
)

// Item is a lendable thing. OwnerID is who it belongs to,
// CustodyID is who holds it right now.
type Item struct {
	ID        string
	Name      string
	OwnerID   string
	CustodyID string
	Status    ItemStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HeldByOwner reports whether the owner currently has the item.
func (i Item) HeldByOwner() bool {
	return i.OwnerID == i.CustodyID
}
