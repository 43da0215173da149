package domain

import "time"

// InventoryKey identifies a ledger row.
type InventoryKey struct {
	SurvivorID string
	ItemID     string
}

func (k InventoryKey) Less(o InventoryKey) bool {
	if k.SurvivorID != o.SurvivorID {
		return k.SurvivorID < o.SurvivorID
	}
	return k.ItemID < o.ItemID
}

type InventoryEntry struct {
	SurvivorID string     `json:"survivorId" db:"survivor_id"`
	ItemID     string     `json:"itemId" db:"item_id"`
	ItemName   string     `json:"itemName,omitempty" db:"item_name"`
	Quantity   int        `json:"quantity" db:"quantity"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

func (e InventoryEntry) Key() InventoryKey {
	return InventoryKey{SurvivorID: e.SurvivorID, ItemID: e.ItemID}
}

func (e InventoryEntry) Active() bool { return e.DeletedAt == nil }
