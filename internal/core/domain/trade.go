package domain

import "time"

// Trade is immutable once settled; only DeletedAt may change afterwards.
type Trade struct {
	ID               string     `json:"id" db:"id"`
	Survivor1ID      string     `json:"survivor1Id" db:"survivor1_id"`
	Survivor2ID      string     `json:"survivor2Id" db:"survivor2_id"`
	ItemGivenID      string     `json:"itemGivenId" db:"item_given_id"`
	ItemReceivedID   string     `json:"itemReceivedId" db:"item_received_id"`
	QuantityGiven    int        `json:"quantityGiven" db:"quantity_given"`
	QuantityReceived int        `json:"quantityReceived" db:"quantity_received"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

func (t Trade) Active() bool { return t.DeletedAt == nil }

type TradeAction string

const (
	TradeActionGive    TradeAction = "Give"
	TradeActionReceive TradeAction = "Receive"
)

// TradeView is a trade annotated for display from one survivor's perspective.
type TradeView struct {
	ID               string      `json:"id" db:"id"`
	CreatedAt        time.Time   `json:"createdAt" db:"created_at"`
	Survivor1ID      string      `json:"survivor1Id" db:"survivor1_id"`
	Survivor2ID      string      `json:"survivor2Id" db:"survivor2_id"`
	ItemGivenID      string      `json:"itemGivenId" db:"item_given_id"`
	ItemGivenName    string      `json:"itemGivenName" db:"item_given_name"`
	ItemReceivedID   string      `json:"itemReceivedId" db:"item_received_id"`
	ItemReceivedName string      `json:"itemReceivedName" db:"item_received_name"`
	QuantityGiven    int         `json:"quantityGiven" db:"quantity_given"`
	QuantityReceived int         `json:"quantityReceived" db:"quantity_received"`
	Action           TradeAction `json:"action" db:"-"`
}

// TradeSettled is emitted after a settlement commits.
type TradeSettled struct {
	TradeID          string    `json:"tradeId"`
	Survivor1ID      string    `json:"survivor1Id"`
	Survivor2ID      string    `json:"survivor2Id"`
	ItemGivenID      string    `json:"itemGivenId"`
	ItemReceivedID   string    `json:"itemReceivedId"`
	QuantityGiven    int       `json:"quantityGiven"`
	QuantityReceived int       `json:"quantityReceived"`
	SettledAt        time.Time `json:"settledAt"`
}

func NewTradeSettled(t Trade) TradeSettled {
	return TradeSettled{
		TradeID:          t.ID,
		Survivor1ID:      t.Survivor1ID,
		Survivor2ID:      t.Survivor2ID,
		ItemGivenID:      t.ItemGivenID,
		ItemReceivedID:   t.ItemReceivedID,
		QuantityGiven:    t.QuantityGiven,
		QuantityReceived: t.QuantityReceived,
		SettledAt:        t.CreatedAt,
	}
}
