package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Survivor struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Age              int             `json:"age" db:"age"`
	Gender           string          `json:"gender" db:"gender"`
	Infected         bool            `json:"infected" db:"infected"`
	LastLocationLat  decimal.Decimal `json:"lastLocationLat" db:"last_location_lat"`
	LastLocationLong decimal.Decimal `json:"lastLocationLong" db:"last_location_long"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
	DeletedAt        *time.Time      `json:"deletedAt,omitempty" db:"deleted_at"`
}

func (s Survivor) Active() bool { return s.DeletedAt == nil }

// SurvivorPatch carries the fields of a profile update; nil fields are left
// untouched.
type SurvivorPatch struct {
	Name             *string
	Age              *int
	Gender           *string
	Infected         *bool
	LastLocationLat  *decimal.Decimal
	LastLocationLong *decimal.Decimal
}

func (p SurvivorPatch) Apply(s *Survivor) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Age != nil {
		s.Age = *p.Age
	}
	if p.Gender != nil {
		s.Gender = *p.Gender
	}
	if p.Infected != nil {
		s.Infected = *p.Infected
	}
	if p.LastLocationLat != nil {
		s.LastLocationLat = *p.LastLocationLat
	}
	if p.LastLocationLong != nil {
		s.LastLocationLong = *p.LastLocationLong
	}
}
