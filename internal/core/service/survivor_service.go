package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/port"
)

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

type SurvivorInput struct {
	Name             string          `json:"name" validate:"required"`
	Age              int             `json:"age" validate:"gte=0"`
	Gender           string          `json:"gender" validate:"required"`
	Infected         bool            `json:"infected"`
	LastLocationLat  decimal.Decimal `json:"lastLocationLat"`
	LastLocationLong decimal.Decimal `json:"lastLocationLong"`
}

type SurvivorService struct {
	db     port.DatabaseRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewSurvivorService(db port.DatabaseRepository, logger *zap.Logger) *SurvivorService {
	return &SurvivorService{db: db, logger: logger, now: time.Now}
}

func (s *SurvivorService) Create(ctx context.Context, in SurvivorInput) (*domain.Survivor, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validateLocation(in.LastLocationLat, in.LastLocationLong); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	survivor := domain.Survivor{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Age:              in.Age,
		Gender:           in.Gender,
		Infected:         in.Infected,
		LastLocationLat:  in.LastLocationLat,
		LastLocationLong: in.LastLocationLong,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.CreateSurvivor(ctx, survivor); err != nil {
		return nil, err
	}

	s.logger.Info("survivor registered", zap.String("survivor_id", survivor.ID))
	return &survivor, nil
}

func (s *SurvivorService) Update(ctx context.Context, id string, patch domain.SurvivorPatch) (*domain.Survivor, error) {
	if patch.Name != nil && *patch.Name == "" {
		return nil, domain.Validation("name must not be empty")
	}
	if patch.Gender != nil && *patch.Gender == "" {
		return nil, domain.Validation("gender must not be empty")
	}
	if patch.Age != nil && *patch.Age < 0 {
		return nil, domain.Validation("age must be at least 0")
	}

	var updated *domain.Survivor
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		survivor, err := tx.GetSurvivor(ctx, id)
		if err != nil {
			return err
		}
		if survivor == nil {
			return domain.NotFound("Survivor with ID %s not found", id)
		}

		patch.Apply(survivor)
		if err := validateLocation(survivor.LastLocationLat, survivor.LastLocationLong); err != nil {
			return err
		}
		survivor.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

		if err := tx.UpdateSurvivor(ctx, *survivor); err != nil {
			return err
		}
		updated = survivor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete tombstones the survivor. Inventory rows and trades that reference
// it are kept for history.
func (s *SurvivorService) Delete(ctx context.Context, id string) (*domain.Survivor, error) {
	var deleted *domain.Survivor
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		survivor, err := tx.GetSurvivor(ctx, id)
		if err != nil {
			return err
		}
		if survivor == nil {
			return domain.NotFound("Survivor with ID %s not found", id)
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		survivor.DeletedAt = &now
		survivor.UpdatedAt = now
		if err := tx.UpdateSurvivor(ctx, *survivor); err != nil {
			return err
		}
		deleted = survivor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("survivor deleted", zap.String("survivor_id", id))
	return deleted, nil
}

func (s *SurvivorService) Get(ctx context.Context, id string) (*domain.Survivor, error) {
	survivor, err := s.db.GetSurvivor(ctx, id)
	if err != nil {
		return nil, err
	}
	if survivor == nil {
		return nil, domain.NotFound("Survivor with ID %s not found", id)
	}
	return survivor, nil
}

func (s *SurvivorService) List(ctx context.Context) ([]domain.Survivor, error) {
	return s.db.ListSurvivors(ctx)
}

func validateLocation(lat, long decimal.Decimal) error {
	if lat.Abs().GreaterThan(maxLatitude) {
		return domain.Validation("lastLocationLat must be within [-90, 90], got %s", lat)
	}
	if long.Abs().GreaterThan(maxLongitude) {
		return domain.Validation("lastLocationLong must be within [-180, 180], got %s", long)
	}
	return nil
}
