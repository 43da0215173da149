package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/port"
)

type ItemInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type ItemService struct {
	db     port.DatabaseRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewItemService(db port.DatabaseRepository, logger *zap.Logger) *ItemService {
	return &ItemService{db: db, logger: logger, now: time.Now}
}

func (s *ItemService) Create(ctx context.Context, in ItemInput) (*domain.Item, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	item := domain.Item{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item created", zap.String("item_id", item.ID), zap.String("name", item.Name))
	return &item, nil
}

func (s *ItemService) Update(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	if patch.Name != nil && *patch.Name == "" {
		return nil, domain.Validation("name must not be empty")
	}

	var updated *domain.Item
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NotFound("Item with ID %s not found", id)
		}

		patch.Apply(item)
		item.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ItemService) Delete(ctx context.Context, id string) (*domain.Item, error) {
	var deleted *domain.Item
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NotFound("Item with ID %s not found", id)
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		item.DeletedAt = &now
		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item deleted", zap.String("item_id", id))
	return deleted, nil
}

func (s *ItemService) Get(ctx context.Context, id string) (*domain.Item, error) {
	item, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.NotFound("Item with ID %s not found", id)
	}
	return item, nil
}

func (s *ItemService) List(ctx context.Context) ([]domain.Item, error) {
	return s.db.ListItems(ctx)
}
