package service

import (
	"context"
	"errors"

	"rosegold/market-service/internal/models"
	"rosegold/market-service/internal/repository"

	"github.com/sirupsen/logrus"
)

type ItemService interface {
	PostItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, itemID int64) (*models.Item, error)
	GetItemsForAccount(ctx context.Context, accountID int64) ([]models.Item, error)
	EditItem(ctx context.Context, accountID int64, item *models.Item) error
	EditCategories(ctx context.Context, accountID, itemID int64, categories []int64) error
	DeleteItems(ctx context.Context, accountID int64, itemIDs []int64) (int64, error)
	MarkPickedUp(ctx context.Context, accountID, itemID int64) error
}

type itemService struct {
	repository repository.ItemRepository
	logger     *logrus.Logger
}

func NewItemService(repo repository.ItemRepository, logger *logrus.Logger) ItemService {
	return &itemService{
		repository: repo,
		logger:     logger,
	}
}

func (s *itemService) PostItem(ctx context.Context, item *models.Item) error {
	if err := s.repository.CreateItem(ctx, item); err != nil {
		s.logger.WithFields(logrus.Fields{
			"account_id": item.AccountID,
			"item_name":  item.Name,
		}).WithError(err).Error("Failed to post item")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":    item.ID,
		"account_id": item.AccountID,
	}).Info("Item posted")
	return nil
}

func (s *itemService) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	item, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNoItem) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *itemService) GetItemsForAccount(ctx context.Context, accountID int64) ([]models.Item, error) {
	return s.repository.GetItemsForAccount(ctx, accountID)
}

// EditItem verifies ownership before touching the row; the repository also
// scopes the update by account id as a second guard.
func (s *itemService) EditItem(ctx context.Context, accountID int64, item *models.Item) error {
	existing, err := s.repository.GetItem(ctx, item.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoItem) {
			return ErrNotFound
		}
		return err
	}
	if existing.AccountID != accountID {
		return ErrNotOwner
	}

	item.AccountID = accountID

	// An edit without fresh uploads keeps the stored images; the update
	// writes all three image columns, so empty slots would wipe them.
	if item.Image1 == "" && item.Image2 == "" && item.Image3 == "" {
		item.Image1 = existing.Image1
		item.Image2 = existing.Image2
		item.Image3 = existing.Image3
	}

	if err := s.repository.UpdateItem(ctx, item); err != nil {
		s.logger.WithField("item_id", item.ID).WithError(err).Error("Failed to edit item")
		return err
	}

	if item.Categories != nil {
		return s.repository.SetCategories(ctx, item.ID, item.Categories)
	}
	return nil
}

func (s *itemService) EditCategories(ctx context.Context, accountID, itemID int64, categories []int64) error {
	existing, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNoItem) {
			return ErrNotFound
		}
		return err
	}
	if existing.AccountID != accountID {
		return ErrNotOwner
	}

	return s.repository.SetCategories(ctx, itemID, categories)
}

func (s *itemService) DeleteItems(ctx context.Context, accountID int64, itemIDs []int64) (int64, error) {
	count, err := s.repository.DeleteItems(ctx, accountID, itemIDs)
	if err != nil {
		s.logger.WithField("account_id", accountID).WithError(err).Error("Failed to delete items")
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"deleted":    count,
	}).Info("Items deleted")
	return count, nil
}

func (s *itemService) MarkPickedUp(ctx context.Context, accountID, itemID int64) error {
	existing, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNoItem) {
			return ErrNotFound
		}
		return err
	}
	if existing.AccountID != accountID {
		return ErrNotOwner
	}

	return s.repository.SetAvailability(ctx, itemID, false, true)
}
