package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"
)

// ListItems returns every item ordered by id.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := r.executeWithRetry(ctx, "repository.list_items", "", func() error {
		return r.db.WithContext(ctx).Order("id").Find(&items).Error
	})
	return items, err
}

// FindItem retrieves one item.
func (r *Repository) FindItem(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := r.executeWithRetry(ctx, "repository.find_item", itemRef(id), func() error {
		return r.db.WithContext(ctx).First(&item, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem persists a new item.
func (r *Repository) CreateItem(ctx context.Context, item *Item) error {
	return r.executeWithRetry(ctx, "repository.create_item", "", func() error {
		return r.db.WithContext(ctx).Create(item).Error
	})
}

// UpdateItem applies the non-nil fields of update and returns the new state.
func (r *Repository) UpdateItem(ctx context.Context, id uint, update ItemUpdate) (*Item, error) {
	var item Item
	err := r.executeWithRetry(ctx, "repository.update_item", itemRef(id), func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&item, id).Error; err != nil {
				return err
			}
			changes := map[string]interface{}{}
			if update.Name != nil {
				changes["name"] = *update.Name
			}
			if update.Description != nil {
				changes["description"] = *update.Description
			}
			if update.Image != nil {
				changes["image"] = *update.Image
			}
			if len(changes) == 0 {
				return nil
			}
			if err := tx.Model(&item).Updates(changes).Error; err != nil {
				return err
			}
			return tx.First(&item, id).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item and returns what was deleted.
func (r *Repository) DeleteItem(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := r.executeWithRetry(ctx, "repository.delete_item", itemRef(id), func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&item, id).Error; err != nil {
				return err
			}
			return tx.Delete(&Item{}, id).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func itemRef(id uint) string {
	return "item-" + strconv.FormatUint(uint64(id), 10)
}
