package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/objectstore"
	"github.com/example/artifact-api/internal/repository"
)

// ItemRepository defines the persistence operations needed for items.
type ItemRepository interface {
	ListItems(ctx context.Context) ([]repository.Item, error)
	FindItem(ctx context.Context, id uint) (*repository.Item, error)
	CreateItem(ctx context.Context, item *repository.Item) error
	UpdateItem(ctx context.Context, id uint, update repository.ItemUpdate) (*repository.Item, error)
	DeleteItem(ctx context.Context, id uint) (*repository.Item, error)
}

// CreateItemInput carries a new item and its optional image.
type CreateItemInput struct {
	Name        string
	Description string
	Image       *Upload
}

// ItemUseCase implements the item catalogue.
type ItemUseCase struct {
	repo   ItemRepository
	store  objectstore.Store
	logger *zap.Logger
}

// NewItemUseCase constructs a new use case instance.
func NewItemUseCase(repo ItemRepository, store objectstore.Store, logger *zap.Logger) *ItemUseCase {
	return &ItemUseCase{repo: repo, store: store, logger: logger.Named("item_usecase")}
}

func (uc *ItemUseCase) List(ctx context.Context) ([]repository.Item, error) {
	return uc.repo.ListItems(ctx)
}

func (uc *ItemUseCase) Get(ctx context.Context, id uint) (*repository.Item, error) {
	return uc.repo.FindItem(ctx, id)
}

// Create validates input, uploads the image if present and stores the item.
func (uc *ItemUseCase) Create(ctx context.Context, in CreateItemInput) (*repository.Item, error) {
	if err := required(map[string]string{"name": in.Name, "description": in.Description}, "name", "description"); err != nil {
		return nil, err
	}
	item := &repository.Item{Name: strings.TrimSpace(in.Name), Description: strings.TrimSpace(in.Description)}
	if in.Image != nil {
		url, err := uploadImage(ctx, uc.store, *in.Image)
		if err != nil {
			uc.logger.Error("item image upload failed", zap.Error(err))
			return nil, err
		}
		item.Image = &url
	}
	if err := uc.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update changes the provided fields. Provided fields must not be blank.
func (uc *ItemUseCase) Update(ctx context.Context, id uint, update repository.ItemUpdate) (*repository.Item, error) {
	var details []string
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		details = append(details, "name must not be empty")
	}
	if update.Description != nil && strings.TrimSpace(*update.Description) == "" {
		details = append(details, "description must not be empty")
	}
	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return uc.repo.UpdateItem(ctx, id, update)
}

func (uc *ItemUseCase) Delete(ctx context.Context, id uint) (*repository.Item, error) {
	return uc.repo.DeleteItem(ctx, id)
}

func uploadImage(ctx context.Context, store objectstore.Store, upload Upload) (string, error) {
	url, err := store.Put(ctx, objectstore.Object{
		Name:        objectstore.ObjectName(upload.Filename),
		ContentType: upload.ContentType,
		Data:        upload.Data,
	})
	if err != nil {
		return "", logging.NewOperationError("usecase.upload_image", "", err)
	}
	return url, nil
}
