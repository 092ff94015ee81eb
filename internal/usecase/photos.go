package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/objectstore"
	"github.com/example/artifact-api/internal/repository"
)

// PhotoRepository defines the persistence operations needed for photos.
type PhotoRepository interface {
	ListPhotos(ctx context.Context) ([]repository.Photo, error)
	CreatePhoto(ctx context.Context, photo *repository.Photo) error
}

// CreatePhotoInput carries a submitted photo.
type CreatePhotoInput struct {
	Name       string
	ImageTitle string
	Image      *Upload
}

// PhotoUseCase implements photo submissions.
type PhotoUseCase struct {
	repo   PhotoRepository
	store  objectstore.Store
	logger *zap.Logger
}

// NewPhotoUseCase constructs a new use case instance.
func NewPhotoUseCase(repo PhotoRepository, store objectstore.Store, logger *zap.Logger) *PhotoUseCase {
	return &PhotoUseCase{repo: repo, store: store, logger: logger.Named("photo_usecase")}
}

func (uc *PhotoUseCase) List(ctx context.Context) ([]repository.Photo, error) {
	return uc.repo.ListPhotos(ctx)
}

// Create validates input, uploads the image if present and stores the photo.
func (uc *PhotoUseCase) Create(ctx context.Context, in CreatePhotoInput) (*repository.Photo, error) {
	if err := required(map[string]string{"name": in.Name, "imageTitle": in.ImageTitle}, "name", "imageTitle"); err != nil {
		return nil, err
	}
	photo := &repository.Photo{Name: strings.TrimSpace(in.Name), ImageTitle: strings.TrimSpace(in.ImageTitle)}
	if in.Image != nil {
		url, err := uploadImage(ctx, uc.store, *in.Image)
		if err != nil {
			uc.logger.Error("photo upload failed", zap.Error(err))
			return nil, err
		}
		photo.URLPhoto = &url
	}
	if err := uc.repo.CreatePhoto(ctx, photo); err != nil {
		return nil, err
	}
	return photo, nil
}
