package repository

import "context"

// ListPhotos returns every photo, newest first.
func (r *Repository) ListPhotos(ctx context.Context) ([]Photo, error) {
	var photos []Photo
	err := r.executeWithRetry(ctx, "repository.list_photos", "", func() error {
		return r.db.WithContext(ctx).Order("created_at desc").Find(&photos).Error
	})
	return photos, err
}

// CreatePhoto persists a new photo.
func (r *Repository) CreatePhoto(ctx context.Context, photo *Photo) error {
	return r.executeWithRetry(ctx, "repository.create_photo", "", func() error {
		return r.db.WithContext(ctx).Create(photo).Error
	})
}
