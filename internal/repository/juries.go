package repository

import "context"

// CreateJury persists a jury account. Duplicate usernames or emails yield ErrDuplicate.
func (r *Repository) CreateJury(ctx context.Context, jury *Jury) error {
	return r.executeWithRetry(ctx, "repository.create_jury", jury.Username, func() error {
		return r.db.WithContext(ctx).Create(jury).Error
	})
}

// FindJuryByUsername looks a jury account up by its unique username.
func (r *Repository) FindJuryByUsername(ctx context.Context, username string) (*Jury, error) {
	var jury Jury
	err := r.executeWithRetry(ctx, "repository.find_jury", username, func() error {
		return r.db.WithContext(ctx).First(&jury, "username = ?", username).Error
	})
	if err != nil {
		return nil, err
	}
	return &jury, nil
}

// FindJuryByEmail looks a jury account up by its unique email.
func (r *Repository) FindJuryByEmail(ctx context.Context, email string) (*Jury, error) {
	var jury Jury
	err := r.executeWithRetry(ctx, "repository.find_jury_by_email", "", func() error {
		return r.db.WithContext(ctx).First(&jury, "email = ?", email).Error
	})
	if err != nil {
		return nil, err
	}
	return &jury, nil
}
