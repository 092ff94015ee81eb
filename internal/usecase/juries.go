package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/auth"
	"github.com/example/artifact-api/internal/repository"
)

// JuryRepository defines the persistence operations needed for jury accounts.
type JuryRepository interface {
	CreateJury(ctx context.Context, jury *repository.Jury) error
	FindJuryByUsername(ctx context.Context, username string) (*repository.Jury, error)
	FindJuryByEmail(ctx context.Context, email string) (*repository.Jury, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject, username string) (string, time.Time, error)
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Jury      *repository.Jury
}

// JuryUseCase registers jury members and logs them in.
type JuryUseCase struct {
	repo   JuryRepository
	issuer TokenIssuer
	logger *zap.Logger
}

// NewJuryUseCase constructs a new use case instance.
func NewJuryUseCase(repo JuryRepository, issuer TokenIssuer, logger *zap.Logger) *JuryUseCase {
	return &JuryUseCase{repo: repo, issuer: issuer, logger: logger.Named("jury_usecase")}
}

// Register creates a jury account with a bcrypt hashed password.
func (uc *JuryUseCase) Register(ctx context.Context, username, password, email string) (*repository.Jury, error) {
	if err := required(map[string]string{"username": username, "password": password, "email": email}, "username", "password", "email"); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Details: []string{"email is invalid"}}
	}

	if _, err := uc.repo.FindJuryByUsername(ctx, username); err == nil {
		return nil, ErrJuryExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := uc.repo.FindJuryByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	jury := &repository.Jury{Username: username, PasswordHash: hash, Email: email}
	if err := uc.repo.CreateJury(ctx, jury); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, uc.duplicateCause(ctx, username)
		}
		return nil, err
	}
	uc.logger.Info("jury registered", zap.String("username", username))
	return jury, nil
}

// Login verifies credentials and issues an access token.
func (uc *JuryUseCase) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := required(map[string]string{"username": username, "password": password}, "username", "password"); err != nil {
		return nil, err
	}
	jury, err := uc.repo.FindJuryByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(jury.PasswordHash, password) {
		uc.logger.Warn("invalid login attempt", zap.String("username", jury.Username))
		return nil, ErrInvalidCredentials
	}
	token, expiresAt, err := uc.issuer.Issue(strconv.FormatUint(uint64(jury.ID), 10), jury.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Jury: jury}, nil
}

// duplicateCause tells which unique column a concurrent registration hit.
func (uc *JuryUseCase) duplicateCause(ctx context.Context, username string) error {
	if _, err := uc.repo.FindJuryByUsername(ctx, username); err == nil {
		return ErrJuryExists
	}
	return ErrEmailTaken
}
