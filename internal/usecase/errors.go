package usecase

import (
	"errors"
	"strings"

	"github.com/example/artifact-api/internal/repository"
)

var (
	ErrNotFound           = repository.ErrNotFound
	ErrAnalysisPending    = errors.New("analysis is still processing")
	ErrJuryExists         = errors.New("jury with this username already exists")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrInvalidImageURL    = errors.New("image url must be an http(s) or gs:// url")
)

// ValidationError lists the input problems of a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Details, "; ")
}

func required(fields map[string]string, order ...string) error {
	var details []string
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			details = append(details, name+" is required")
		}
	}
	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Details: details}
}
