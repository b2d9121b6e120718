package repository

import (
	stderrors "errors"

	"github.com/example/buildco/backend/internal/models"
)

// ErrNotFound is returned when no row matches; it is the shared models sentinel
// so callers above the repository can match on either name.
var ErrNotFound = models.ErrNotFound

// ErrDuplicateReference is returned when a reference number collides with an
// existing request. The service regenerates and retries.
var ErrDuplicateReference = stderrors.New("duplicate reference number")
