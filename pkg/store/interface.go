package store

import (
	"errors"

	"github.com/mcclellann/emiTracker/pkg/models"
)

// ErrNotFound is returned when a loan profile does not exist.
var ErrNotFound = errors.New("loan not found")

// Storage defines the interface for persisting loan profiles and their state.
type Storage interface {
	CreateProfile(profile *models.LoanProfile) error
	GetProfile(id string) (*models.LoanProfile, error)
	UpdateProfile(profile *models.LoanProfile) error
	DeleteProfile(id string) error
	GetAllProfiles() ([]*models.LoanProfile, error)

	// SaveState stores one serialized blob of a profile under key. LoadState
	// returns nil without error when nothing was stored.
	SaveState(profileID, key string, data []byte) error
	LoadState(profileID, key string) ([]byte, error)

	SetCurrentProfileID(id string) error
	GetCurrentProfileID() (string, error)

	Close() error
}
