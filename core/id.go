package core

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator returns a new candidate entity id.
type IDGenerator func() (string, error)

// Clock returns the current time.
type Clock func() time.Time

// NewID returns a new random id.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
