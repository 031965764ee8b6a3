package domain

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique document IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// UUIDGenerator generates random (version 4) UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// SystemClock reports the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
