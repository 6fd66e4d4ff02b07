package util

import (
	"github.com/google/uuid"
)

// NewUID generates a new question UID as a UUIDv4 string.
// UIDs are assigned once at creation and never change afterwards; both
// store backends use them as the primary key.
func NewUID() string {
	return uuid.NewString()
}
