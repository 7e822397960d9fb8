package utils

import "github.com/google/uuid"

// NewID returns a random identifier that is unique for the process lifetime.
func NewID() string {
	return uuid.NewString()
}
