package util

import "github.com/google/uuid"

// GenerateUUID returns a random (v4) UUID string. It panics only if the
// system randomness source fails.
func GenerateUUID() string {
	return uuid.New().String()
}
