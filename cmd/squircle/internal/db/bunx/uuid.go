package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUID for primary keys. Panics only if the
// entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
