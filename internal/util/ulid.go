package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose timestamp component is t.
func NewAt(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
