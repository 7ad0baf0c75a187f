// Package ids generates worker/visit identifiers and capture timestamps.
package ids

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is fixed-width UTC with millisecond precision, so string
// order equals chronological order. time.RFC3339Nano trims trailing zeros
// and does not have this property.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NewID returns a random (version 4) UUID string.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current UTC time formatted with TimestampLayout.
func Now() string {
	return Format(time.Now())
}

func Format(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
