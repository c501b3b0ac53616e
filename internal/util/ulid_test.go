package util

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsValidULID(t *testing.T) {
	id := New()
	assert.Len(t, id, ulid.EncodedSize)

	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, New())
}

func TestNewAt_EncodesTimestamp(t *testing.T) {
	at := time.Date(2025, time.March, 4, 5, 6, 7, 0, time.UTC)
	parsed, err := ulid.Parse(NewAt(at))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
}
