package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 10, 11, 12, 13000, time.UTC)
	c := After(&Entry{ID: 42, CreatedAt: ts})

	token := c.Encode()
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), decoded.ID)
	assert.True(t, ts.Equal(decoded.CreatedAt))
}

func TestCursor_Zero(t *testing.T) {
	assert.Equal(t, "", Cursor{}.Encode())

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestDecodeCursor_Rejects(t *testing.T) {
	for _, token := range []string{"!!!", "bm9jb2xvbg", "YWJjOjE", "MTIzOi01"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestActionType_Valid(t *testing.T) {
	assert.True(t, ActionStatusChanged.Valid())
	assert.True(t, ActionFieldUpdated.Valid())
	assert.False(t, ActionType("DELETED").Valid())
}
