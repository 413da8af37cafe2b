package audit

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionType classifies a ledger entry.
type ActionType string

const (
	ActionStatusChanged     ActionType = "STATUS_CHANGED"
	ActionNotificationSent  ActionType = "NOTIFICATION_SENT"
	ActionSignatureRecorded ActionType = "SIGNATURE_RECORDED"
	ActionFieldUpdated      ActionType = "FIELD_UPDATED"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionStatusChanged, ActionNotificationSent, ActionSignatureRecorded, ActionFieldUpdated:
		return true
	}
	return false
}

// Entry is one immutable line of the ledger. NewStatus is set only on
// status-changed entries. Succeeded is false for failed notification dispatch.
type Entry struct {
	ID          int64      `json:"id"`
	DeedID      *int64     `json:"deed_id"`
	Actor       string     `json:"actor"`
	Action      ActionType `json:"action_type"`
	Description string     `json:"description"`
	NewStatus   string     `json:"new_status,omitempty"`
	Succeeded   bool       `json:"succeeded"`
	CreatedAt   time.Time  `json:"timestamp"`
}

// Cursor is a keyset position within a deed's ledger, ordered by (CreatedAt, ID).
// The zero Cursor points before the first entry.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

func (c Cursor) IsZero() bool { return c.ID == 0 && c.CreatedAt.IsZero() }

// After returns the cursor positioned on e.
func After(e *Entry) Cursor {
	return Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := fmt.Sprintf("%d:%d", c.CreatedAt.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

var ErrInvalidCursor = errors.New("invalid ledger cursor")

func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Cursor{}, ErrInvalidCursor
	}
	ns, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	entryID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || entryID <= 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: time.Unix(0, ns).UTC(), ID: entryID}, nil
}
