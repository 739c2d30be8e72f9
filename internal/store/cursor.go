package store

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// Position is a table's place in a newest-first listing.
type Position struct {
	Created time.Time `json:"created"`
	ID      uuid.UUID `json:"id"`
}

// before reports whether p sorts ahead of o: newer first, then by id.
func (p Position) before(o Position) bool {
	if !p.Created.Equal(o.Created) {
		return p.Created.After(o.Created)
	}
	return p.ID.String() > o.ID.String()
}

// Cursor is the decoded state of a page token.
type Cursor struct {
	After Position `json:"after"`
	// FilterHash invalidates tokens when the filter changes.
	FilterHash string `json:"filter_hash,omitempty"`
}

// EncodeCursor encodes a cursor to an opaque base64 string.
func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor decodes a page token and checks it was issued for filter.
func DecodeCursor(token, filter string) (Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, apperrors.Wrap(apperrors.CodeInvalidCursor, "decode cursor", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, apperrors.Wrap(apperrors.CodeInvalidCursor, "unmarshal cursor", err)
	}
	if c.FilterHash != HashFilter(filter) {
		return Cursor{}, apperrors.New(apperrors.CodeInvalidCursor, "filter changed since cursor was created")
	}
	return c, nil
}

// HashFilter computes a short hash of the filter string for cursor validation.
func HashFilter(filter string) string {
	if filter == "" {
		return ""
	}
	h := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(h[:8])
}

// pager walks a newest-first listing from an optional cursor.
type pager struct {
	filter string
	limit  int
	after  *Position
}

func newPager(q Query, filter string) (*pager, error) {
	p := &pager{filter: filter, limit: q.limit()}
	if q.Cursor != "" {
		c, err := DecodeCursor(q.Cursor, filter)
		if err != nil {
			return nil, err
		}
		p.after = &c.After
	}
	return p, nil
}

// include reports whether pos lies past the cursor.
func (p *pager) include(pos Position) bool {
	return p.after == nil || p.after.before(pos)
}

// next returns the token for the page after last, or "" when more is false.
func (p *pager) next(last Position, more bool) (string, error) {
	if !more {
		return "", nil
	}
	return EncodeCursor(Cursor{After: last, FilterHash: HashFilter(p.filter)})
}
