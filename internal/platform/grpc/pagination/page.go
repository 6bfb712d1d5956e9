// Package pagination normalizes page sizes and keyset page tokens for list RPCs.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPageToken indicates a page token could not be decoded.
var ErrInvalidPageToken = errors.New("invalid page token")

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Cursor is the keyset position of the last row on a page ordered by
// (created_at DESC, id DESC).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeCursor renders a cursor as an opaque page token.
func EncodeCursor(cursor Cursor) string {
	raw := strconv.FormatInt(cursor.CreatedAt.UTC().UnixMilli(), 10) + "|" + cursor.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a page token produced by EncodeCursor.
// An empty token yields a zero cursor and ok=false.
func DecodeCursor(token string) (cursor Cursor, ok bool, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	millis, id, found := strings.Cut(string(raw), "|")
	if !found || strings.TrimSpace(id) == "" {
		return Cursor{}, false, ErrInvalidPageToken
	}
	value, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return Cursor{CreatedAt: time.UnixMilli(value).UTC(), ID: id}, true, nil
}
