// Package pagination parses list query parameters and encodes keyset cursors shared by the
// Firestore and Postgres order repositories.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 50
	// MaxPageSize caps pageSize to prevent unbounded queries.
	MaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params are the raw list inputs read from the query string.
type Params struct {
	PageSize  int
	PageToken string
}

// FromRequest reads pageSize and pageToken. The token is validated but left encoded.
func FromRequest(r *http.Request) (Params, error) {
	query := r.URL.Query()
	params := Params{PageSize: DefaultPageSize, PageToken: strings.TrimSpace(query.Get("pageToken"))}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
		}
		params.PageSize = min(size, MaxPageSize)
	}
	if _, err := DecodeCursor(params.PageToken); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Cursor identifies the last row of a page ordered by (CreatedAt desc, ID desc).
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// EncodeCursor serialises a cursor into an opaque URL-safe token.
func EncodeCursor(cursor Cursor) string {
	if cursor.IsZero() {
		return ""
	}
	data, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by EncodeCursor. Empty yields the zero cursor.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil || cursor.ID == "" {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidPageToken)
	}
	return cursor, nil
}
