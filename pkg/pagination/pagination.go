package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a list request: how many rows and where the previous page ended.
type Params struct {
	Limit  int
	Cursor string
}

// Window returns the normalized page size and the number of rows to fetch.
// The extra row tells Trim whether another page exists.
func (p Params) Window() (limit, fetch int) {
	limit = p.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return limit, limit + 1
}

// Trim cuts rows down to limit and reports the last kept row when more rows
// follow it.
func Trim[T any](rows []T, limit int) ([]T, *T) {
	if limit <= 0 || len(rows) <= limit {
		return rows, nil
	}
	rows = rows[:limit]
	return rows, &rows[limit-1]
}

type token struct {
	Kind string          `json:"k"`
	Pos  json.RawMessage `json:"p"`
}

// EncodeToken wraps a keyset position into an opaque, URL-safe string. kind
// names the list the position belongs to.
func EncodeToken(kind string, pos any) (string, error) {
	raw, err := json.Marshal(pos)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	b, err := json.Marshal(token{Kind: kind, Pos: raw})
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeToken reverses EncodeToken. A blank value yields ok=false and no error.
func DecodeToken(value, kind string, pos any) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return false, fmt.Errorf("decode cursor: %w", err)
	}
	var t token
	if err := json.Unmarshal(b, &t); err != nil {
		return false, fmt.Errorf("decode cursor: %w", err)
	}
	if t.Kind != kind {
		return false, fmt.Errorf("cursor belongs to %q, not %q", t.Kind, kind)
	}
	if err := json.Unmarshal(t.Pos, pos); err != nil {
		return false, fmt.Errorf("decode cursor position: %w", err)
	}
	return true, nil
}
