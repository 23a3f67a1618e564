package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when the caller does not ask for one.
	DefaultLimit = 20
	// MaxLimit caps any single page regardless of what the caller asks for.
	MaxLimit = 100

	tokenSeparator = "~"
)

// Token marks the last row of a served page. Listings order by
// (created_at DESC, id DESC), so the next page starts strictly after it.
type Token struct {
	LastCreatedAt time.Time
	LastID        uuid.UUID
}

// Clamp normalizes a requested page size into [1, MaxLimit].
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// FetchSize is Clamp plus one sentinel row, used to detect whether another
// page exists without a second query.
func FetchSize(limit int) int {
	return Clamp(limit) + 1
}

// Encode renders the token as an opaque URL-safe string.
func (t Token) Encode() string {
	raw := t.LastCreatedAt.UTC().Format(time.RFC3339Nano) + tokenSeparator + t.LastID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. An empty input yields a nil
// token, meaning the first page.
func Decode(value string) (*Token, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	createdPart, idPart, ok := strings.Cut(string(raw), tokenSeparator)
	if !ok {
		return nil, fmt.Errorf("malformed page token")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdPart)
	if err != nil {
		return nil, fmt.Errorf("page token timestamp: %w", err)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return nil, fmt.Errorf("page token id: %w", err)
	}
	return &Token{LastCreatedAt: createdAt, LastID: id}, nil
}
