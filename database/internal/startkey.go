// Package internal holds the continuation-token codec shared by the
// database backends.
package internal

import (
	"encoding/json"
	"fmt"

	"github.com/folio-sh/folio"
)

// StartKey is the decoded form of a pagination token: a JSON-encoded
// primary-key value, e.g. {"bookId":"..."}. Clients pass it back
// verbatim; the shape is part of the API contract.
type StartKey struct {
	BookID string `json:"bookId"`
}

// EncodeStartKey builds the continuation token for a page ending at
// bookID.
func EncodeStartKey(bookID string) string {
	b, _ := json.Marshal(StartKey{BookID: bookID})
	return string(b)
}

// DecodeStartKey parses a continuation token. An empty token decodes to
// the zero key (scan from the start). A malformed token fails with
// folio.ErrInvalidInput.
func DecodeStartKey(s string) (StartKey, error) {
	if s == "" {
		return StartKey{}, nil
	}

	var k StartKey
	if err := json.Unmarshal([]byte(s), &k); err != nil {
		return StartKey{}, fmt.Errorf("decode start key: %w", folio.ErrInvalidInput)
	}
	if k.BookID == "" {
		return StartKey{}, fmt.Errorf("decode start key: missing bookId: %w", folio.ErrInvalidInput)
	}
	return k, nil
}
