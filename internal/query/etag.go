package query

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
)

// CanonicalJSON encodes v with all object keys sorted, so the same logical
// record always serializes to the same bytes.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	// Go marshals map keys in sorted order.
	return json.Marshal(generic)
}

// ETag derives a strong entity tag from a canonical response body.
func ETag(body []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sha1.Sum(body)))
}
