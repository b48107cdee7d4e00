package models

import (
	"fmt"
	"strings"
)

// SearchKey identifies a cached hotel search.
type SearchKey struct {
	Location string
	Stay     Stay
}

// String renders "from:to:location" with the location lowercased.
func (k SearchKey) String() string {
	return k.Stay.From.Format(DateLayout) + ":" + k.Stay.To.Format(DateLayout) + ":" +
		strings.ToLower(strings.TrimSpace(k.Location))
}

func ParseSearchKey(s string) (SearchKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return SearchKey{}, fmt.Errorf("malformed search key %q", s)
	}
	stay, err := ParseStay(parts[0], parts[1])
	if err != nil {
		return SearchKey{}, err
	}
	return SearchKey{Location: parts[2], Stay: stay}, nil
}
