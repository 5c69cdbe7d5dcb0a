package utils

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashJSON hashes the JSON encoding of v. Struct fields encode in declaration
// order and map keys sorted, so equal values produce equal keys.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value for hashing: %w", err)
	}
	return HashString(string(data)), nil
}
