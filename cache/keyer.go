package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Keyer generates deterministic cache keys from a request's method and
// parameters.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration
// or construction order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key from a method name and its parameters.
	Key(method string, params any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: fp:<method>:<hash>
// where hash is the first 32 hex characters of SHA-256(method NUL canonical JSON(params)).
func (k *DefaultKeyer) Key(method string, params any) (string, error) {
	if strings.TrimSpace(method) == "" || strings.ContainsAny(method, "\n\r") {
		return "", ErrInvalidKey
	}

	canonical, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(canonical)
	sum := h.Sum(nil)

	key := "fp:" + method + ":" + hex.EncodeToString(sum[:16])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Fingerprint returns the cache key of a request using the default keyer.
func Fingerprint(method string, params any) (string, error) {
	return defaultKeyer.Key(method, params)
}

var defaultKeyer = NewDefaultKeyer()

// canonicalize produces a deterministic JSON representation of v.
// Object keys are sorted at every depth and numbers keep their literal form,
// so large integers never collapse onto the same key.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string, bool, json.Number:
		return json.Marshal(val)
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case json.RawMessage:
		return canonicalizeJSON(val)
	default:
		// Structs and typed maps go through their JSON form so that they
		// key the same as the equivalent generic document
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return canonicalizeJSON(data)
	}
}

func canonicalizeJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON document")
	}
	return canonicalize(decoded)
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
