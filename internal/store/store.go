// Package store provides the key-value record store the order backend persists into.
//
// Three kinds of data live side by side, separated by key prefix:
//   - JSON records (Get, Set, SetNX, ScanPrefix)
//   - append-only string lists (Append, Members)
//   - integer counters with compare-and-swap (Counter, SwapCounter)
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned when a record key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Record is a single key/value pair returned by ScanPrefix.
type Record struct {
	Key   string
	Value []byte
}

// Store is the contract every backend implements.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetNX writes value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	// ScanPrefix returns every record whose key starts with prefix, sorted by key.
	ScanPrefix(ctx context.Context, prefix string) ([]Record, error)

	// Append atomically adds member to the end of the list stored at key.
	Append(ctx context.Context, key, member string) error
	// Members returns the list at key in insertion order; a missing list is empty.
	Members(ctx context.Context, key string) ([]string, error)

	// Counter returns the integer at key; a missing counter reads as 0.
	Counter(ctx context.Context, key string) (int64, error)
	// SwapCounter sets key to next only if it currently holds old.
	SwapCounter(ctx context.Context, key string, old, next int64) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// GetJSON loads key and decodes it into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON encodes value and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}

// CreateJSON encodes value and stores it only if key is absent.
func CreateJSON(ctx context.Context, s Store, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return s.SetNX(ctx, key, raw)
}

func hasPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
