// Package store persists an agent's progress: the approximator's parameter blob
// and its exploration rate, keyed by the agent's name.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned by Load when nothing has been saved under the key.
var ErrNotFound = errors.New("store: record not found")

// Record is one agent's saved progress.
type Record struct {
	Params  []byte
	Epsilon float64
}

// Store loads and saves records.
type Store interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
}

// formatEpsilon uses the shortest representation that parses back to the same float64.
func formatEpsilon(e float64) string {
	return strconv.FormatFloat(e, 'f', -1, 64)
}

func parseEpsilon(s string) (float64, error) {
	e, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("store: parse epsilon %q: %w", s, err)
	}
	return e, nil
}
