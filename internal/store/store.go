// Package store persists the clan collection. The primary backend is a flat
// JSON file shared with external tooling; a Postgres backend implements the
// same contract and serves as an optional best-effort mirror. Every backend
// loads and saves the whole collection; there is no per-record access and no
// transactional isolation across callers (last write wins).
package store

import (
	"context"
	"errors"

	"github.com/knotbyt/BF6-application/internal/clan"
)

var (
	// ErrUnavailable means the backing medium could not be read or its
	// contents were structurally invalid.
	ErrUnavailable = errors.New("roster store unavailable")
	// ErrWriteFailed means the collection could not be written. No partial
	// write is observable by a subsequent Load.
	ErrWriteFailed = errors.New("roster store write failed")
)

// Store loads and saves the entire clan collection.
type Store interface {
	Load(ctx context.Context) ([]clan.Clan, error)
	Save(ctx context.Context, clans []clan.Clan) error
}
