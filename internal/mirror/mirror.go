// Package mirror replicates the clan collection into the secondary Postgres
// store. Replication is write-behind and best-effort: the primary file store
// is the source of truth, failures here are logged and never surfaced to the
// caller, and nothing reconciles the two backends if they diverge.
package mirror

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/clan"
	"github.com/knotbyt/BF6-application/internal/store"
)

type Replicator struct {
	secondary *store.PostgresStore
	logger    *zap.SugaredLogger
	timeout   time.Duration
}

func New(secondary *store.PostgresStore, logger *zap.SugaredLogger) *Replicator {
	return &Replicator{
		secondary: secondary,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// Replicate pushes the collection to the secondary store. Safe to call on a
// nil receiver (mirroring disabled).
func (r *Replicator) Replicate(clans []clan.Clan) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.secondary.Save(ctx, clans); err != nil {
		r.logger.Warnw("mirror replication failed", "clans", len(clans), "error", err)
	}
}

// Healthy reports whether the secondary store is reachable. Nil receiver
// reports false.
func (r *Replicator) Healthy(ctx context.Context) bool {
	if r == nil {
		return false
	}
	return r.secondary.Ping(ctx) == nil
}
