package search

import (
	"context"
	"strings"
	"time"

	"github.com/knotbyt/BF6-application/internal/clan"
	"github.com/knotbyt/BF6-application/internal/store"
)

// StoreScan implements Searcher by scanning the roster store. It is the
// fallback when Meilisearch is not configured or unhealthy; the collection
// is small enough that a linear scan is fine.
type StoreScan struct {
	store store.Store
}

func NewStoreScan(s store.Store) *StoreScan {
	return &StoreScan{store: s}
}

// Healthy always returns true - if the roster store is down, so is the app.
func (s *StoreScan) Healthy() bool {
	return true
}

// Search does a case-insensitive substring match over name, tag and
// description, with exact region/platform filters.
func (s *StoreScan) Search(q Query) ([]Result, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clans, err := s.store.Load(ctx)
	if err != nil {
		return nil, 0, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var results []Result
	total := 0
	for i := range clans {
		c := &clans[i]
		if !matches(c, needle, q.Region, q.Platform) {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, Result{
				ID:          c.ID,
				Name:        c.Name,
				Tag:         c.Tag,
				Description: c.Description,
				Region:      c.Region,
				Platform:    c.Platform,
				Members:     len(c.MemberList),
			})
		}
	}
	return results, total, nil
}

func matches(c *clan.Clan, needle, region, platform string) bool {
	if region != "" && c.Region != region {
		return false
	}
	if platform != "" && c.Platform != platform {
		return false
	}
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Tag), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle)
}
