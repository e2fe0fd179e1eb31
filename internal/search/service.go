package search

import (
	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/clan"
)

// Service is the facade that tries Meilisearch first and falls back to a
// roster-store scan.
type Service struct {
	meili  *Meili
	scan   *StoreScan
	logger *zap.SugaredLogger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, scan *StoreScan, logger *zap.SugaredLogger) *Service {
	return &Service{meili: meili, scan: scan, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise scans the store.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warnw("meilisearch error, falling back to store scan", "error", err)
	}

	results, total, err := s.scan.Search(q)
	if err != nil {
		s.logger.Warnw("store scan search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexClan pushes one clan into the index (fire-and-forget).
func (s *Service) IndexClan(c clan.Clan) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := recordFor(c)
	go func() {
		if err := s.meili.IndexClan(record); err != nil {
			s.logger.Warnw("index clan failed", "clan", record.ID, "error", err)
		}
	}()
}

// IndexCollection bulk-indexes the whole collection, used at startup.
func (s *Service) IndexCollection(clans []clan.Clan) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := make([]ClanRecord, 0, len(clans))
	for _, c := range clans {
		records = append(records, recordFor(c))
	}
	go func() {
		if err := s.meili.IndexClans(records); err != nil {
			s.logger.Warnw("bulk index failed", "clans", len(records), "error", err)
		}
	}()
}

// DeleteClan removes a clan from the index (fire-and-forget).
func (s *Service) DeleteClan(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteClan(id); err != nil {
			s.logger.Warnw("delete clan from index failed", "clan", id, "error", err)
		}
	}()
}

// Healthy reports whether the Meilisearch backend is reachable. The scan
// fallback means search itself is always available.
func (s *Service) Healthy() bool {
	return s.meili != nil && s.meili.Healthy()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}

func recordFor(c clan.Clan) ClanRecord {
	return ClanRecord{
		ID:          c.ID,
		Name:        c.Name,
		Tag:         c.Tag,
		Description: c.Description,
		Region:      c.Region,
		Platform:    c.Platform,
		Members:     len(c.MemberList),
	}
}
