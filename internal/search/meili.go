package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxClans = "clanhub_clans"

// Meili indexes and searches clans via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.SugaredLogger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the clan index. The
// client starts unhealthy if the initial connection fails; the background
// health loop picks it up when it recovers.
func NewMeili(url, apiKey string, logger *zap.SugaredLogger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warnw("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxClans,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debugw("create clan index (may already exist)", "error", err)
	}

	index := m.client.Index(idxClans)
	filterable := []interface{}{"region", "platform"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warnw("update filterable attributes", "error", err)
	}
	searchable := []string{"name", "tag", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warnw("update searchable attributes", "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring clan index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the clan index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	request := &meili.SearchRequest{Limit: limit}
	var filters []string
	if q.Region != "" {
		filters = append(filters, fmt.Sprintf("region = %q", q.Region))
	}
	if q.Platform != "" {
		filters = append(filters, fmt.Sprintf("platform = %q", q.Platform))
	}
	if len(filters) > 0 {
		request.Filter = filters
	}

	resp, err := m.client.Index(idxClans).Search(q.Text, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:          decodeString(hit, "id"),
		Name:        decodeString(hit, "name"),
		Tag:         decodeString(hit, "tag"),
		Description: decodeString(hit, "description"),
		Region:      decodeString(hit, "region"),
		Platform:    decodeString(hit, "platform"),
		Members:     decodeInt(hit, "members"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

// IndexClan adds or updates one clan in the index.
func (m *Meili) IndexClan(record ClanRecord) error {
	_, err := m.client.Index(idxClans).AddDocuments([]ClanRecord{record}, nil)
	return err
}

// IndexClans bulk-indexes clans.
func (m *Meili) IndexClans(records []ClanRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxClans).AddDocuments(records, nil)
	return err
}

// DeleteClan removes a clan from the index.
func (m *Meili) DeleteClan(id string) error {
	_, err := m.client.Index(idxClans).DeleteDocument(id, nil)
	return err
}
