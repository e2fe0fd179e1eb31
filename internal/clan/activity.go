package clan

import (
	"fmt"
	"sort"
	"time"
)

// MaxActivityEntries bounds each clan's activity log; the oldest entries are
// evicted first once the bound is exceeded.
const MaxActivityEntries = 50

// Kind classifies an activity entry.
type Kind string

const (
	KindMemberJoined  Kind = "member_joined"
	KindMemberLeft    Kind = "member_left"
	KindMatchVictory  Kind = "match_victory"
	KindTournamentWin Kind = "tournament_win"
	KindSquadSession  Kind = "squad_session"
	KindOther         Kind = "other"
)

var activityKinds = []Kind{
	KindMemberJoined, KindMemberLeft, KindMatchVictory,
	KindTournamentWin, KindSquadSession, KindOther,
}

func (k Kind) Valid() bool {
	for _, kind := range activityKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// ActivityEntry is one line in a clan's activity log. Timestamps are stored;
// relative ages are derived at render time.
type ActivityEntry struct {
	Type      Kind      `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedEntry is the rendered form of an activity entry.
type FeedEntry struct {
	Type      Kind      `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	TimeAgo   string    `json:"timeAgo"`
}

// Log appends an activity entry and evicts from the front past the bound.
func (c *Clan) Log(kind Kind, message string, now time.Time) {
	c.Activity = append(c.Activity, ActivityEntry{Type: kind, Message: message, Timestamp: now})
	if excess := len(c.Activity) - MaxActivityEntries; excess > 0 {
		c.Activity = c.Activity[excess:]
	}
}

// LogEvents records role-transition events as activity entries, preserving
// the order the state machine produced them in.
func (c *Clan) LogEvents(events []Event, now time.Time) {
	for _, event := range events {
		c.Log(KindOther, event.Message(), now)
	}
}

// Feed returns activity entries most-recent-first, capped at limit, each
// annotated with a relative age computed against now.
func (c *Clan) Feed(limit int, now time.Time) []FeedEntry {
	entries := make([]ActivityEntry, len(c.Activity))
	copy(entries, c.Activity)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	feed := make([]FeedEntry, 0, len(entries))
	for _, entry := range entries {
		feed = append(feed, FeedEntry{
			Type:      entry.Type,
			Message:   entry.Message,
			Timestamp: entry.Timestamp,
			TimeAgo:   TimeAgo(entry.Timestamp, now),
		})
	}
	return feed
}

// TimeAgo renders a coarse relative age: seconds bucket to "just now", then
// minutes, hours, days and weeks, flooring at each boundary.
func TimeAgo(ts, now time.Time) string {
	seconds := int64(now.Sub(ts).Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%d minutes ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%d hours ago", seconds/3600)
	case seconds < 604800:
		return fmt.Sprintf("%d days ago", seconds/86400)
	default:
		return fmt.Sprintf("%d weeks ago", seconds/604800)
	}
}
