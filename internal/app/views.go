package app

import (
	"time"

	"github.com/knotbyt/BF6-application/internal/clan"
)

// activityFeedLimit caps the rendered activity feed on the detail view.
const activityFeedLimit = 20

// MemberView is one roster entry as shown to callers.
type MemberView struct {
	Username string    `json:"username"`
	Role     clan.Role `json:"role"`
}

// ClanSummary is the listing shape of a clan. Members is always recomputed
// from the roster, never read from the stored counter.
type ClanSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Tag         string  `json:"tag"`
	Owner       string  `json:"owner"`
	Description string  `json:"description"`
	Members     int     `json:"members"`
	Region      string  `json:"region"`
	Platform    string  `json:"platform"`
	Founded     string  `json:"founded"`
	Image       *string `json:"image"`
	Color       string  `json:"color"`
}

// ClanDetail is the full externally visible shape of a clan: summary plus
// roster and the time-annotated activity feed.
type ClanDetail struct {
	ClanSummary
	MemberList []MemberView     `json:"memberList"`
	Activity   []clan.FeedEntry `json:"activity"`
}

func summarize(c *clan.Clan) ClanSummary {
	return ClanSummary{
		ID:          c.ID,
		Name:        c.Name,
		Tag:         c.Tag,
		Owner:       c.Owner,
		Description: c.Description,
		Members:     len(c.MemberList),
		Region:      c.Region,
		Platform:    c.Platform,
		Founded:     c.Founded,
		Image:       c.Image,
		Color:       c.Color,
	}
}

func detail(c *clan.Clan, now time.Time) ClanDetail {
	members := make([]MemberView, 0, len(c.MemberList))
	for _, m := range c.MemberList {
		members = append(members, MemberView{Username: m.Username, Role: m.Role})
	}
	return ClanDetail{
		ClanSummary: summarize(c),
		MemberList:  members,
		Activity:    c.Feed(activityFeedLimit, now),
	}
}
