// Package clan holds the domain core: the clan record, its roster and the
// role-hierarchy rules that govern it. It performs no I/O; persistence and
// transport live elsewhere.
package clan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultColor = "#4A9EFF"

var Regions = []string{"NA East", "NA West", "EU West", "EU Central", "Asia Pacific"}

var Platforms = []string{"PC", "Xbox", "PlayStation", "Cross-play"}

var (
	ErrNotAMember         = errors.New("not a member of this clan")
	ErrAlreadyMember      = errors.New("already a member of this clan")
	ErrCannotRemoveLeader = errors.New("cannot remove the clan leader")
	ErrNoSuccessor        = errors.New("no officer available to take over leadership")
	ErrOwnerCannotLeave   = errors.New("clan owner cannot leave the clan")
)

// Member is one roster entry. A member exists only inside its clan's roster;
// usernames are unique per clan, compared case-insensitively.
type Member struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Clan is the persisted record, one per clan in the collection. Members is a
// cached projection of len(MemberList) and Owner of the Leader's username;
// both are recomputed on every mutation and never trusted as independent
// sources of truth.
type Clan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Tag         string          `json:"tag"`
	Owner       string          `json:"owner"`
	Description string          `json:"description"`
	Members     int             `json:"members"`
	Region      string          `json:"region"`
	Platform    string          `json:"platform"`
	Founded     string          `json:"founded"`
	Image       *string         `json:"image"`
	Color       string          `json:"color"`
	MemberList  []Member        `json:"memberList"`
	Activity    []ActivityEntry `json:"activity"`
}

// New validates the creation fields and returns a clan seeded with its owner
// as Leader and a single "created" activity entry.
func New(name, tag, owner, description, region, platform, color string, now time.Time) (Clan, error) {
	name = strings.TrimSpace(name)
	tag = strings.TrimSpace(tag)
	owner = strings.TrimSpace(owner)
	description = strings.TrimSpace(description)

	if name == "" || tag == "" || owner == "" || region == "" || platform == "" {
		return Clan{}, fmt.Errorf("name, tag, owner, region and platform are required")
	}
	if !validRegion(region) {
		return Clan{}, fmt.Errorf("invalid region %q (valid: %s)", region, strings.Join(Regions, ", "))
	}
	if !validPlatform(platform) {
		return Clan{}, fmt.Errorf("invalid platform %q (valid: %s)", platform, strings.Join(Platforms, ", "))
	}
	if color == "" {
		color = DefaultColor
	}

	c := Clan{
		ID:          Slugify(name),
		Name:        name,
		Tag:         tag,
		Owner:       owner,
		Description: description,
		Members:     1,
		Region:      region,
		Platform:    platform,
		Founded:     strconv.Itoa(now.Year()),
		Image:       nil,
		Color:       color,
		MemberList:  []Member{{Username: owner, Role: RoleLeader}},
	}
	c.Log(KindOther, "Clan was created", now)
	return c, nil
}

// Slugify derives the stable clan identifier from a display name: lower-cased
// with whitespace runs collapsed to single dashes.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func validRegion(region string) bool {
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}

func validPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Matches reports whether ref identifies this clan by id, name or tag,
// case-insensitively.
func (c *Clan) Matches(ref string) bool {
	return strings.EqualFold(c.ID, ref) || strings.EqualFold(c.Name, ref) || strings.EqualFold(c.Tag, ref)
}

// Leader returns the roster entry holding the Leader role, or nil if the
// roster is corrupt and has none.
func (c *Clan) Leader() *Member {
	for i := range c.MemberList {
		if c.MemberList[i].Role == RoleLeader {
			return &c.MemberList[i]
		}
	}
	return nil
}

// IsOwner reports whether username is the clan's current owner.
func (c *Clan) IsOwner(username string) bool {
	return strings.EqualFold(c.Owner, username)
}

func (c *Clan) findMember(username string) *Member {
	for i := range c.MemberList {
		if strings.EqualFold(c.MemberList[i].Username, username) {
			return &c.MemberList[i]
		}
	}
	return nil
}

// EnsureRoster backfills records written before rosters were tracked: a clan
// with no member list gets its owner as the sole Leader.
func (c *Clan) EnsureRoster() {
	if len(c.MemberList) == 0 && c.Owner != "" {
		c.MemberList = []Member{{Username: c.Owner, Role: RoleLeader}}
	}
	c.recount()
}

func (c *Clan) recount() {
	c.Members = len(c.MemberList)
}

// syncOwner recomputes the owner projection from the roster's Leader entry.
func (c *Clan) syncOwner() {
	if leader := c.Leader(); leader != nil {
		c.Owner = leader.Username
	}
}
