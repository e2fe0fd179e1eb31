package clan

import (
	"fmt"
	"strings"
)

// Role is a member's rank within its clan, strictly ordered
// Member < Officer < Leader. Every clan has exactly one Leader.
type Role string

const (
	RoleMember  Role = "Member"
	RoleOfficer Role = "Officer"
	RoleLeader  Role = "Leader"
)

var roleOrder = []Role{RoleMember, RoleOfficer, RoleLeader}

// Rank returns the role's position in the hierarchy, or -1 for an unknown role.
func (r Role) Rank() int {
	for i, role := range roleOrder {
		if role == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// RoleChange describes the target member's own transition. OldRole equals
// NewRole when the operation was a no-op (already at the top or bottom of
// the hierarchy).
type RoleChange struct {
	Username string `json:"username"`
	OldRole  Role   `json:"oldRole"`
	NewRole  Role   `json:"newRole"`
}

// NoOp reports whether the operation changed nothing.
func (rc RoleChange) NoOp() bool {
	return rc.OldRole == rc.NewRole
}

// Event is one role transition produced by a governance operation. A single
// user action can yield several events in a fixed order (succession first on
// a leader demotion, the outgoing leader's demotion first on a promotion to
// Leader); the activity log records them in exactly that order.
type Event struct {
	Username string
	From     Role
	To       Role
}

// Message renders the activity-log line for this event.
func (e Event) Message() string {
	if e.To.Rank() > e.From.Rank() {
		return fmt.Sprintf("%s was promoted to %s", e.Username, e.To)
	}
	return fmt.Sprintf("%s was demoted to %s", e.Username, e.To)
}

// Promote advances a member one step up the hierarchy. Promoting to Leader
// demotes the current Leader to Officer as part of the same transition and
// reassigns ownership; the outgoing leader's event precedes the promotion
// event. Promoting a Leader is a no-op.
func (c *Clan) Promote(username string) (RoleChange, []Event, error) {
	member := c.findMember(username)
	if member == nil {
		return RoleChange{}, nil, ErrNotAMember
	}
	if !member.Role.Valid() {
		member.Role = RoleMember
	}
	if member.Role == RoleLeader {
		return RoleChange{Username: member.Username, OldRole: RoleLeader, NewRole: RoleLeader}, nil, nil
	}

	oldRole := member.Role
	newRole := roleOrder[oldRole.Rank()+1]

	var events []Event
	if newRole == RoleLeader {
		if leader := c.Leader(); leader != nil {
			leader.Role = RoleOfficer
			events = append(events, Event{Username: leader.Username, From: RoleLeader, To: RoleOfficer})
		}
	}
	member.Role = newRole
	events = append(events, Event{Username: member.Username, From: oldRole, To: newRole})
	c.syncOwner()

	return RoleChange{Username: member.Username, OldRole: oldRole, NewRole: newRole}, events, nil
}

// Demote moves a member one step down the hierarchy. Demoting the Leader
// requires an Officer to succeed them: the first Officer in roster order is
// promoted to Leader and takes ownership, and that promotion event precedes
// the demotion event. Demoting a Member is a no-op.
func (c *Clan) Demote(username string) (RoleChange, []Event, error) {
	member := c.findMember(username)
	if member == nil {
		return RoleChange{}, nil, ErrNotAMember
	}
	if member.Role == RoleMember {
		return RoleChange{Username: member.Username, OldRole: RoleMember, NewRole: RoleMember}, nil, nil
	}

	var events []Event
	if member.Role == RoleLeader {
		successor := c.firstOfficer(member.Username)
		if successor == nil {
			return RoleChange{}, nil, ErrNoSuccessor
		}
		successor.Role = RoleLeader
		events = append(events, Event{Username: successor.Username, From: RoleOfficer, To: RoleLeader})
	}

	oldRole := member.Role
	newRole := roleOrder[oldRole.Rank()-1]
	member.Role = newRole
	events = append(events, Event{Username: member.Username, From: oldRole, To: newRole})
	c.syncOwner()

	return RoleChange{Username: member.Username, OldRole: oldRole, NewRole: newRole}, events, nil
}

// firstOfficer returns the first Officer in roster order, skipping the member
// being demoted. Successor selection is deterministic but not priority-based.
func (c *Clan) firstOfficer(excluding string) *Member {
	for i := range c.MemberList {
		m := &c.MemberList[i]
		if m.Role == RoleOfficer && m.Username != excluding {
			return m
		}
	}
	return nil
}

// AddMember appends a new roster entry with role Member.
func (c *Clan) AddMember(username string) (Member, error) {
	if c.findMember(username) != nil {
		return Member{}, ErrAlreadyMember
	}
	member := Member{Username: username, Role: RoleMember}
	c.MemberList = append(c.MemberList, member)
	c.recount()
	return member, nil
}

// RemoveMember drops a roster entry. The Leader can never be removed; they
// must be demoted (triggering succession) first.
func (c *Clan) RemoveMember(username string) error {
	for i := range c.MemberList {
		if !strings.EqualFold(c.MemberList[i].Username, username) {
			continue
		}
		if c.MemberList[i].Role == RoleLeader {
			return ErrCannotRemoveLeader
		}
		c.MemberList = append(c.MemberList[:i], c.MemberList[i+1:]...)
		c.recount()
		return nil
	}
	return ErrNotAMember
}

// Leave is the self-service variant of RemoveMember: the clan owner must
// transfer leadership before leaving.
func (c *Clan) Leave(username string) error {
	if c.IsOwner(username) {
		return ErrOwnerCannotLeave
	}
	if err := c.RemoveMember(username); err != nil {
		return err
	}
	return nil
}
