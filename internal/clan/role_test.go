package clan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knot() *Clan {
	return &Clan{
		ID:    "knot",
		Name:  "Knot",
		Tag:   "[KNOT]",
		Owner: "A",
		MemberList: []Member{
			{Username: "A", Role: RoleLeader},
			{Username: "B", Role: RoleOfficer},
		},
		Members: 2,
	}
}

func assertOneLeader(t *testing.T, c *Clan) {
	t.Helper()
	leaders := 0
	for _, m := range c.MemberList {
		if m.Role == RoleLeader {
			leaders++
		}
	}
	require.Equal(t, 1, leaders, "clan must have exactly one Leader")
	require.Equal(t, c.Leader().Username, c.Owner, "owner must equal the Leader's username")
}

func TestPromoteMemberToOfficer(t *testing.T) {
	c := knot()
	_, err := c.AddMember("C")
	require.NoError(t, err)

	change, events, err := c.Promote("C")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, change.OldRole)
	assert.Equal(t, RoleOfficer, change.NewRole)
	require.Len(t, events, 1)
	assert.Equal(t, "C was promoted to Officer", events[0].Message())
	assertOneLeader(t, c)
}

func TestPromoteOfficerDemotesCurrentLeader(t *testing.T) {
	c := knot()
	change, events, err := c.Promote("B")
	require.NoError(t, err)
	assert.Equal(t, RoleOfficer, change.OldRole)
	assert.Equal(t, RoleLeader, change.NewRole)

	// Outgoing leader's demotion is recorded before the promotion.
	require.Len(t, events, 2)
	assert.Equal(t, "A was demoted to Officer", events[0].Message())
	assert.Equal(t, "B was promoted to Leader", events[1].Message())

	assert.Equal(t, "B", c.Owner)
	assert.Equal(t, RoleOfficer, c.findMember("A").Role)
	assertOneLeader(t, c)
}

func TestPromoteLeaderIsNoOp(t *testing.T) {
	c := knot()
	change, events, err := c.Promote("A")
	require.NoError(t, err)
	assert.True(t, change.NoOp())
	assert.Empty(t, events)
	assert.Equal(t, "A", c.Owner)
	assertOneLeader(t, c)
}

func TestPromoteUnknownMember(t *testing.T) {
	c := knot()
	_, _, err := c.Promote("ghost")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestPromoteMatchesCaseInsensitively(t *testing.T) {
	c := knot()
	change, _, err := c.Promote("b")
	require.NoError(t, err)
	assert.Equal(t, "B", change.Username)
	assert.Equal(t, "B", c.Owner)
}

func TestDemoteLeaderPromotesFirstOfficer(t *testing.T) {
	c := knot()
	change, events, err := c.Demote("A")
	require.NoError(t, err)
	assert.Equal(t, RoleLeader, change.OldRole)
	assert.Equal(t, RoleOfficer, change.NewRole)

	// Succession is recorded before the demotion.
	require.Len(t, events, 2)
	assert.Equal(t, "B was promoted to Leader", events[0].Message())
	assert.Equal(t, "A was demoted to Officer", events[1].Message())

	assert.Equal(t, "B", c.Owner)
	assert.Equal(t, RoleLeader, c.findMember("B").Role)
	assert.Equal(t, RoleOfficer, c.findMember("A").Role)
	assertOneLeader(t, c)
}

func TestDemoteLeaderWithoutOfficerFails(t *testing.T) {
	c := &Clan{
		ID:         "knot",
		Name:       "Knot",
		Owner:      "A",
		MemberList: []Member{{Username: "A", Role: RoleLeader}},
		Members:    1,
	}
	_, _, err := c.Demote("A")
	assert.ErrorIs(t, err, ErrNoSuccessor)
	assert.Equal(t, RoleLeader, c.findMember("A").Role)
	assert.Equal(t, "A", c.Owner)
}

func TestDemoteLeaderPicksOfficerInRosterOrder(t *testing.T) {
	c := knot()
	c.MemberList = append(c.MemberList, Member{Username: "C", Role: RoleOfficer})

	_, _, err := c.Demote("A")
	require.NoError(t, err)
	assert.Equal(t, "B", c.Owner, "first officer in roster order succeeds")
}

func TestDemoteMemberIsNoOp(t *testing.T) {
	c := knot()
	_, err := c.AddMember("C")
	require.NoError(t, err)

	change, events, err := c.Demote("C")
	require.NoError(t, err)
	assert.True(t, change.NoOp())
	assert.Empty(t, events)
}

func TestDemoteOfficerToMember(t *testing.T) {
	c := knot()
	change, events, err := c.Demote("B")
	require.NoError(t, err)
	assert.Equal(t, RoleOfficer, change.OldRole)
	assert.Equal(t, RoleMember, change.NewRole)
	require.Len(t, events, 1)
	assertOneLeader(t, c)
}

func TestAddMember(t *testing.T) {
	c := knot()
	member, err := c.AddMember("C")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, member.Role)
	assert.Equal(t, 3, c.Members)
	assert.Len(t, c.MemberList, 3)

	_, err = c.AddMember("c")
	assert.ErrorIs(t, err, ErrAlreadyMember, "usernames are unique case-insensitively")
}

func TestRemoveMember(t *testing.T) {
	c := knot()
	require.NoError(t, c.RemoveMember("B"))
	assert.Equal(t, 1, c.Members)

	assert.ErrorIs(t, c.RemoveMember("B"), ErrNotAMember)
}

func TestRemoveLeaderAlwaysFails(t *testing.T) {
	c := knot()
	assert.ErrorIs(t, c.RemoveMember("A"), ErrCannotRemoveLeader)
	assert.Len(t, c.MemberList, 2, "roster unchanged")
	assertOneLeader(t, c)
}

func TestLeave(t *testing.T) {
	c := knot()
	_, err := c.AddMember("C")
	require.NoError(t, err)

	require.NoError(t, c.Leave("C"))
	assert.Equal(t, 2, c.Members)

	assert.ErrorIs(t, c.Leave("A"), ErrOwnerCannotLeave)
	assert.ErrorIs(t, c.Leave("ghost"), ErrNotAMember)
}

func TestMemberCountTracksRosterLength(t *testing.T) {
	c := knot()
	for _, name := range []string{"C", "D", "E"} {
		_, err := c.AddMember(name)
		require.NoError(t, err)
		assert.Equal(t, len(c.MemberList), c.Members)
	}
	require.NoError(t, c.RemoveMember("D"))
	assert.Equal(t, len(c.MemberList), c.Members)
}

func TestEnsureRosterBackfillsOwner(t *testing.T) {
	c := &Clan{ID: "old", Name: "Old", Owner: "A"}
	c.EnsureRoster()
	require.Len(t, c.MemberList, 1)
	assert.Equal(t, RoleLeader, c.MemberList[0].Role)
	assert.Equal(t, 1, c.Members)
}

func TestNewClan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := New("Shadow Squad", "[SHDW]", "DarkKnight", "Stealth ops clan", "EU West", "PC", "", now)
	require.NoError(t, err)

	assert.Equal(t, "shadow-squad", c.ID)
	assert.Equal(t, "2026", c.Founded)
	assert.Equal(t, DefaultColor, c.Color)
	assert.Nil(t, c.Image)
	assert.Equal(t, 1, c.Members)
	require.Len(t, c.Activity, 1)
	assert.Equal(t, "Clan was created", c.Activity[0].Message)
	assertOneLeader(t, &c)
}

func TestNewClanValidation(t *testing.T) {
	now := time.Now()
	_, err := New("", "[X]", "A", "d", "EU West", "PC", "", now)
	assert.Error(t, err, "missing name")

	_, err = New("X", "[X]", "A", "d", "Atlantis", "PC", "", now)
	assert.Error(t, err, "invalid region")

	_, err = New("X", "[X]", "A", "d", "EU West", "Dreamcast", "", now)
	assert.Error(t, err, "invalid platform")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "shadow-squad", Slugify("Shadow Squad"))
	assert.Equal(t, "knot", Slugify("Knot"))
	assert.Equal(t, "a-b-c", Slugify("  A   B\tC "))
}
