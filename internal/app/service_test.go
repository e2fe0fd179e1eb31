package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/clan"
	"github.com/knotbyt/BF6-application/internal/config"
	"github.com/knotbyt/BF6-application/internal/search"
	"github.com/knotbyt/BF6-application/internal/store"
)

// memStore is an in-memory Store with error injection. Load hands out deep
// copies so an aborted mutation can never leak into the stored collection.
type memStore struct {
	mu      sync.Mutex
	clans   []clan.Clan
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) ([]clan.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return copyClans(m.clans), nil
}

func (m *memStore) Save(_ context.Context, clans []clan.Clan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.clans = copyClans(clans)
	m.saves++
	return nil
}

func (m *memStore) snapshot() []clan.Clan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyClans(m.clans)
}

func copyClans(clans []clan.Clan) []clan.Clan {
	out := make([]clan.Clan, len(clans))
	for i, c := range clans {
		out[i] = c
		out[i].MemberList = append([]clan.Member(nil), c.MemberList...)
		out[i].Activity = append([]clan.ActivityEntry(nil), c.Activity...)
	}
	return out
}

func newTestService(st store.Store) *Service {
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AdminToken: "admin-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
	logger := zap.NewNop().Sugar()
	return New(cfg, st, search.NewService(nil, search.NewStoreScan(st), logger), logger)
}

// seedClan builds a clan with the given roster; the first entry is the
// Leader and owner.
func seedClan(t *testing.T, name, tag string, roster ...clan.Member) clan.Clan {
	t.Helper()
	c, err := clan.New(name, tag, roster[0].Username, "", "EU West", "PC", "", time.Now())
	if err != nil {
		t.Fatalf("seed clan %s: %v", name, err)
	}
	c.MemberList = append(c.MemberList, roster[1:]...)
	c.Members = len(c.MemberList)
	return c
}

func assertOneLeader(t *testing.T, c clan.Clan) {
	t.Helper()
	leaders := 0
	for _, m := range c.MemberList {
		if m.Role == clan.RoleLeader {
			leaders++
		}
	}
	if leaders != 1 {
		t.Fatalf("expected exactly one Leader, got %d in %+v", leaders, c.MemberList)
	}
}

func TestCreateClanSeedsRosterAndActivity(t *testing.T) {
	st := &memStore{}
	svc := newTestService(st)

	created, err := svc.CreateClan(context.Background(), "Avery", CreateClanInput{
		Name:     "Knot Squad",
		Tag:      "KNOT",
		Region:   "EU West",
		Platform: "PC",
	})
	if err != nil {
		t.Fatalf("create clan: %v", err)
	}

	if created.ID != "knot-squad" {
		t.Fatalf("expected slug id knot-squad, got %q", created.ID)
	}
	if created.Owner != "Avery" {
		t.Fatalf("expected owner Avery, got %q", created.Owner)
	}
	if len(created.MemberList) != 1 || created.MemberList[0].Role != clan.RoleLeader {
		t.Fatalf("expected owner seeded as Leader, got %+v", created.MemberList)
	}
	if created.Members != 1 {
		t.Fatalf("expected member count 1, got %d", created.Members)
	}
	if len(created.Activity) != 1 || created.Activity[0].Message != "Clan was created" {
		t.Fatalf("expected created activity entry, got %+v", created.Activity)
	}
	if created.Color != clan.DefaultColor {
		t.Fatalf("expected default color, got %q", created.Color)
	}
}

func TestCreateClanRejectsDuplicates(t *testing.T) {
	st := &memStore{clans: []clan.Clan{
		seedClan(t, "Knot Squad", "KNOT", clan.Member{Username: "Avery", Role: clan.RoleLeader}),
	}}
	svc := newTestService(st)

	cases := []CreateClanInput{
		{Name: "knot squad", Tag: "OTHR", Region: "EU West", Platform: "PC"},
		{Name: "Other", Tag: "knot", Region: "EU West", Platform: "PC"},
	}
	for _, input := range cases {
		_, err := svc.CreateClan(context.Background(), "Blair", input)
		var domainErr *DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != "DUPLICATE_CLAN" {
			t.Fatalf("expected DUPLICATE_CLAN for %+v, got %v", input, err)
		}
	}
}

func TestPromoteMemberToOfficer(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleMember},
	)}}
	svc := newTestService(st)

	change, err := svc.Promote(context.Background(), "knot", "Blair")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if change.OldRole != clan.RoleMember || change.NewRole != clan.RoleOfficer {
		t.Fatalf("expected Member->Officer, got %+v", change)
	}

	stored := st.snapshot()[0]
	assertOneLeader(t, stored)
	last := stored.Activity[len(stored.Activity)-1]
	if last.Message != "Blair was promoted to Officer" {
		t.Fatalf("unexpected activity message %q", last.Message)
	}
}

func TestPromoteToLeaderTransfersOwnership(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleOfficer},
	)}}
	svc := newTestService(st)

	change, err := svc.Promote(context.Background(), "knot", "Blair")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if change.NewRole != clan.RoleLeader {
		t.Fatalf("expected promotion to Leader, got %+v", change)
	}

	stored := st.snapshot()[0]
	assertOneLeader(t, stored)
	if stored.Owner != "Blair" {
		t.Fatalf("expected ownership transferred to Blair, got %q", stored.Owner)
	}

	// the old leader's demotion is logged before the promotion
	n := len(stored.Activity)
	if stored.Activity[n-2].Message != "Avery was demoted to Officer" {
		t.Fatalf("expected demotion entry first, got %q", stored.Activity[n-2].Message)
	}
	if stored.Activity[n-1].Message != "Blair was promoted to Leader" {
		t.Fatalf("expected promotion entry last, got %q", stored.Activity[n-1].Message)
	}
}

func TestPromoteLeaderIsNoOp(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
	)}}
	svc := newTestService(st)

	change, err := svc.Promote(context.Background(), "knot", "Avery")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !change.NoOp() {
		t.Fatalf("expected no-op promoting the Leader, got %+v", change)
	}
}

func TestDemoteLeaderPromotesFirstOfficer(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleOfficer},
		clan.Member{Username: "Casey", Role: clan.RoleOfficer},
	)}}
	svc := newTestService(st)

	change, err := svc.Demote(context.Background(), "knot", "Avery")
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if change.OldRole != clan.RoleLeader || change.NewRole != clan.RoleOfficer {
		t.Fatalf("expected Leader->Officer, got %+v", change)
	}

	stored := st.snapshot()[0]
	assertOneLeader(t, stored)
	if stored.Owner != "Blair" {
		t.Fatalf("expected first Officer Blair as successor, got %q", stored.Owner)
	}

	// the successor's promotion is logged before the demotion
	n := len(stored.Activity)
	if stored.Activity[n-2].Message != "Blair was promoted to Leader" {
		t.Fatalf("expected promotion entry first, got %q", stored.Activity[n-2].Message)
	}
	if stored.Activity[n-1].Message != "Avery was demoted to Officer" {
		t.Fatalf("expected demotion entry last, got %q", stored.Activity[n-1].Message)
	}
}

func TestDemoteLeaderWithoutOfficerFails(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleMember},
	)}}
	svc := newTestService(st)

	before := st.snapshot()
	_, err := svc.Demote(context.Background(), "knot", "Avery")
	if !errors.Is(err, clan.ErrNoSuccessor) {
		t.Fatalf("expected ErrNoSuccessor, got %v", err)
	}

	after := st.snapshot()
	if len(after[0].Activity) != len(before[0].Activity) {
		t.Fatalf("expected no activity written on failed demotion")
	}
	if st.saves != 0 {
		t.Fatalf("expected no save on failed demotion, got %d", st.saves)
	}
}

func TestAddMemberRejectsExisting(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
	)}}
	svc := newTestService(st)

	if _, err := svc.AddMember(context.Background(), "knot", "avery"); !errors.Is(err, clan.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember for case-insensitive duplicate, got %v", err)
	}

	members, err := svc.AddMember(context.Background(), "knot", "Blair")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if members != 2 {
		t.Fatalf("expected 2 members, got %d", members)
	}

	stored := st.snapshot()[0]
	last := stored.Activity[len(stored.Activity)-1]
	if last.Type != clan.KindMemberJoined || last.Message != "Blair joined the clan" {
		t.Fatalf("unexpected join entry %+v", last)
	}
}

func TestRemoveMemberGuardsLeader(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleMember},
	)}}
	svc := newTestService(st)

	if _, err := svc.RemoveMember(context.Background(), "knot", "Avery"); !errors.Is(err, clan.ErrCannotRemoveLeader) {
		t.Fatalf("expected ErrCannotRemoveLeader, got %v", err)
	}
	if _, err := svc.RemoveMember(context.Background(), "knot", "Ghost"); !errors.Is(err, clan.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}

	members, err := svc.RemoveMember(context.Background(), "knot", "Blair")
	if err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if members != 1 {
		t.Fatalf("expected 1 member, got %d", members)
	}

	stored := st.snapshot()[0]
	last := stored.Activity[len(stored.Activity)-1]
	if last.Message != "Blair was removed from the clan" {
		t.Fatalf("unexpected removal entry %q", last.Message)
	}
}

func TestLeaveClanGuardsOwner(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleMember},
	)}}
	svc := newTestService(st)

	if _, err := svc.LeaveClan(context.Background(), "knot", "Avery"); !errors.Is(err, clan.ErrOwnerCannotLeave) {
		t.Fatalf("expected ErrOwnerCannotLeave, got %v", err)
	}

	members, err := svc.LeaveClan(context.Background(), "knot", "Blair")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if members != 1 {
		t.Fatalf("expected 1 member, got %d", members)
	}

	stored := st.snapshot()[0]
	last := stored.Activity[len(stored.Activity)-1]
	if last.Message != "Blair left the clan" {
		t.Fatalf("unexpected leave entry %q", last.Message)
	}
}

func TestGetClanResolvesByNameAndTag(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot Squad", "KNOT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
	)}}
	svc := newTestService(st)

	for _, ref := range []string{"knot-squad", "Knot Squad", "knot", "KNOT"} {
		got, err := svc.GetClan(context.Background(), ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got.ID != "knot-squad" {
			t.Fatalf("resolve %q: got %q", ref, got.ID)
		}
	}

	_, err := svc.GetClan(context.Background(), "missing")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "CLAN_NOT_FOUND" {
		t.Fatalf("expected CLAN_NOT_FOUND, got %v", err)
	}
}

func TestUpdateClanOwnerOnly(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
		clan.Member{Username: "Blair", Role: clan.RoleMember},
	)}}
	svc := newTestService(st)

	_, err := svc.UpdateClan(context.Background(), "knot", "Blair", false, UpdateClanInput{Description: "nope"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for non-owner, got %v", err)
	}

	updated, err := svc.UpdateClan(context.Background(), "knot", "Avery", false, UpdateClanInput{Description: "rebuilt"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != "rebuilt" {
		t.Fatalf("expected description updated, got %q", updated.Description)
	}

	_, err = svc.UpdateClan(context.Background(), "knot", "Avery", false, UpdateClanInput{Region: "Mars"})
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for bad region, got %v", err)
	}
}

func TestRecordActivityValidatesKind(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
	)}}
	svc := newTestService(st)

	err := svc.RecordActivity(context.Background(), "knot", "espionage", "sneaky")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for bad kind, got %v", err)
	}

	if err := svc.RecordActivity(context.Background(), "knot", clan.KindMatchVictory, "Won 64-12 on Operation Firestorm"); err != nil {
		t.Fatalf("record activity: %v", err)
	}
	stored := st.snapshot()[0]
	last := stored.Activity[len(stored.Activity)-1]
	if last.Type != clan.KindMatchVictory {
		t.Fatalf("expected match_victory entry, got %+v", last)
	}
}

func TestMutationFailsClosedOnStorageError(t *testing.T) {
	st := &memStore{clans: []clan.Clan{seedClan(t, "Knot", "KNT",
		clan.Member{Username: "Avery", Role: clan.RoleLeader},
	)}}
	st.saveErr = store.ErrWriteFailed
	svc := newTestService(st)

	before := st.snapshot()
	_, err := svc.AddMember(context.Background(), "knot", "Blair")
	if !errors.Is(err, store.ErrWriteFailed) {
		t.Fatalf("expected write failure surfaced, got %v", err)
	}

	after := st.snapshot()
	if len(after[0].MemberList) != len(before[0].MemberList) {
		t.Fatalf("expected roster unchanged after failed save")
	}
}
