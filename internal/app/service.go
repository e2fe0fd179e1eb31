package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/auth"
	"github.com/knotbyt/BF6-application/internal/clan"
	"github.com/knotbyt/BF6-application/internal/config"
	"github.com/knotbyt/BF6-application/internal/media"
	"github.com/knotbyt/BF6-application/internal/mirror"
	"github.com/knotbyt/BF6-application/internal/search"
	"github.com/knotbyt/BF6-application/internal/store"
	"github.com/knotbyt/BF6-application/internal/util"
)

// Session is a parsed access token plus the tokens handed to the client on
// login or refresh.
type Session struct {
	Token        string
	RefreshToken string
	Username     string
	JTI          string
	ExpiresAt    time.Time
}

// SessionStore persists refresh tokens. Nil means refresh is unavailable and
// clients re-login when the access token expires.
type SessionStore interface {
	Save(ctx context.Context, tokenHash, username string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (string, error)
	Revoke(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

// CreateClanInput carries the fields of a clan creation request. Owner is
// taken from the caller's session, never from the body.
type CreateClanInput struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Platform    string `json:"platform"`
	Color       string `json:"color"`
}

// UpdateClanInput carries a partial metadata update; empty fields are left
// unchanged. The slug is stable once created.
type UpdateClanInput struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Platform    string `json:"platform"`
	Color       string `json:"color"`
}

// Service is the governance engine: it owns every load-mutate-save cycle
// against the roster store and fans successful writes out to the best-effort
// subsystems (mirror, search index). It is stateless between calls; two
// concurrent operations on the same clan race on the read-modify-write cycle
// and the later save wins.
type Service struct {
	cfg      config.Config
	roster   store.Store
	sessions SessionStore
	search   *search.Service
	replica  *mirror.Replicator
	media    *media.Service
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func New(cfg config.Config, roster store.Store, searchService *search.Service, logger *zap.SugaredLogger) *Service {
	return &Service{
		cfg:    cfg,
		roster: roster,
		search: searchService,
		logger: logger,
		now:    time.Now,
	}
}

func NewWithSessionStore(cfg config.Config, roster store.Store, sessions SessionStore, searchService *search.Service, logger *zap.SugaredLogger) *Service {
	service := New(cfg, roster, searchService, logger)
	service.sessions = sessions
	return service
}

// AttachMirror enables best-effort replication into the secondary store.
func (s *Service) AttachMirror(replica *mirror.Replicator) {
	s.replica = replica
}

// AttachMedia enables crest uploads.
func (s *Service) AttachMedia(m *media.Service) {
	s.media = m
}

// AdminToken returns the shared token that authorizes the admin surface.
func (s *Service) AdminToken() string {
	return s.cfg.AdminToken
}

// Bootstrap warms the search index from the current collection. Failures are
// logged, not fatal; the scan fallback keeps search available.
func (s *Service) Bootstrap(ctx context.Context) error {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return err
	}
	s.search.IndexCollection(clans)
	s.replica.Replicate(clans)
	return nil
}

// Ping checks the primary store.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.roster.Load(ctx)
	return err
}

// MirrorHealthy reports secondary-store reachability for readiness output.
func (s *Service) MirrorHealthy(ctx context.Context) bool {
	return s.replica.Healthy(ctx)
}

// SearchHealthy reports whether the search index (not the fallback) is up.
func (s *Service) SearchHealthy() bool {
	return s.search.Healthy()
}

// --- sessions ---

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, errValidation("name is required")
	}
	return s.issueSession(ctx, name)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh unavailable", nil)
	}
	username, err := s.sessions.Lookup(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	// rotate: the old refresh token dies with the lookup
	if err := s.sessions.Revoke(ctx, auth.HashToken(refreshToken)); err != nil {
		s.logger.Warnw("revoke rotated refresh token", "error", err)
	}
	return s.issueSession(ctx, username)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s.sessions == nil || refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		Username:  claims.Username,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) issueSession(ctx context.Context, username string) (Session, error) {
	expiresAt := s.now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Username: username,
		JTI:      util.NewID("jti"),
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}

	result := Session{
		Token:     token,
		Username:  username,
		ExpiresAt: expiresAt,
	}
	if s.sessions != nil {
		refreshToken := util.NewID("rt")
		refreshExpiry := s.now().Add(s.cfg.RefreshTTL)
		if err := s.sessions.Save(ctx, auth.HashToken(refreshToken), username, refreshExpiry); err != nil {
			return Session{}, fmt.Errorf("save refresh token: %w", err)
		}
		result.RefreshToken = refreshToken
	}
	return result, nil
}

// --- read model ---

func (s *Service) ListClans(ctx context.Context) ([]ClanSummary, error) {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ClanSummary, 0, len(clans))
	for i := range clans {
		clans[i].EnsureRoster()
		summaries = append(summaries, summarize(&clans[i]))
	}
	return summaries, nil
}

func (s *Service) GetClan(ctx context.Context, ref string) (ClanDetail, error) {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return ClanDetail{}, err
	}
	idx := findClan(clans, ref)
	if idx < 0 {
		return ClanDetail{}, errClanNotFound(ref)
	}
	clans[idx].EnsureRoster()
	return detail(&clans[idx], s.now()), nil
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// --- governance operations ---

func (s *Service) CreateClan(ctx context.Context, actor string, input CreateClanInput) (ClanDetail, error) {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return ClanDetail{}, err
	}

	newClan, err := clan.New(input.Name, input.Tag, actor, input.Description, input.Region, input.Platform, input.Color, s.now())
	if err != nil {
		return ClanDetail{}, errValidation(err.Error())
	}
	for i := range clans {
		if strings.EqualFold(clans[i].Name, newClan.Name) ||
			strings.EqualFold(clans[i].Tag, newClan.Tag) ||
			strings.EqualFold(clans[i].ID, newClan.ID) {
			return ClanDetail{}, errDuplicateClan()
		}
	}

	clans = append(clans, newClan)
	if err := s.persist(ctx, clans); err != nil {
		return ClanDetail{}, err
	}
	s.search.IndexClan(newClan)
	s.logger.Infow("clan created", "clan", newClan.ID, "owner", actor)
	return detail(&newClan, s.now()), nil
}

func (s *Service) UpdateClan(ctx context.Context, ref, actor string, isAdmin bool, input UpdateClanInput) (ClanDetail, error) {
	updated, err := s.mutateClan(ctx, ref, func(clans []clan.Clan, c *clan.Clan) error {
		if !isAdmin && !c.IsOwner(actor) {
			return errForbidden("Only the clan owner can update the clan")
		}
		if name := strings.TrimSpace(input.Name); name != "" && !strings.EqualFold(name, c.Name) {
			for i := range clans {
				if clans[i].ID != c.ID && strings.EqualFold(clans[i].Name, name) {
					return errDuplicateClan()
				}
			}
			c.Name = name
		}
		if tag := strings.TrimSpace(input.Tag); tag != "" && !strings.EqualFold(tag, c.Tag) {
			for i := range clans {
				if clans[i].ID != c.ID && strings.EqualFold(clans[i].Tag, tag) {
					return errDuplicateClan()
				}
			}
			c.Tag = tag
		}
		if input.Description != "" {
			c.Description = input.Description
		}
		if input.Region != "" {
			if !validEnum(input.Region, clan.Regions) {
				return errValidation(fmt.Sprintf("invalid region %q", input.Region))
			}
			c.Region = input.Region
		}
		if input.Platform != "" {
			if !validEnum(input.Platform, clan.Platforms) {
				return errValidation(fmt.Sprintf("invalid platform %q", input.Platform))
			}
			c.Platform = input.Platform
		}
		if input.Color != "" {
			c.Color = input.Color
		}
		return nil
	})
	if err != nil {
		return ClanDetail{}, err
	}
	return detail(updated, s.now()), nil
}

func (s *Service) DeleteClan(ctx context.Context, ref, actor string, isAdmin bool) error {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return err
	}
	idx := findClan(clans, ref)
	if idx < 0 {
		return errClanNotFound(ref)
	}
	if !isAdmin && !clans[idx].IsOwner(actor) {
		return errForbidden("Only the clan owner can delete the clan")
	}
	deletedID := clans[idx].ID
	clans = append(clans[:idx], clans[idx+1:]...)
	if err := s.persist(ctx, clans); err != nil {
		return err
	}
	s.search.DeleteClan(deletedID)
	s.logger.Infow("clan deleted", "clan", deletedID)
	return nil
}

// Promote advances a member one role step; promoting into the Leader slot
// demotes the previous Leader and transfers ownership.
func (s *Service) Promote(ctx context.Context, ref, username string) (clan.RoleChange, error) {
	var change clan.RoleChange
	_, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		result, events, err := c.Promote(username)
		if err != nil {
			return err
		}
		c.LogEvents(events, s.now())
		change = result
		return nil
	})
	return change, err
}

// Demote lowers a member one role step; demoting the Leader promotes the
// first Officer in roster order as successor.
func (s *Service) Demote(ctx context.Context, ref, username string) (clan.RoleChange, error) {
	var change clan.RoleChange
	_, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		result, events, err := c.Demote(username)
		if err != nil {
			return err
		}
		c.LogEvents(events, s.now())
		change = result
		return nil
	})
	return change, err
}

func (s *Service) AddMember(ctx context.Context, ref, username string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errValidation("username is required")
	}
	updated, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		if _, err := c.AddMember(username); err != nil {
			return err
		}
		c.Log(clan.KindMemberJoined, fmt.Sprintf("%s joined the clan", username), s.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updated.MemberList), nil
}

func (s *Service) RemoveMember(ctx context.Context, ref, username string) (int, error) {
	updated, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		if err := c.RemoveMember(username); err != nil {
			return err
		}
		c.Log(clan.KindMemberLeft, fmt.Sprintf("%s was removed from the clan", username), s.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updated.MemberList), nil
}

func (s *Service) JoinClan(ctx context.Context, ref, actor string) (int, error) {
	updated, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		if _, err := c.AddMember(actor); err != nil {
			return err
		}
		c.Log(clan.KindMemberJoined, fmt.Sprintf("%s joined the clan", actor), s.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updated.MemberList), nil
}

func (s *Service) LeaveClan(ctx context.Context, ref, actor string) (int, error) {
	updated, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		if err := c.Leave(actor); err != nil {
			return err
		}
		c.Log(clan.KindMemberLeft, fmt.Sprintf("%s left the clan", actor), s.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updated.MemberList), nil
}

// RecordActivity appends a free-form activity entry (match victories,
// tournament wins, squad sessions).
func (s *Service) RecordActivity(ctx context.Context, ref string, kind clan.Kind, message string) error {
	if !kind.Valid() {
		return errValidation(fmt.Sprintf("invalid activity type %q", kind))
	}
	if strings.TrimSpace(message) == "" {
		return errValidation("message is required")
	}
	_, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		c.Log(kind, message, s.now())
		return nil
	})
	return err
}

// SetClanImage uploads a crest and records its URL on the clan.
func (s *Service) SetClanImage(ctx context.Context, ref, actor string, isAdmin bool, contentType string, body io.Reader, size int64) (string, error) {
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "IMAGE_DISABLED", "Image storage is not configured", nil)
	}
	var url string
	_, err := s.mutateClan(ctx, ref, func(_ []clan.Clan, c *clan.Clan) error {
		if !isAdmin && !c.IsOwner(actor) {
			return errForbidden("Only the clan owner can change the clan image")
		}
		uploaded, err := s.media.UploadCrest(ctx, c.ID, contentType, body, size)
		if err != nil {
			return errValidation(err.Error())
		}
		c.Image = &uploaded
		url = uploaded
		return nil
	})
	return url, err
}

// --- load-mutate-save plumbing ---

// mutateClan runs one governance operation as a self-contained
// read-modify-write cycle: load the whole collection, resolve the clan,
// apply fn, recompute the cached projections, save the whole collection.
// On any error nothing is persisted.
func (s *Service) mutateClan(ctx context.Context, ref string, fn func(clans []clan.Clan, c *clan.Clan) error) (*clan.Clan, error) {
	clans, err := s.roster.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := findClan(clans, ref)
	if idx < 0 {
		return nil, errClanNotFound(ref)
	}

	target := &clans[idx]
	target.EnsureRoster()
	if err := fn(clans, target); err != nil {
		return nil, err
	}
	target.Members = len(target.MemberList)

	if err := s.persist(ctx, clans); err != nil {
		return nil, err
	}
	s.search.IndexClan(*target)
	return target, nil
}

// persist writes the collection to the primary store and fans out to the
// mirror. Only the primary write can fail the operation.
func (s *Service) persist(ctx context.Context, clans []clan.Clan) error {
	if err := s.roster.Save(ctx, clans); err != nil {
		return err
	}
	s.replica.Replicate(clans)
	return nil
}

// findClan resolves a clan reference (id, name or tag, case-insensitive)
// to its index in the collection; first match wins.
func findClan(clans []clan.Clan, ref string) int {
	for i := range clans {
		if clans[i].Matches(ref) {
			return i
		}
	}
	return -1
}

func validEnum(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
