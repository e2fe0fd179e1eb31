package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/auth"
	"github.com/knotbyt/BF6-application/internal/clan"
	"github.com/knotbyt/BF6-application/internal/search"
	"github.com/knotbyt/BF6-application/internal/store"
)

// AdminTokenHeader carries the shared secret that authorizes the admin
// surface (member management, activity recording, clan removal).
const AdminTokenHeader = "X-Clanhub-Admin-Token"

const maxImageBytes = 5 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.SugaredLogger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.SugaredLogger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store":  map[string]any{"status": "ok"},
			"mirror": map[string]any{"status": boolStatus(s.service.MirrorHealthy(ctx))},
			"search": map[string]any{"status": boolStatus(s.service.SearchHealthy())},
		}

		// Only the primary store gates readiness; the mirror and the
		// search index are best-effort.
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		promhttp.Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "username": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "username": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "username": session.Username})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"username":     session.Username,
			"expiresAt":    session.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"username":     session.Username,
			"expiresAt":    session.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:     strings.TrimSpace(r.URL.Query().Get("q")),
			Region:   strings.TrimSpace(r.URL.Query().Get("region")),
			Platform: strings.TrimSpace(r.URL.Query().Get("platform")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			q.Limit = parsed
		}
		writeJSON(w, http.StatusOK, s.service.Search(q))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/clans" {
		clans, err := s.service.ListClans(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, clans)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/clans" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body CreateClanInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateClan(r.Context(), session.Username, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "clans" {
		s.handleClan(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleClan dispatches every /api/clans/{ref}/... route. ref resolves by
// id, name or tag, case-insensitive.
func (s *HTTPServer) handleClan(w http.ResponseWriter, r *http.Request, ref string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		result, err := s.service.GetClan(r.Context(), ref)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return

	case len(rest) == 0 && r.Method == http.MethodPut:
		actor, isAdmin, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		var body UpdateClanInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateClan(r.Context(), ref, actor, isAdmin, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return

	case len(rest) == 0 && r.Method == http.MethodDelete:
		actor, isAdmin, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		if err := s.service.DeleteClan(r.Context(), ref, actor, isAdmin); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Clan deleted successfully"})
		return

	case len(rest) == 1 && rest[0] == "join" && r.Method == http.MethodPost:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		members, err := s.service.JoinClan(r.Context(), ref, session.Username)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("%s joined the clan", session.Username),
			"members": members,
		})
		return

	case len(rest) == 1 && rest[0] == "leave" && r.Method == http.MethodPost:
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		members, err := s.service.LeaveClan(r.Context(), ref, session.Username)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("%s left the clan", session.Username),
			"members": members,
		})
		return

	case len(rest) == 1 && rest[0] == "image" && r.Method == http.MethodPut:
		actor, isAdmin, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		body := http.MaxBytesReader(w, r.Body, maxImageBytes)
		defer body.Close()
		url, err := s.service.SetClanImage(r.Context(), ref, actor, isAdmin, r.Header.Get("Content-Type"), body, r.ContentLength)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"image": url})
		return

	case len(rest) == 1 && rest[0] == "members" && r.Method == http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		var body struct {
			Username string `json:"username"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		members, err := s.service.AddMember(r.Context(), ref, body.Username)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": fmt.Sprintf("%s joined the clan", strings.TrimSpace(body.Username)),
			"members": members,
		})
		return

	case len(rest) == 2 && rest[0] == "members" && r.Method == http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		members, err := s.service.RemoveMember(r.Context(), ref, rest[1])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("%s was removed from the clan", rest[1]),
			"members": members,
		})
		return

	case len(rest) == 3 && rest[0] == "members" && (rest[2] == "promote" || rest[2] == "demote") && r.Method == http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		var change clan.RoleChange
		var err error
		if rest[2] == "promote" {
			change, err = s.service.Promote(r.Context(), ref, rest[1])
		} else {
			change, err = s.service.Demote(r.Context(), ref, rest[1])
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"username": change.Username,
			"oldRole":  change.OldRole,
			"newRole":  change.NewRole,
			"changed":  !change.NoOp(),
		})
		return

	case len(rest) == 1 && rest[0] == "activity" && r.Method == http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		var body struct {
			Type    clan.Kind `json:"type"`
			Message string    `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.RecordActivity(r.Context(), ref, body.Type, body.Message); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

// requireActor accepts either a bearer session or the admin token and
// reports which one authorized the call.
func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (actor string, isAdmin bool, ok bool) {
	if s.isAdmin(r) {
		return "", true, true
	}
	session, ok := s.requireSession(w, r)
	if !ok {
		return "", false, false
	}
	return session.Username, false, true
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
}

func (s *HTTPServer) isAdmin(r *http.Request) bool {
	token := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
	return token != "" && token == s.service.AdminToken()
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(writer.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		s.logger.Infow("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+AdminTokenHeader)
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func boolStatus(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, clan.ErrNotAMember):
		return http.StatusNotFound, "NOT_A_MEMBER", "Member not found in clan", nil
	case errors.Is(err, clan.ErrAlreadyMember):
		return http.StatusConflict, "ALREADY_MEMBER", "Already a member of the clan", nil
	case errors.Is(err, clan.ErrCannotRemoveLeader):
		return http.StatusConflict, "CANNOT_REMOVE_LEADER", "The Leader cannot be removed; demote or transfer leadership first", nil
	case errors.Is(err, clan.ErrNoSuccessor):
		return http.StatusConflict, "NO_SUCCESSOR", "No Officer available to take over leadership", nil
	case errors.Is(err, clan.ErrOwnerCannotLeave):
		return http.StatusConflict, "OWNER_CANNOT_LEAVE", "The clan owner cannot leave; transfer leadership or delete the clan", nil
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrWriteFailed):
		return http.StatusServiceUnavailable, "STORAGE_ERROR", "Storage unavailable", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
