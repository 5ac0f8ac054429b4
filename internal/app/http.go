package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gutcheck/api/internal/auth"
	"gutcheck/api/internal/authpw"
	"gutcheck/api/internal/content"
	"gutcheck/api/internal/rbac"
	"gutcheck/api/internal/resolver"
	"gutcheck/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
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
		s.handleReady(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
			"role":          session.Role,
		})
		return
	}

	// Public content routes. A bearer session is optional: it only
	// matters for preview requests, where the role gates access.
	if r.Method == http.MethodGet && r.URL.Path == "/api/content/question-set" {
		s.handleQuestionSet(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/content/results-pack" {
		s.handleResultsPack(w, r)
		return
	}

	if r.Method == http.MethodDelete && r.URL.Path == "/api/session/pin" {
		s.handleClearPin(w, r)
		return
	}

	// Everything below requires a session.
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/change-password" {
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), session, body.CurrentPassword, body.NewPassword); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/search" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		s.handleAdminSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/revisions" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var input RevisionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateRevision(r.Context(), session, input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/revisions" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		query := r.URL.Query()
		limit := 50
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.History(
			r.Context(),
			strings.TrimSpace(query.Get("contentType")),
			strings.TrimSpace(query.Get("assessmentType")),
			strings.TrimSpace(query.Get("version")),
			strings.TrimSpace(query.Get("level")),
			strings.TrimSpace(query.Get("locale")),
			limit,
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/admin/revisions/") && strings.HasSuffix(r.URL.Path, "/publish") {
		if !s.service.Can(session.Role, rbac.ActionPublish) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		parts := splitPath(r.URL.Path)
		// api admin revisions {id} publish
		if len(parts) != 5 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		payload, err := s.service.Publish(r.Context(), session, parts[3])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/admin/preview" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var input PreviewInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetPreview(r.Context(), input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/import/question-set" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var input ImportInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ImportQuestionSetCSV(r.Context(), session, input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		status := http.StatusCreated
		if input.DryRun {
			status = http.StatusOK
		}
		writeJSON(w, status, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/export/question-set" {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		query := r.URL.Query()
		result, err := s.service.ExportQuestionSetCSV(r.Context(), ContentQuery{
			AssessmentType: strings.TrimSpace(query.Get("assessmentType")),
			Version:        strings.TrimSpace(query.Get("version")),
			Locale:         strings.TrimSpace(query.Get("locale")),
			Preview:        query.Get("preview") == "1" || query.Get("preview") == "true",
			Role:           rbac.Normalize(session.Role),
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}

	if s.service.PinsEnabled() {
		checks["redis"] = map[string]any{"status": "ok"}
		if err := s.service.PingPins(ctx); err != nil {
			// Pinning degrades gracefully, so a redis outage does not
			// fail readiness.
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleQuestionSet(w http.ResponseWriter, r *http.Request) {
	q, ok := s.contentQuery(w, r, false)
	if !ok {
		return
	}
	payload, err := s.service.QuestionSet(r.Context(), q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleResultsPack(w http.ResponseWriter, r *http.Request) {
	q, ok := s.contentQuery(w, r, true)
	if !ok {
		return
	}
	payload, err := s.service.ResultsPack(r.Context(), q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// contentQuery parses the shared query contract of the two public
// content endpoints. The viewer's role comes from the optional bearer
// session; an invalid token downgrades to anonymous rather than
// failing a read.
func (s *HTTPServer) contentQuery(w http.ResponseWriter, r *http.Request, wantLevel bool) (ContentQuery, bool) {
	query := r.URL.Query()
	q := ContentQuery{
		AssessmentType: strings.TrimSpace(query.Get("assessmentType")),
		Version:        strings.TrimSpace(query.Get("version")),
		LevelID:        strings.TrimSpace(query.Get("level")),
		Locale:         strings.TrimSpace(query.Get("locale")),
		Preview:        query.Get("preview") == "1" || query.Get("preview") == "true",
		VisitorID:      strings.TrimSpace(r.Header.Get("X-Visitor-Id")),
	}
	if q.AssessmentType == "" || q.Version == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assessmentType and version are required", nil)
		return ContentQuery{}, false
	}
	if wantLevel && q.LevelID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "level is required", nil)
		return ContentQuery{}, false
	}

	if token := bearerToken(r); token != "" {
		if session, err := s.service.SessionFromToken(token); err == nil {
			q.Role = rbac.Normalize(session.Role)
		}
	}
	return q, true
}

func (s *HTTPServer) handleClearPin(w http.ResponseWriter, r *http.Request) {
	visitorID := strings.TrimSpace(r.Header.Get("X-Visitor-Id"))
	if visitorID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "X-Visitor-Id header is required", nil)
		return
	}
	query := r.URL.Query()
	ident := resolver.Identity{
		Kind:           content.Kind(strings.TrimSpace(query.Get("contentType"))),
		AssessmentType: strings.TrimSpace(query.Get("assessmentType")),
		Version:        strings.TrimSpace(query.Get("version")),
		LevelID:        strings.TrimSpace(query.Get("level")),
		Locale:         strings.TrimSpace(query.Get("locale")),
	}
	if ident.Kind != content.KindQuestionSet && ident.Kind != content.KindResultsPack {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "contentType must be question_set or results_pack", nil)
		return
	}
	if ident.AssessmentType == "" || ident.Version == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assessmentType and version are required", nil)
		return
	}
	if err := s.service.ClearPin(r.Context(), visitorID, ident); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAdminSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:              strings.TrimSpace(query.Get("q")),
		FilterContentType: strings.TrimSpace(query.Get("contentType")),
		FilterStatus:      strings.TrimSpace(query.Get("status")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		q.Offset = parsed
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken": session.Token,
		"userId":      session.UserID,
		"userName":    session.UserName,
		"role":        session.Role,
		"expiresAt":   session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
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

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Visitor-Id")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
