package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// Логин паролем, bcrypt-проверка, сессионный токен в Redis. Токен ходит в
// заголовке Authorization: Bearer. Актор кладётся в контекст запроса и
// дальше течёт через команды и запросы как access.Actor.
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore keeps authenticated session tokens.
// Implemented by the Redis session store.
type SessionStore interface {
	// Put stores a session token for a teacher account.
	Put(ctx context.Context, token, teacherID string) error

	// Resolve returns the teacher ID for a token, or an error when the
	// token is unknown or expired.
	Resolve(ctx context.Context, token string) (string, error)

	// Drop removes a session token.
	Drop(ctx context.Context, token string) error
}

// loginRequest is the login payload.
type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// loginResponse carries the issued session token.
type loginResponse struct {
	Token       string `json:"token"`
	TeacherID   string `json:"teacher_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// handleLogin verifies credentials and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Login == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "login and password are required")
		return
	}

	account, err := s.deps.Accounts.GetByLogin(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, access.ErrAccountNotFound) {
			// Одинаковый ответ для неизвестного логина и неверного пароля.
			writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
			return
		}
		s.log.Error("failed to load account", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to process login")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
		return
	}

	token := uuid.NewString()
	if err := s.deps.Sessions.Put(r.Context(), token, account.ID); err != nil {
		s.log.Error("failed to store session", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		TeacherID:   account.ID,
		DisplayName: account.DisplayName,
		Role:        string(account.Role),
	})
}

// handleLogout drops the caller's session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		_ = s.deps.Sessions.Drop(r.Context(), token)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// createAccountRequest is the payload for registering a teacher account.
type createAccountRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// handleCreateAccount registers a teacher account. Admin only.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		writeJSONError(w, http.StatusForbidden, "forbidden", "only admins create accounts")
		return
	}

	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Password) < 8 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("failed to hash password", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	account, err := access.NewAccount(uuid.NewString(), req.Login, string(hash), req.DisplayName, access.Role(req.Role))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.deps.Accounts.Create(r.Context(), account); err != nil {
		if errors.Is(err, access.ErrAccountExists) {
			writeJSONError(w, http.StatusConflict, "conflict", "login is already taken")
			return
		}
		s.log.Error("failed to create account", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"teacher_id":   account.ID,
		"login":        account.Login,
		"display_name": account.DisplayName,
		"role":         string(account.Role),
	})
}

// authenticated wraps a handler with session authentication.
// The resolved actor is placed into the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		teacherID, err := s.deps.Sessions.Resolve(r.Context(), token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}

		account, err := s.deps.Accounts.GetByID(r.Context(), teacherID)
		if err != nil {
			// Сессия пережила аккаунт: считаем её недействительной.
			_ = s.deps.Sessions.Drop(r.Context(), token)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyActor, account.Actor())
		next(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// actorFrom returns the authenticated actor from the request context.
func actorFrom(ctx context.Context) access.Actor {
	if actor, ok := ctx.Value(contextKeyActor).(access.Actor); ok {
		return actor
	}
	return access.Actor{}
}
