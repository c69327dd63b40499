package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/auth"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/audit"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/sessions"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	signer      TokenSigner
	users       *storage.UserRepository
	audit       *audit.Repository
	refreshRepo *sessions.RefreshRepository
	accessTTL   time.Duration
	refreshTTL  time.Duration
	logger      *slog.Logger
	adminKey    string
}

type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AdminKey   string
}

func NewAuthHandler(signer TokenSigner, users *storage.UserRepository, auditRepo *audit.Repository, refreshRepo *sessions.RefreshRepository, logger *slog.Logger, cfg Config) *AuthHandler {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthHandler{
		signer:      signer,
		users:       users,
		audit:       auditRepo,
		refreshRepo: refreshRepo,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		logger:      logger,
		adminKey:    cfg.AdminKey,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Role         string `json:"role"`
	Name         string `json:"name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Login handles POST /api/v1/auth/login. Unknown usernames and wrong
// passwords answer identically so the endpoint does not leak which accounts
// exist; both outcomes land in the audit trail.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if storage.IsNotFound(err) {
			h.recordAudit(ctx, "auth.login.failed", "", map[string]any{"username": req.Username})
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}

	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		h.recordAudit(ctx, "auth.login.failed", user.ID, map[string]any{"username": req.Username})
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issueJWT(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refreshToken, err := h.issueRefreshToken(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue refresh token")
		return
	}

	h.recordAudit(ctx, "auth.login", user.ID, map[string]any{"role": user.Role})
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Role:         user.Role,
		Name:         user.Name,
	})
}

// Refresh handles POST /api/v1/auth/refresh. Refresh tokens are single-use:
// the presented token is revoked and a new pair issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	ctx := r.Context()
	record, err := h.refreshRepo.GetByHash(ctx, sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to lookup refresh token")
		return
	}
	if record.RevokedAt != nil || record.ExpiresAt.Before(time.Now()) {
		writeError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	user, err := h.users.GetByID(ctx, record.UserID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}

	if err := h.refreshRepo.Revoke(ctx, record.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rotate refresh token")
		return
	}

	newRefresh, err := h.issueRefreshToken(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue refresh token")
		return
	}
	newAccess, err := h.issueJWT(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		Role:         user.Role,
		Name:         user.Name,
	})
}

// Logout handles POST /api/v1/auth/logout, revoking the refresh token. An
// unknown token still answers 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	ctx := r.Context()
	record, err := h.refreshRepo.GetByHash(ctx, sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to lookup refresh token")
		return
	}

	if record.RevokedAt == nil {
		if err := h.refreshRepo.Revoke(ctx, record.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to revoke refresh token")
			return
		}
	}
	h.recordAudit(ctx, "auth.logout", record.UserID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me, validating the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	header := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if !strings.HasPrefix(header, "Bearer ") || token == "" {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	claims, err := h.signer.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID: claims.Sub,
		Name:   claims.Name,
		Role:   claims.Role,
	})
}

type createUserRequest struct {
	Username   string `json:"username"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	ProviderID string `json:"provider_id"`
}

// CreateUser handles POST /api/v1/auth/users, gated by the admin key. Staff
// accounts are provisioned here rather than self-registered.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.adminKey == "" || r.Header.Get("X-Admin-Key") != h.adminKey {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Password = strings.TrimSpace(req.Password)
	if req.Username == "" || req.Name == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username, name and a password of at least 8 characters are required")
		return
	}
	switch req.Role {
	case storage.RoleAdmin, storage.RoleMedico, storage.RoleRececao:
	default:
		writeError(w, http.StatusBadRequest, "role must be admin, medico or rececao")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		ProviderID:   strings.TrimSpace(req.ProviderID),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.recordAudit(r.Context(), "auth.user.created", user.ID, map[string]any{"role": user.Role})
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "username": user.Username})
}

// Audit handles GET /api/v1/auth/audit?limit=, gated by the admin key.
func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.adminKey == "" || r.Header.Get("X-Admin-Key") != h.adminKey {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *AuthHandler) issueJWT(user storage.User) (string, error) {
	now := time.Now()
	return h.signer.Sign(auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		Iat:  now.Unix(),
		Exp:  now.Add(h.accessTTL).Unix(),
	})
}

func (h *AuthHandler) issueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if _, err := h.refreshRepo.Create(ctx, userID, raw, time.Now().Add(h.refreshTTL)); err != nil {
		return "", err
	}
	return raw, nil
}

func (h *AuthHandler) recordAudit(ctx context.Context, eventType, actorID string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, eventType, actorID, metadata); err != nil {
		h.logger.Error("audit record failed", "event_type", eventType, "err", err)
	}
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
