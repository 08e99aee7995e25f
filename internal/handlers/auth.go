package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mualim/api/internal/entitlement"
	"github.com/mualim/api/internal/middleware"
	"github.com/mualim/api/internal/models"
	"github.com/mualim/api/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var validate = validator.New()

// normalizeEmail trims and lower-cases an address, then checks its syntax.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", errors.New("invalid email address")
	}
	return email, nil
}

// uniqueViolation is the Postgres error code for a duplicate key.
const uniqueViolation = "23505"

// UserQuerier is the subset of the connection pool the auth handler uses.
type UserQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provisioner creates the initial membership row for a new account.
type Provisioner interface {
	Ensure(ctx context.Context, userID uuid.UUID, email string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db          UserQuerier
	provisioner Provisioner
	memberships entitlement.Store
	events      Emitter
	jwtSecret   string
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db UserQuerier, provisioner Provisioner, memberships entitlement.Store, events Emitter, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:          db,
		provisioner: provisioner,
		memberships: memberships,
		events:      events,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is the response for auth endpoints
type AuthResponse struct {
	Token      string             `json:"token"`
	ExpiresAt  time.Time          `json:"expires_at"`
	User       *models.User       `json:"user"`
	Membership entitlement.Status `json:"membership"`
}

// Register creates a new teacher account with an inactive membership.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		middleware.InternalError(c, "internal server error")
		return
	}

	user := models.User{ID: uuid.New(), Email: email, Name: strings.TrimSpace(req.Name)}
	err = h.db.QueryRow(c.Request.Context(), `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Name, string(hashedPassword)).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			middleware.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		middleware.InternalError(c, "internal server error")
		return
	}

	if err := h.provisioner.Ensure(c.Request.Context(), user.ID, user.Email); err != nil {
		h.logger.Error("failed to provision membership", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if h.events != nil {
		h.events.Emit(telemetry.EventUserRegistered, map[string]any{"user_id": user.ID.String()})
	}

	h.respondWithToken(c, http.StatusCreated, &user)
}

// Login authenticates a teacher
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	var user models.User
	err = h.db.QueryRow(c.Request.Context(), `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			h.logger.Error("failed to load user", zap.Error(err))
		}
		middleware.Unauthorized(c, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		middleware.Unauthorized(c, "invalid credentials")
		return
	}

	h.respondWithToken(c, http.StatusOK, &user)
}

// GetCurrentUser returns the authenticated teacher and their membership.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	var user models.User
	err := h.db.QueryRow(c.Request.Context(), `
		SELECT id, email, name, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		middleware.NotFound(c, "user not found")
		return
	}

	st, err := h.memberships.Status(c.Request.Context(), user.ID, user.Email)
	if err != nil {
		h.logger.Warn("membership lookup failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "membership": st})
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := middleware.IssueToken(h.jwtSecret, user.ID, user.Email, tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		middleware.InternalError(c, "internal server error")
		return
	}

	st, err := h.memberships.Status(c.Request.Context(), user.ID, user.Email)
	if err != nil {
		h.logger.Warn("membership lookup failed", zap.Error(err))
	}

	c.JSON(status, AuthResponse{
		Token:      token,
		ExpiresAt:  expiresAt,
		User:       user,
		Membership: st,
	})
}
