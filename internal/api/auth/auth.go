package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tasktracker/internal/api/middleware"
	"tasktracker/internal/api/response"
	"tasktracker/internal/api/validate"
	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// UserStore 是注册与登录所需的凭据存储。
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenIssuer 为用户签发访问令牌。
type TokenIssuer interface {
	Issue(userID uint, email string) (string, error)
}

// Handler 提供注册、登录与个人资料接口。
type Handler struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(users UserStore, tokens TokenIssuer, bcryptCost int, logger *slog.Logger) *Handler {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Handler{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

type authResponse struct {
	User  model.Profile `json:"user"`
	Token string        `json:"token"`
}

const msgBadCredentials = "Invalid email or password"

// Register 创建新用户并签发令牌。
func (h *Handler) Register(c *gin.Context) {
	var req validate.CredentialsRequest
	if err := validate.BindJSON(c, &req); err != nil {
		response.Error(c, h.logger, err, response.Messages{})
		return
	}
	creds, err := validate.Register(req)
	if err != nil {
		response.Error(c, h.logger, err, response.Messages{})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), h.bcryptCost)
	if err != nil {
		response.Error(c, h.logger, err, response.Messages{Internal: "Internal server error during registration"})
		return
	}

	user := model.User{
		Email:        creds.Email,
		PasswordHash: string(hash),
	}
	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		response.Error(c, h.logger, err, response.Messages{
			Conflict: "User already exists with this email",
			Internal: "Internal server error during registration",
		})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		response.Error(c, h.logger, err, response.Messages{Internal: "Internal server error during registration"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", user.Email), slog.Uint64("user_id", uint64(user.ID)))
	}
	response.OK(c, http.StatusCreated, "User registered successfully", authResponse{User: user.Profile(), Token: token})
}

// Login 校验邮箱与密码并返回 JWT。
func (h *Handler) Login(c *gin.Context) {
	var req validate.CredentialsRequest
	if err := validate.BindJSON(c, &req); err != nil {
		response.Error(c, h.logger, err, response.Messages{})
		return
	}
	creds, err := validate.Login(req)
	if err != nil {
		response.Error(c, h.logger, err, response.Messages{})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), creds.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
			response.Fail(c, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		response.Error(c, h.logger, err, response.Messages{Internal: "Internal server error during login"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
		if h.logger != nil {
			h.logger.Info("login rejected", slog.String("email", creds.Email))
		}
		response.Fail(c, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		response.Error(c, h.logger, err, response.Messages{Internal: "Internal server error during login"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", user.Email))
	}
	response.OK(c, http.StatusOK, "Login successful", authResponse{User: user.Profile(), Token: token})
}

// Profile 返回当前用户的非敏感资料。
func (h *Handler) Profile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "Not authorized")
		return
	}
	response.OK(c, http.StatusOK, "", gin.H{"user": user})
}
