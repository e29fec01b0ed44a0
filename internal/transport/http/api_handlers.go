package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/auth"
)

// AccountHandlers serves registration and login.
type AccountHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

// NewAccountHandlers creates account handlers over the auth service.
func NewAccountHandlers(authService *auth.Service, logger *zerolog.Logger) *AccountHandlers {
	return &AccountHandlers{auth: authService, log: logger}
}

// RegisterRequest is the body of POST /api/register. Language optionally
// sets the reading language up front.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Language string `json:"language"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued token. Language is the stored preference,
// omitted while the user reads in the server default.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Language string `json:"language,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newAuthResponse(a *auth.Account) AuthResponse {
	return AuthResponse{Token: a.Token, Username: a.Username, Language: a.Language}
}

// Register handles POST /api/register.
func (h *AccountHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	account, err := h.auth.Register(c.Request.Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Language: req.Language,
	})
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidLanguage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Int64("user_id", account.UserID).
		Str("username", account.Username).
		Str("language", account.Language).
		Msg("user registered")
	c.JSON(http.StatusCreated, newAuthResponse(account))
}

// Login handles POST /api/login.
func (h *AccountHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	account, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Int64("user_id", account.UserID).Msg("user logged in")
	c.JSON(http.StatusOK, newAuthResponse(account))
}
