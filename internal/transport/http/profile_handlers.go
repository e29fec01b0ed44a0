package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/store"
	"github.com/vovakirdan/babelchat-server/internal/translate"
)

// LanguageChangeFunc is called after a user's language preference is stored.
type LanguageChangeFunc func(ctx context.Context, userID int64)

// ProfileHandlers provides HTTP handlers for the language profile.
type ProfileHandlers struct {
	profiles        store.ProfileStore
	defaultLanguage string
	onChange        LanguageChangeFunc
	log             *zerolog.Logger
}

// NewProfileHandlers creates a new profile handlers instance. onChange may be nil.
func NewProfileHandlers(profiles store.ProfileStore, defaultLanguage string, onChange LanguageChangeFunc, logger *zerolog.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		profiles:        profiles,
		defaultLanguage: defaultLanguage,
		onChange:        onChange,
		log:             logger,
	}
}

// ProfileResponse represents a profile in API responses.
type ProfileResponse struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Language  string `json:"language"`
	IsDefault bool   `json:"is_default"`
}

// UpdateProfileRequest represents the profile update request body.
type UpdateProfileRequest struct {
	Language string `json:"language" binding:"required"`
}

// LanguageResponse describes one supported language.
type LanguageResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// GetProfile returns the caller's language preference.
// GET /api/profile
func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	uid, username, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	resp := ProfileResponse{UserID: uid, Username: username}
	lang, err := h.profiles.GetLanguage(c.Request.Context(), uid)
	switch {
	case err == nil && lang != "":
		resp.Language = lang
	case err == nil, errors.Is(err, store.ErrNotFound):
		resp.Language = h.defaultLanguage
		resp.IsDefault = true
	default:
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateProfile changes the caller's language preference.
// PATCH /api/profile
func (h *ProfileHandlers) UpdateProfile(c *gin.Context) {
	uid, username, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid profile request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	lang := translate.Normalize(req.Language)
	if !translate.IsSupported(lang) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported language: " + req.Language})
		return
	}

	profile, err := h.profiles.SetLanguage(c.Request.Context(), uid, lang)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if h.onChange != nil {
		h.onChange(c.Request.Context(), uid)
	}

	h.log.Info().Int64("user_id", uid).Str("language", lang).Msg("language preference updated")
	c.JSON(http.StatusOK, ProfileResponse{UserID: uid, Username: username, Language: profile.Language})
}

// ListLanguages returns every supported language code.
// GET /api/languages
func (h *ProfileHandlers) ListLanguages(c *gin.Context) {
	response := make([]LanguageResponse, 0, len(translate.Languages))
	for code, name := range translate.Languages {
		response = append(response, LanguageResponse{Code: code, Name: name})
	}
	sort.Slice(response, func(i, j int) bool { return response[i].Code < response[j].Code })

	c.JSON(http.StatusOK, response)
}
