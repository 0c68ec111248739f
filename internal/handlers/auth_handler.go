package handlers

import (
	"context"
	"net/http"

	"github.com/bartermarket/backend/internal/middleware"
	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Logout(ctx context.Context, token string) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error)
}

type AuthHandler struct {
	service   AuthService
	validator *services.ValidationHelper
}

func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// RegisterRequest represents the registration request
// @Description User registration request structure
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password    string `json:"password" validate:"required,min=8" example:"password123"`
	Username    string `json:"username" validate:"required,min=3,max=30" example:"jane"`
	DisplayName string `json:"displayName" validate:"omitempty,max=100" example:"Jane Doe"`
}

// LoginRequest represents the login request
// @Description User login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// Register creates an account and returns a token
// @Summary Register a new member
// @Description Create an account; the signup bonus is credited to the new wallet
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Login authenticates a member
// @Summary Login
// @Description Exchange email and password for a JWT
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} services.AuthResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout revokes the presented token
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err == nil {
		if err := h.service.Logout(r.Context(), token); err != nil {
			services.SendServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me returns the caller's profile
// @Summary Current profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// PublicProfile returns another member's public profile
// @Summary Public profile
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id} [get]
func (h *AuthHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.service.GetPublicProfile(r.Context(), profileID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
