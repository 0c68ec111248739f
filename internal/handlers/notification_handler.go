package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	GetPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error)
	SetPreference(ctx context.Context, userID, notificationType string, enabled bool) (*models.NotificationPreference, error)
}

type NotificationHandler struct {
	service   NotificationService
	validator *services.ValidationHelper
}

func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// PreferenceRequest toggles one notification type
// @Description Notification preference request structure
type PreferenceRequest struct {
	Type    string `json:"type" validate:"required" example:"message"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Param limit query int false "At most 200"
// @Success 200 {array} models.Notification
// @Failure 400 {object} services.ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	var unreadOnly bool
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid unread parameter", http.StatusBadRequest, nil)
			return
		}
		unreadOnly = parsed
	}

	notifications, err := h.service.List(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// UnreadCount returns how many notifications are unread
// @Summary Unread notification count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{count=int64}
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} object{success=bool}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	notificationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), notificationID, userID); err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MarkAllRead marks every notification as read
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{updated=int64}
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// GetPreferences lists the enabled state of every notification type
// @Summary Notification preferences
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.NotificationPreference
// @Router /notifications/preferences [get]
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// SetPreference enables or mutes one notification type
// @Summary Update notification preference
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PreferenceRequest true "Preference"
// @Success 200 {object} models.NotificationPreference
// @Failure 400 {object} services.ErrorResponse
// @Router /notifications/preferences [put]
func (h *NotificationHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req PreferenceRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	pref, err := h.service.SetPreference(r.Context(), userID, req.Type, *req.Enabled)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pref)
}
