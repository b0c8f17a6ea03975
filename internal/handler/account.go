package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/format"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

// ProfileBackend reads and updates the signed-in user.
// Implemented by *service.ProfileService.
type ProfileBackend interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID, fullName, email string) (*model.User, error)
	GetStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// AccountHandler serves the profile, settings and analytics pages.
type AccountHandler struct {
	profiles ProfileBackend
	pages    pages
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(profiles ProfileBackend, renderer Renderer, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		profiles: profiles,
		pages:    pages{renderer: renderer, logger: logger},
		logger:   logger,
	}
}

// Profile handles GET /profile.
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	initials := format.Initials(user.FullName)
	if initials == "" {
		initials = "?"
	}

	h.pages.render(w, r, http.StatusOK, web.PageProfile, &web.Page{
		Title: "Profile",
		Data: web.ProfileView{
			Name:        user.DisplayName(),
			Initials:    initials,
			Phone:       user.Phone,
			Email:       user.Email,
			MemberSince: user.CreatedAt,
		},
	})
}

// Settings handles GET /settings.
func (h *AccountHandler) Settings(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	page := &web.Page{
		Title: "Settings",
		Data:  web.SettingsView{FullName: user.FullName, Email: user.Email},
	}
	if r.URL.Query().Get("saved") == "1" {
		page.Notice = "Profile saved."
	}
	h.pages.render(w, r, http.StatusOK, web.PageSettings, page)
}

// UpdateSettings handles POST /settings.
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pages.renderError(w, r, http.StatusBadRequest, "Bad request", "Invalid form submission.")
		return
	}
	fullName := r.PostFormValue("full_name")
	email := r.PostFormValue("email")
	userID := auth.UserIDFromContext(r.Context())

	_, err := h.profiles.UpdateProfile(r.Context(), userID, fullName, email)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Your changes were not saved. Please try again."
		switch {
		case errors.Is(err, service.ErrInvalidFullName):
			status, message = http.StatusBadRequest, "Full name must be at most 100 characters."
		case errors.Is(err, service.ErrInvalidEmail):
			status, message = http.StatusBadRequest, "Enter a valid email address."
		case errors.Is(err, service.ErrUserNotFound):
			status, message = http.StatusNotFound, "Your profile could not be found."
		default:
			h.logger.Error("update profile failed",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
		}
		h.pages.render(w, r, status, web.PageSettings, &web.Page{
			Title: "Settings",
			Error: message,
			Data:  web.SettingsView{FullName: fullName, Email: email},
		})
		return
	}

	h.logger.Info("profile_updated", "user_id", userID)
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}

// Analytics handles GET /analytics.
func (h *AccountHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	stats, err := h.profiles.GetStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("load stats failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "We could not load your ride analytics.")
		return
	}

	h.pages.render(w, r, http.StatusOK, web.PageAnalytics, &web.Page{
		Title: "Analytics",
		Data:  stats,
	})
}

// currentUser loads the session's user. Users the database does not know
// (the demo user, or a provider account not yet synced) are built from
// the session itself.
func (h *AccountHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	s := auth.SessionFromContext(r.Context())
	if s == nil {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return nil, false
	}

	user, err := h.profiles.GetProfile(r.Context(), s.User.ID)
	if err == nil {
		return user, true
	}
	if errors.Is(err, service.ErrUserNotFound) {
		return &model.User{ID: s.User.ID, Phone: s.User.Phone, Email: s.User.Email}, true
	}

	h.logger.Error("load profile failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "We could not load your profile.")
	return nil, false
}
