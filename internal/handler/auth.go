package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

// Authenticator runs the OTP login flow. Implemented by
// *service.AuthService and *service.GoTrueAuth.
type Authenticator interface {
	SendOTP(ctx context.Context, rawPhone string) (string, error)
	VerifyOTP(ctx context.Context, rawPhone, code string) (*model.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// CookieConfig names the session cookies and how they are issued.
type CookieConfig struct {
	SessionName string
	MockName    string
	MockEnabled bool
	// Secure marks cookies HTTPS-only. Off in development.
	Secure bool
}

// AuthHandler handles the login pages.
type AuthHandler struct {
	auth    Authenticator
	cookies CookieConfig
	pages   pages
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authenticator Authenticator, cookies CookieConfig, renderer Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    authenticator,
		cookies: cookies,
		pages:   pages{renderer: renderer, logger: logger},
		logger:  logger,
	}
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, ChatPath, http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", "")
}

// SendOTP handles POST /login/otp.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "Invalid form submission.")
		return
	}
	rawPhone := r.PostFormValue("phone")

	phone, err := h.auth.SendOTP(r.Context(), rawPhone)
	if err != nil {
		var rateErr *service.RateLimitError
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			h.renderLogin(w, r, http.StatusBadRequest, rawPhone, "Enter a valid mobile number.")
		case errors.As(err, &rateErr):
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rateErr.RetryAfter)))
			h.renderLogin(w, r, http.StatusTooManyRequests, rawPhone, "Too many codes requested. Please wait a few minutes and try again.")
		case errors.Is(err, service.ErrOTPRateLimited):
			h.renderLogin(w, r, http.StatusTooManyRequests, rawPhone, "Too many codes requested. Please wait a few minutes and try again.")
		case errors.Is(err, service.ErrOTPDeliveryFailed):
			h.renderLogin(w, r, http.StatusBadGateway, rawPhone, "We could not send a code right now. Please try again.")
		default:
			h.logger.Error("send otp failed",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
			h.renderLogin(w, r, http.StatusInternalServerError, rawPhone, "Something went wrong. Please try again.")
		}
		return
	}

	h.pages.render(w, r, http.StatusOK, web.PageVerify, &web.Page{
		Title:  "Enter code",
		Notice: "Code sent.",
		Data:   web.VerifyView{Phone: phone},
	})
}

// VerifyOTP handles POST /login/verify.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "Invalid form submission.")
		return
	}
	phone := r.PostFormValue("phone")
	code := r.PostFormValue("code")

	result, err := h.auth.VerifyOTP(r.Context(), phone, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			h.renderLogin(w, r, http.StatusBadRequest, phone, "Enter a valid mobile number.")
		case errors.Is(err, service.ErrInvalidOTP):
			h.renderVerify(w, r, http.StatusUnauthorized, phone, "That code is not right. Check the SMS and try again.")
		case errors.Is(err, service.ErrOTPExpired):
			h.renderLogin(w, r, http.StatusUnauthorized, phone, "That code has expired. Request a new one.")
		case errors.Is(err, service.ErrOTPAttemptsExceeded):
			h.renderLogin(w, r, http.StatusTooManyRequests, phone, "Too many wrong attempts. Request a new code.")
		default:
			h.logger.Error("verify otp failed",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
			h.renderVerify(w, r, http.StatusInternalServerError, phone, "Something went wrong. Please try again.")
		}
		return
	}

	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	h.clearCookie(w, h.cookies.MockName)

	h.logger.Info("user_logged_in", "user_id", result.User.ID)
	http.Redirect(w, r, ChatPath, http.StatusSeeOther)
}

// Logout handles POST /logout. Cookies are cleared even if revoking the
// session fails.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookies.SessionName); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			h.logger.Warn("logout failed",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
		}
	}

	h.clearCookie(w, h.cookies.SessionName)
	h.clearCookie(w, h.cookies.MockName)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// Demo handles GET /demo by setting the mock-session cookie.
func (h *AuthHandler) Demo(w http.ResponseWriter, r *http.Request) {
	if !h.cookies.MockEnabled {
		h.pages.renderError(w, r, http.StatusNotFound, "Page not found", "The page you were looking for does not exist.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.MockName,
		Value:    "1",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, ChatPath, http.StatusFound)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, phone, message string) {
	h.pages.render(w, r, status, web.PageLogin, &web.Page{
		Title: "Log in",
		Error: message,
		Data:  web.LoginView{Phone: phone, DemoEnabled: h.cookies.MockEnabled},
	})
}

func (h *AuthHandler) renderVerify(w http.ResponseWriter, r *http.Request, status int, phone, message string) {
	h.pages.render(w, r, status, web.PageVerify, &web.Page{
		Title: "Enter code",
		Error: message,
		Data:  web.VerifyView{Phone: phone},
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.SessionName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	if name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Seconds())
	if d > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
