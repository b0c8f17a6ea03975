// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/handler/dto"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

// Redirect targets.
const (
	LoginPath = middleware.DefaultLoginPath
	ChatPath  = "/chat"
)

// Renderer executes a named page template. Implemented by *web.Renderer.
type Renderer interface {
	Render(w io.Writer, page string, data *web.Page) error
}

// pages renders HTML responses and falls back to a plain 500 when a
// template fails.
type pages struct {
	renderer Renderer
	logger   *slog.Logger
}

func (p pages) render(w http.ResponseWriter, r *http.Request, status int, page string, data *web.Page) {
	if data.Session == nil {
		data.Session = auth.SessionFromContext(r.Context())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	var buf strings.Builder
	if err := p.renderer.Render(&buf, page, data); err != nil {
		p.logger.Error("render failed",
			"page", page,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "Internal server error\n")
		return
	}

	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

func (p pages) renderError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p.render(w, r, status, web.PageError, &web.Page{Title: title, Data: detail})
}

// Handler serves the root and fallback routes.
type Handler struct {
	pages pages
}

// New creates a new Handler instance.
func New(renderer Renderer, logger *slog.Logger) *Handler {
	return &Handler{pages: pages{renderer: renderer, logger: logger}}
}

// Home sends signed-in users to their chats and everyone else to login.
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if auth.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, ChatPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	h.pages.renderError(w, r, http.StatusNotFound, "Page not found", "The page you were looking for does not exist.")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	h.pages.renderError(w, r, http.StatusMethodNotAllowed, "Method not allowed", "")
}

// InternalError answers 500 after a recovered panic.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.")
}

// wantsJSON reports whether the client asked for or sent JSON.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
