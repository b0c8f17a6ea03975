package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/handler/dto"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

// ChatActions loads what the chat window needs.
type ChatActions interface {
	GetConversation(ctx context.Context, conversationID, userID string) (*model.ConversationDetail, error)
	GetMessages(ctx context.Context, conversationID, userID string) ([]*model.Message, error)
}

// ChatBackend is the full chat surface. Implemented by *service.ChatService.
type ChatBackend interface {
	ChatActions
	ListConversations(ctx context.Context, userID string) ([]*model.ConversationPreview, error)
	GetMessagesPage(ctx context.Context, conversationID, userID, cursor string) ([]*model.Message, string, error)
	SendMessage(ctx context.Context, conversationID, userID, body string) (*model.Message, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// StreamServer upgrades a request into a live message stream.
// Implemented by *realtime.Hub.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, conversationID string) error
}

// ChatHandler handles the chat pages and message API.
type ChatHandler struct {
	chats   ChatBackend
	stream  StreamServer
	pages   pages
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewChatHandler creates a new ChatHandler. stream may be nil, in which
// case the websocket route answers 503.
func NewChatHandler(chats ChatBackend, stream StreamServer, renderer Renderer, logger *slog.Logger, recorder metrics.Recorder) *ChatHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ChatHandler{
		chats:   chats,
		stream:  stream,
		pages:   pages{renderer: renderer, logger: logger},
		logger:  logger,
		metrics: recorder,
	}
}

// List handles GET /chat.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	previews, err := h.chats.ListConversations(r.Context(), userID)
	if err != nil {
		h.logger.Error("list conversations failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "We could not load your conversations.")
		return
	}

	h.pages.render(w, r, http.StatusOK, web.PageChatList, &web.Page{
		Title: "Chats",
		Data:  web.ChatListView{Conversations: previews},
	})
}

// Show handles GET /chat/{conversationID}.
//
// The conversation and its messages are fetched concurrently. If the
// conversation cannot be loaded the visitor is sent back to the chat list
// and the window is never rendered, whatever happened to the messages.
// A failed message fetch renders an empty window.
func (h *ChatHandler) Show(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveChatLoadDuration(time.Since(start)) }()

	conversationID := chi.URLParam(r, "conversationID")
	userID := auth.UserIDFromContext(r.Context())

	detail, messages, err := h.load(r.Context(), conversationID, userID)
	if err != nil || detail == nil || detail.Conversation == nil {
		level := slog.LevelError
		if err == nil || errors.Is(err, service.ErrConversationNotFound) {
			level = slog.LevelInfo
		}
		h.logger.Log(r.Context(), level, "conversation unavailable, redirecting",
			"conversation_id", conversationID,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		http.Redirect(w, r, ChatPath, http.StatusFound)
		return
	}

	if messages == nil {
		messages = []*model.Message{}
	}

	h.pages.render(w, r, http.StatusOK, web.PageChat, &web.Page{
		Title: detail.Other.Name,
		Data: web.ChatView{
			Conversation:  detail.Conversation,
			Other:         detail.Other,
			Messages:      messages,
			CurrentUserID: userID,
		},
	})
}

// load fetches the conversation and messages in parallel. Only the
// conversation error is returned; a message error is logged and dropped.
func (h *ChatHandler) load(ctx context.Context, conversationID, userID string) (*model.ConversationDetail, []*model.Message, error) {
	var (
		detail   *model.ConversationDetail
		messages []*model.Message
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := h.chats.GetConversation(gctx, conversationID, userID)
		if err != nil {
			return err
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		msgs, err := h.chats.GetMessages(gctx, conversationID, userID)
		if err != nil {
			if gctx.Err() == nil {
				h.logger.Warn("load messages failed",
					"conversation_id", conversationID,
					"error", err,
				)
			}
			return nil
		}
		messages = msgs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return detail, messages, nil
}

// Messages handles GET /chat/{conversationID}/messages?cursor=.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := auth.UserIDFromContext(r.Context())
	cursor := r.URL.Query().Get("cursor")

	messages, next, err := h.chats.GetMessagesPage(r.Context(), conversationID, userID, cursor)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToMessageListResponse(messages, next))
}

// Send handles POST /chat/{conversationID}/messages. JSON clients get the
// stored message back; plain form posts are redirected to the chat window.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := auth.UserIDFromContext(r.Context())
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var body string
	if isJSON {
		var req dto.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
		body = req.Body
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		body = r.PostFormValue("body")
	}

	msg, err := h.chats.SendMessage(r.Context(), conversationID, userID, body)
	if err != nil {
		if !isJSON {
			h.handleFormError(w, r, conversationID, err)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	if !isJSON {
		http.Redirect(w, r, ChatPath+"/"+conversationID, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToMessageResponse(msg))
}

// Stream handles GET /chat/{conversationID}/ws.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		http.Error(w, "Live updates unavailable", http.StatusServiceUnavailable)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	userID := auth.UserIDFromContext(r.Context())

	ok, err := h.chats.IsParticipant(r.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("membership check failed",
			"conversation_id", conversationID,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if err := h.stream.Serve(w, r, conversationID); err != nil {
		h.logger.Debug("chat stream ended with error",
			"conversation_id", conversationID,
			"error", err,
		)
	}
}

// handleServiceError maps service errors to JSON responses.
func (h *ChatHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message body is required")
	case errors.Is(err, service.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "MESSAGE_TOO_LONG", "Message must be at most 2000 characters")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	default:
		h.logger.Error("chat request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func (h *ChatHandler) handleFormError(w http.ResponseWriter, r *http.Request, conversationID string, err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		http.Redirect(w, r, ChatPath, http.StatusSeeOther)
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
		http.Redirect(w, r, ChatPath+"/"+conversationID, http.StatusSeeOther)
	default:
		h.logger.Error("send message failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Your message was not sent.")
	}
}
