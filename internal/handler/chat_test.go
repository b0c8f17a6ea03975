package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/handler/dto"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

func testDetail() *model.ConversationDetail {
	return &model.ConversationDetail{
		Conversation: &model.Conversation{
			ID:             "conv-1",
			ParticipantIDs: []string{"alice", "bob"},
			RideLabel:      "HSR Layout → Airport",
			FareEstimate:   1200,
			CreatedAt:      time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		},
		Other: model.ParticipantSummary{ID: "bob", Name: "Bob Menon", Phone: "+91 98123 45678", Initials: "BM"},
	}
}

func testMessages() []*model.Message {
	at := time.Date(2026, 10, 18, 10, 5, 0, 0, time.UTC)
	return []*model.Message{
		{ID: "m1", ConversationID: "conv-1", SenderID: "alice", Body: "Leaving in 10", CreatedAt: at},
		{ID: "m2", ConversationID: "conv-1", SenderID: "bob", Body: "Ok", CreatedAt: at.Add(time.Minute)},
	}
}

func newShowRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/chat/conv-1", nil)
	req = withURLParam(req, "conversationID", "conv-1")
	return withSession(req, userID)
}

func TestChatHandler_Show_RendersWindow(t *testing.T) {
	t.Parallel()

	chats := &fakeChat{detail: testDetail(), messages: testMessages()}
	renderer := newSpyRenderer(t)
	rec := metrics.NewInMemory()
	h := NewChatHandler(chats, nil, renderer, discardLogger(), rec)

	w := httptest.NewRecorder()
	h.Show(w, newShowRequest("alice"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	page, data, calls := renderer.last()
	if calls != 1 || page != web.PageChat {
		t.Fatalf("rendered %q %d times, want chat once", page, calls)
	}
	view, ok := data.Data.(web.ChatView)
	if !ok {
		t.Fatalf("page data = %T, want web.ChatView", data.Data)
	}
	if view.CurrentUserID != "alice" {
		t.Errorf("CurrentUserID = %q, want alice", view.CurrentUserID)
	}
	if view.Other.Name != "Bob Menon" {
		t.Errorf("Other = %+v", view.Other)
	}
	if len(view.Messages) != 2 {
		t.Errorf("len(Messages) = %d, want 2", len(view.Messages))
	}
	if !strings.Contains(w.Body.String(), "Leaving in 10") {
		t.Error("body missing message text")
	}
	if got := rec.Snapshot().ChatLoadCount; got != 1 {
		t.Errorf("ChatLoadCount = %d, want 1", got)
	}
}

func TestChatHandler_Show_ConversationFailureRedirects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		chats *fakeChat
	}{
		{
			name:  "not found",
			chats: &fakeChat{convErr: service.ErrConversationNotFound, messages: testMessages()},
		},
		{
			name:  "backend error",
			chats: &fakeChat{convErr: errBoom, messages: testMessages()},
		},
		{
			name:  "nil conversation",
			chats: &fakeChat{detail: nil, messages: testMessages()},
		},
		{
			name:  "both fail",
			chats: &fakeChat{convErr: errBoom, msgErr: errBoom},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			renderer := newSpyRenderer(t)
			h := NewChatHandler(tc.chats, nil, renderer, discardLogger(), nil)

			w := httptest.NewRecorder()
			h.Show(w, newShowRequest("alice"))

			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/chat" {
				t.Errorf("Location = %q, want /chat", loc)
			}
			if _, _, calls := renderer.last(); calls != 0 {
				t.Errorf("chat window rendered %d times, want 0", calls)
			}
			if strings.Contains(w.Body.String(), "Leaving in 10") {
				t.Error("messages leaked into redirect response")
			}
		})
	}
}

func TestChatHandler_Show_MessageFailureRendersEmpty(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		chats *fakeChat
	}{
		{"error", &fakeChat{detail: testDetail(), msgErr: errBoom}},
		{"nil list", &fakeChat{detail: testDetail(), messages: nil}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			renderer := newSpyRenderer(t)
			h := NewChatHandler(tc.chats, nil, renderer, discardLogger(), nil)

			w := httptest.NewRecorder()
			h.Show(w, newShowRequest("alice"))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			_, data, _ := renderer.last()
			view := data.Data.(web.ChatView)
			if view.Messages == nil || len(view.Messages) != 0 {
				t.Errorf("Messages = %#v, want empty non-nil slice", view.Messages)
			}
			if !strings.Contains(w.Body.String(), "Say hello") {
				t.Error("expected empty-state placeholder")
			}
		})
	}
}

func TestChatHandler_Show_FetchesConcurrently(t *testing.T) {
	t.Parallel()

	chats := &fakeChat{detail: testDetail(), messages: testMessages(), delay: 100 * time.Millisecond}
	h := NewChatHandler(chats, nil, newSpyRenderer(t), discardLogger(), nil)

	w := httptest.NewRecorder()
	h.Show(w, newShowRequest("alice"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := chats.maxFlight.Load(); got != 2 {
		t.Errorf("max concurrent fetches = %d, want 2", got)
	}
	if chats.convCalls.Load() != 1 || chats.msgCalls.Load() != 1 {
		t.Errorf("calls: conversation=%d messages=%d, want 1 each",
			chats.convCalls.Load(), chats.msgCalls.Load())
	}
}

func TestChatHandler_Show_RenderFailure(t *testing.T) {
	t.Parallel()

	chats := &fakeChat{detail: testDetail(), messages: testMessages()}
	h := NewChatHandler(chats, nil, failingRenderer{}, discardLogger(), nil)

	w := httptest.NewRecorder()
	h.Show(w, newShowRequest("alice"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestChatHandler_List(t *testing.T) {
	t.Parallel()

	detail := testDetail()
	chats := &fakeChat{previews: []*model.ConversationPreview{
		{Conversation: detail.Conversation, Other: detail.Other, LastMessage: "See you at gate 3"},
	}}
	renderer := newSpyRenderer(t)
	h := NewChatHandler(chats, nil, renderer, discardLogger(), nil)

	w := httptest.NewRecorder()
	h.List(w, withSession(httptest.NewRequest(http.MethodGet, "/chat", nil), "alice"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`href="/chat/conv-1"`, "Bob Menon", "See you at gate 3"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestChatHandler_List_Error(t *testing.T) {
	t.Parallel()

	h := NewChatHandler(&fakeChat{listErr: errBoom}, nil, newSpyRenderer(t), discardLogger(), nil)

	w := httptest.NewRecorder()
	h.List(w, withSession(httptest.NewRequest(http.MethodGet, "/chat", nil), "alice"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestChatHandler_Messages(t *testing.T) {
	t.Parallel()

	chats := &fakeChat{messages: testMessages(), nextPage: "cursor-2"}
	h := NewChatHandler(chats, nil, newSpyRenderer(t), discardLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/conv-1/messages", nil)
	req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
	w := httptest.NewRecorder()
	h.Messages(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp dto.MessageListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "m1" {
		t.Errorf("Data = %+v", resp.Data)
	}
	if !resp.Pagination.HasMore || resp.Pagination.NextCursor != "cursor-2" {
		t.Errorf("Pagination = %+v", resp.Pagination)
	}
	if resp.Data[0].CreatedAtDisplay != "18 Oct 2026, 3:35 pm" {
		t.Errorf("CreatedAtDisplay = %q", resp.Data[0].CreatedAtDisplay)
	}
}

func TestChatHandler_Messages_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{service.ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
		{service.ErrInvalidCursor, http.StatusBadRequest, "INVALID_CURSOR"},
		{errBoom, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.wantCode, func(t *testing.T) {
			t.Parallel()

			h := NewChatHandler(&fakeChat{pageErr: tc.err}, nil, newSpyRenderer(t), discardLogger(), nil)
			req := httptest.NewRequest(http.MethodGet, "/chat/conv-1/messages?cursor=x", nil)
			req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
			w := httptest.NewRecorder()
			h.Messages(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp dto.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestChatHandler_Send_JSON(t *testing.T) {
	t.Parallel()

	sent := &model.Message{ID: "m9", ConversationID: "conv-1", SenderID: "alice", Body: "Here", CreatedAt: time.Now()}
	chats := &fakeChat{sent: sent}
	h := NewChatHandler(chats, nil, newSpyRenderer(t), discardLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(`{"body":"Here"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
	w := httptest.NewRecorder()
	h.Send(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp dto.MessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "m9" || resp.Body != "Here" {
		t.Errorf("response = %+v", resp)
	}
	if chats.lastBody != "Here" {
		t.Errorf("service got body %q", chats.lastBody)
	}
}

func TestChatHandler_Send_JSONErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"empty", `{"body":"  "}`, service.ErrEmptyMessage, http.StatusBadRequest, "EMPTY_MESSAGE"},
		{"too long", `{"body":"x"}`, service.ErrMessageTooLong, http.StatusBadRequest, "MESSAGE_TOO_LONG"},
		{"not member", `{"body":"hi"}`, service.ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := NewChatHandler(&fakeChat{sendErr: tc.err}, nil, newSpyRenderer(t), discardLogger(), nil)
			req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
			w := httptest.NewRecorder()
			h.Send(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp dto.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestChatHandler_Send_FormRedirects(t *testing.T) {
	t.Parallel()

	chats := &fakeChat{sent: &model.Message{ID: "m1"}}
	h := NewChatHandler(chats, nil, newSpyRenderer(t), discardLogger(), nil)

	form := url.Values{"body": {"On my way"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
	w := httptest.NewRecorder()
	h.Send(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/chat/conv-1" {
		t.Errorf("Location = %q", loc)
	}
	if chats.lastBody != "On my way" {
		t.Errorf("service got body %q", chats.lastBody)
	}
}

func TestChatHandler_Stream(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		chats      *fakeChat
		stream     bool
		wantStatus int
		wantServed int32
	}{
		{"member", &fakeChat{member: true}, true, http.StatusSwitchingProtocols, 1},
		{"not member", &fakeChat{member: false}, true, http.StatusNotFound, 0},
		{"membership error", &fakeChat{memberErr: errBoom}, true, http.StatusInternalServerError, 0},
		{"no stream", &fakeChat{member: true}, false, http.StatusServiceUnavailable, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stream := &fakeStream{}
			var server StreamServer
			if tc.stream {
				server = stream
			}
			h := NewChatHandler(tc.chats, server, newSpyRenderer(t), discardLogger(), nil)

			req := httptest.NewRequest(http.MethodGet, "/chat/conv-1/ws", nil)
			req = withSession(withURLParam(req, "conversationID", "conv-1"), "alice")
			w := httptest.NewRecorder()
			h.Stream(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := stream.served.Load(); got != tc.wantServed {
				t.Errorf("served = %d, want %d", got, tc.wantServed)
			}
			if tc.wantServed > 0 {
				if id := fmt.Sprint(stream.convID.Load()); id != "conv-1" {
					t.Errorf("served conversation %q", id)
				}
			}
		})
	}
}
