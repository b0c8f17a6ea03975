package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sharetaxi/sharetaxi/internal/auth"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spyRenderer renders with the real templates and remembers the last call.
type spyRenderer struct {
	real *web.Renderer

	mu    sync.Mutex
	calls int
	page  string
	data  *web.Page
}

func newSpyRenderer(t *testing.T) *spyRenderer {
	t.Helper()
	r, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("web.NewRenderer() error = %v", err)
	}
	return &spyRenderer{real: r}
}

func (s *spyRenderer) Render(w io.Writer, page string, data *web.Page) error {
	s.mu.Lock()
	s.calls++
	s.page = page
	s.data = data
	s.mu.Unlock()
	return s.real.Render(w, page, data)
}

func (s *spyRenderer) last() (string, *web.Page, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page, s.data, s.calls
}

type failingRenderer struct{}

func (failingRenderer) Render(io.Writer, string, *web.Page) error {
	return errBoom
}

func withSession(r *http.Request, userID string) *http.Request {
	s := &model.Session{User: model.SessionUser{ID: userID, Phone: "+919876543210", Email: userID + "@example.in"}}
	return r.WithContext(auth.ContextWithSession(r.Context(), s))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// fakeChat implements ChatBackend.
type fakeChat struct {
	detail   *model.ConversationDetail
	convErr  error
	messages []*model.Message
	msgErr   error
	delay    time.Duration

	convCalls atomic.Int32
	msgCalls  atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32

	previews  []*model.ConversationPreview
	listErr   error
	nextPage  string
	pageErr   error
	sent      *model.Message
	sendErr   error
	member    bool
	memberErr error

	mu       sync.Mutex
	lastBody string
}

func (f *fakeChat) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeChat) GetConversation(ctx context.Context, conversationID, userID string) (*model.ConversationDetail, error) {
	f.convCalls.Add(1)
	defer f.enter()()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.convErr != nil {
		return nil, f.convErr
	}
	return f.detail, nil
}

func (f *fakeChat) GetMessages(ctx context.Context, conversationID, userID string) ([]*model.Message, error) {
	f.msgCalls.Add(1)
	defer f.enter()()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	return f.messages, nil
}

func (f *fakeChat) ListConversations(ctx context.Context, userID string) ([]*model.ConversationPreview, error) {
	return f.previews, f.listErr
}

func (f *fakeChat) GetMessagesPage(ctx context.Context, conversationID, userID, cursor string) ([]*model.Message, string, error) {
	if f.pageErr != nil {
		return nil, "", f.pageErr
	}
	return f.messages, f.nextPage, nil
}

func (f *fakeChat) SendMessage(ctx context.Context, conversationID, userID, body string) (*model.Message, error) {
	f.mu.Lock()
	f.lastBody = body
	f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sent, nil
}

func (f *fakeChat) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return f.member, f.memberErr
}

// fakeStream implements StreamServer.
type fakeStream struct {
	served atomic.Int32
	convID atomic.Value
}

func (f *fakeStream) Serve(w http.ResponseWriter, r *http.Request, conversationID string) error {
	f.served.Add(1)
	f.convID.Store(conversationID)
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

// fakeAuth implements Authenticator.
type fakeAuth struct {
	sendPhone string
	sendErr   error
	result    *model.LoginResult
	verifyErr error
	logoutErr error

	mu          sync.Mutex
	gotPhone    string
	gotCode     string
	loggedOut   []string
	verifyCalls int
}

func (f *fakeAuth) SendOTP(ctx context.Context, rawPhone string) (string, error) {
	f.mu.Lock()
	f.gotPhone = rawPhone
	f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sendPhone, nil
}

func (f *fakeAuth) VerifyOTP(ctx context.Context, rawPhone, code string) (*model.LoginResult, error) {
	f.mu.Lock()
	f.gotPhone = rawPhone
	f.gotCode = code
	f.verifyCalls++
	f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.result, nil
}

func (f *fakeAuth) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	f.loggedOut = append(f.loggedOut, token)
	f.mu.Unlock()
	return f.logoutErr
}

// fakeProfiles implements ProfileBackend.
type fakeProfiles struct {
	user      *model.User
	getErr    error
	updateErr error
	stats     *model.UserStats
	statsErr  error

	mu          sync.Mutex
	gotName     string
	gotEmail    string
	updateCalls int
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.user, nil
}

func (f *fakeProfiles) UpdateProfile(ctx context.Context, userID, fullName, email string) (*model.User, error) {
	f.mu.Lock()
	f.gotName, f.gotEmail = fullName, email
	f.updateCalls++
	f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &model.User{ID: userID, FullName: fullName, Email: email}, nil
}

func (f *fakeProfiles) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
