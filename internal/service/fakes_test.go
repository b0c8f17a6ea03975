package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sharetaxi/sharetaxi/internal/cache"
	"github.com/sharetaxi/sharetaxi/internal/model"
	"github.com/sharetaxi/sharetaxi/internal/repository"
)

// fakeOTPStore is an in-memory OTPStore.
type fakeOTPStore struct {
	mu       sync.Mutex
	otps     map[string]*cache.StoredOTP
	sends    map[string]int
	limitErr error
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{
		otps:  make(map[string]*cache.StoredOTP),
		sends: make(map[string]int),
	}
}

func (f *fakeOTPStore) CheckOTPSendLimit(ctx context.Context, phone string, limit int, window time.Duration) (*cache.RateLimitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limitErr != nil {
		return nil, f.limitErr
	}
	f.sends[phone]++
	if f.sends[phone] > limit {
		return &cache.RateLimitResult{Allowed: false, RetryAfter: window / time.Duration(limit)}, nil
	}
	return &cache.RateLimitResult{Allowed: true, Remaining: int64(limit - f.sends[phone])}, nil
}

func (f *fakeOTPStore) SetOTP(ctx context.Context, phone, hash string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otps[phone] = &cache.StoredOTP{Hash: hash}
	return nil
}

func (f *fakeOTPStore) GetOTP(ctx context.Context, phone string) (*cache.StoredOTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.otps[phone]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOTPStore) IncrementOTPAttempts(ctx context.Context, phone string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.otps[phone]
	if !ok {
		return 0, cache.ErrCacheMiss
	}
	o.Attempts++
	return o.Attempts, nil
}

func (f *fakeOTPStore) DeleteOTP(ctx context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.otps, phone)
	return nil
}

// fakeSMS records sent messages.
type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeSMS) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// fakeVerify is a VerifyProvider accepting one fixed code.
type fakeVerify struct {
	code    string
	started []string
	err     error
}

func (f *fakeVerify) StartVerification(ctx context.Context, phone string) error {
	f.started = append(f.started, phone)
	return f.err
}

func (f *fakeVerify) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return code == f.code, nil
}

// fakeRepo implements UserStore, AuthSessionStore and ChatStore in memory.
type fakeRepo struct {
	mu            sync.Mutex
	users         map[string]*model.User
	sessions      map[string]*model.AuthSession
	conversations map[string]*model.Conversation
	messages      []*model.Message
	convErr       error
	msgErr        error
	delay         time.Duration
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:         make(map[string]*model.User),
		sessions:      make(map[string]*model.AuthSession),
		conversations: make(map[string]*model.Conversation),
	}
}

func (f *fakeRepo) addUser(u *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return u
}

func (f *fakeRepo) addConversation(c *model.Conversation) *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[c.ID] = c
	return c
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeRepo) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == user.Phone {
			return u, nil
		}
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeRepo) UpdateUserProfile(ctx context.Context, id, fullName, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	updated := *u
	updated.FullName = fullName
	updated.Email = email
	f.users[id] = &updated
	return &updated, nil
}

func (f *fakeRepo) CreateAuthSession(ctx context.Context, s *model.AuthSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeRepo) GetActiveAuthSessionsByPrefix(ctx context.Context, prefix string) ([]*model.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AuthSession
	for _, s := range f.sessions {
		if s.TokenPrefix == prefix && s.RevokedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) RevokeAuthSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.RevokedAt != nil {
		return repository.ErrAuthSessionNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (f *fakeRepo) GetConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convErr != nil {
		return nil, f.convErr
	}
	c, ok := f.conversations[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListConversationsForUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity().After(out[j].LastActivity()) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CreateMessage(ctx context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[m.ConversationID]
	if !ok {
		return repository.ErrConversationNotFound
	}
	at := m.CreatedAt
	c.LastMessageAt = &at
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]*model.Message, string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgErr != nil {
		return nil, "", f.msgErr
	}
	if cursor != "" {
		return nil, "", repository.ErrInvalidCursor
	}
	var out []*model.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, "", nil
}

func (f *fakeRepo) LastMessages(ctx context.Context, conversationIDs []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, m := range f.messages {
		out[m.ConversationID] = m.Body
	}
	return out, nil
}

func (f *fakeRepo) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.UserStats{}
	for _, c := range f.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		stats.Conversations++
		stats.TotalFare += c.FareEstimate
	}
	for _, m := range f.messages {
		c := f.conversations[m.ConversationID]
		if c == nil || !c.HasParticipant(userID) {
			continue
		}
		if m.SenderID == userID {
			stats.MessagesSent++
		} else {
			stats.MessagesReceived++
		}
		at := m.CreatedAt
		if stats.LastActivity == nil || at.After(*stats.LastActivity) {
			stats.LastActivity = &at
		}
	}
	return stats, nil
}

// fakeSessionCache is an in-memory SessionCache.
type fakeSessionCache struct {
	mu      sync.Mutex
	entries map[string]cachedEntry
	hits    int
}

type cachedEntry struct {
	user      *model.User
	sessionID string
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{entries: make(map[string]cachedEntry)}
}

func (f *fakeSessionCache) GetSessionUser(ctx context.Context, key string) (*model.User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, "", cache.ErrCacheMiss
	}
	f.hits++
	return e.user, e.sessionID, nil
}

func (f *fakeSessionCache) SetSessionUser(ctx context.Context, key, sessionID string, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = cachedEntry{user: user, sessionID: sessionID}
	return nil
}

func (f *fakeSessionCache) DeleteSessionUser(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeSessionCache) DeleteUserSessions(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.entries {
		if e.user.ID == userID {
			delete(f.entries, key)
		}
	}
	return nil
}

// fakePublisher records published payloads.
type fakePublisher struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	err      error
}

func (f *fakePublisher) PublishChatMessage(ctx context.Context, conversationID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.payloads == nil {
		f.payloads = make(map[string][][]byte)
	}
	f.payloads[conversationID] = append(f.payloads[conversationID], payload)
	return nil
}

var errBoom = errors.New("boom")
