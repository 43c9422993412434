package service

import (
	"context"
	"sync"
	"time"

	"forum-invitations/internal/domain"
	"forum-invitations/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockUserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Exists(ctx context.Context, uid int32) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}
func (m *MockUserRepo) GetUIDByUsername(ctx context.Context, username string) (int32, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockUserRepo) GetUIDByEmail(ctx context.Context, email string) (int32, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockUserRepo) GetUserField(ctx context.Context, uid int32, field string) (string, error) {
	args := m.Called(ctx, uid, field)
	return args.String(0), args.Error(1)
}
func (m *MockUserRepo) ConfirmEmail(ctx context.Context, uid int32) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

// MockGroupRepo
type MockGroupRepo struct {
	mock.Mock
}

func (m *MockGroupRepo) Join(ctx context.Context, groupNames []string, uid int32) error {
	args := m.Called(ctx, groupNames, uid)
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendToEmail(ctx context.Context, template, email, language string, payload map[string]any) error {
	args := m.Called(ctx, template, email, language, payload)
	return args.Error(0)
}

// MockTranslator
type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(key, language string, args ...string) string {
	called := m.Called(key, language, args)
	return called.String(0)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

// writeCountingStore counts mutating calls made through it
type writeCountingStore struct {
	repository.KVStore
	mu     sync.Mutex
	writes int
}

func (s *writeCountingStore) count() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *writeCountingStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *writeCountingStore) Set(ctx context.Context, key, value string) error {
	s.count()
	return s.KVStore.Set(ctx, key, value)
}
func (s *writeCountingStore) Delete(ctx context.Context, key string) error {
	s.count()
	return s.KVStore.Delete(ctx, key)
}
func (s *writeCountingStore) DeleteAll(ctx context.Context, keys []string) error {
	s.count()
	return s.KVStore.DeleteAll(ctx, keys)
}
func (s *writeCountingStore) PExpireAt(ctx context.Context, key string, at time.Time) error {
	s.count()
	return s.KVStore.PExpireAt(ctx, key, at)
}
func (s *writeCountingStore) SetAdd(ctx context.Context, key, member string) error {
	s.count()
	return s.KVStore.SetAdd(ctx, key, member)
}
func (s *writeCountingStore) SetRemove(ctx context.Context, key, member string) error {
	s.count()
	return s.KVStore.SetRemove(ctx, key, member)
}
func (s *writeCountingStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	s.count()
	return s.KVStore.SetObject(ctx, key, fields)
}

// testClock is a settable clock shared by the store and the service
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
