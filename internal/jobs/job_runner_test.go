package jobs

import (
	"context"
	"errors"
	"testing"

	"forum-invitations/internal/config"
	"forum-invitations/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) ListInvitedEmails(ctx context.Context, uid int32) ([]string, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockInvitationService) CountInvites(ctx context.Context, uid int32) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}
func (m *MockInvitationService) ListInvitingUsers(ctx context.Context) ([]int32, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int32), args.Error(1)
}
func (m *MockInvitationService) ListAllInvites(ctx context.Context) ([]domain.InviterInvites, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.InviterInvites), args.Error(1)
}
func (m *MockInvitationService) CreateAndSendInvitation(ctx context.Context, uid int32, email string, groupsToJoin []string) error {
	return m.Called(ctx, uid, email, groupsToJoin).Error(0)
}
func (m *MockInvitationService) VerifyInvitation(ctx context.Context, query domain.VerifyQuery) error {
	return m.Called(ctx, query).Error(0)
}
func (m *MockInvitationService) ConfirmEmailIfInvited(ctx context.Context, token, enteredEmail string, uid int32) error {
	return m.Called(ctx, token, enteredEmail, uid).Error(0)
}
func (m *MockInvitationService) ApplyInvitedGroups(ctx context.Context, uid int32, token string) error {
	return m.Called(ctx, uid, token).Error(0)
}
func (m *MockInvitationService) CompleteRegistration(ctx context.Context, uid int32, token, email string) error {
	return m.Called(ctx, uid, token, email).Error(0)
}
func (m *MockInvitationService) DeleteInvitation(ctx context.Context, inviterUsername, email string) error {
	return m.Called(ctx, inviterUsername, email).Error(0)
}
func (m *MockInvitationService) DeleteInvitationByKey(ctx context.Context, registrationEmail, token string) error {
	return m.Called(ctx, registrationEmail, token).Error(0)
}
func (m *MockInvitationService) SweepStaleInvitations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type fakePurger struct {
	calls int
	n     int64
	err   error
	panic bool
}

func (p *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls++
	if p.panic {
		panic("purge exploded")
	}
	return p.n, p.err
}

func TestJobRunner_SweepStaleInvitations(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockInvitationService)
		svc.On("SweepStaleInvitations", mock.Anything).Return(3, nil)

		jr := NewJobRunner(svc, nil, &config.Config{})
		require.NoError(t, jr.SweepStaleInvitations())
		svc.AssertExpectations(t)
	})

	t.Run("Store failure", func(t *testing.T) {
		svc := new(MockInvitationService)
		svc.On("SweepStaleInvitations", mock.Anything).Return(0, errors.New("connection reset"))

		jr := NewJobRunner(svc, nil, &config.Config{})
		err := jr.SweepStaleInvitations()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestJobRunner_PurgeExpiredKeys(t *testing.T) {
	t.Run("Purges", func(t *testing.T) {
		purger := &fakePurger{n: 5}
		jr := NewJobRunner(new(MockInvitationService), purger, &config.Config{})

		require.NoError(t, jr.PurgeExpiredKeys())
		assert.Equal(t, 1, purger.calls)
	})

	t.Run("No purger", func(t *testing.T) {
		jr := NewJobRunner(new(MockInvitationService), nil, &config.Config{})
		assert.NoError(t, jr.PurgeExpiredKeys())
	})

	t.Run("Panic is recovered", func(t *testing.T) {
		purger := &fakePurger{panic: true}
		jr := NewJobRunner(new(MockInvitationService), purger, &config.Config{})

		var err error
		assert.NotPanics(t, func() { err = jr.PurgeExpiredKeys() })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "purge exploded")
	})
}

func TestJobRunner_RunOnce(t *testing.T) {
	svc := new(MockInvitationService)
	svc.On("SweepStaleInvitations", mock.Anything).Return(0, nil)
	purger := &fakePurger{}
	jr := NewJobRunner(svc, purger, &config.Config{})

	require.NoError(t, jr.RunOnce("all"))
	svc.AssertNumberOfCalls(t, "SweepStaleInvitations", 1)
	assert.Equal(t, 1, purger.calls)

	require.NoError(t, jr.RunOnce(JobPurgeExpiredKeys))
	assert.Equal(t, 2, purger.calls)

	assert.Error(t, jr.RunOnce("mark-overdue"))
}

func TestJobRunner_RunAllReportsFirstFailure(t *testing.T) {
	svc := new(MockInvitationService)
	svc.On("SweepStaleInvitations", mock.Anything).Return(0, errors.New("sweep failed"))
	purger := &fakePurger{err: errors.New("purge failed")}
	jr := NewJobRunner(svc, purger, &config.Config{})

	err := jr.RunAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep failed")
	assert.Equal(t, 1, purger.calls)
}
