package httpapi

import (
	"context"

	"forum-invitations/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockInvitationService
type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) ListInvitedEmails(ctx context.Context, uid int32) ([]string, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InviterInvites), args.Error(1)
}
func (m *MockInvitationService) CreateAndSendInvitation(ctx context.Context, uid int32, email string, groupsToJoin []string) error {
	args := m.Called(ctx, uid, email, groupsToJoin)
	return args.Error(0)
}
func (m *MockInvitationService) VerifyInvitation(ctx context.Context, query domain.VerifyQuery) error {
	args := m.Called(ctx, query)
	return args.Error(0)
}
func (m *MockInvitationService) ConfirmEmailIfInvited(ctx context.Context, token, enteredEmail string, uid int32) error {
	args := m.Called(ctx, token, enteredEmail, uid)
	return args.Error(0)
}
func (m *MockInvitationService) ApplyInvitedGroups(ctx context.Context, uid int32, token string) error {
	args := m.Called(ctx, uid, token)
	return args.Error(0)
}
func (m *MockInvitationService) CompleteRegistration(ctx context.Context, uid int32, token, email string) error {
	args := m.Called(ctx, uid, token, email)
	return args.Error(0)
}
func (m *MockInvitationService) DeleteInvitation(ctx context.Context, inviterUsername, email string) error {
	args := m.Called(ctx, inviterUsername, email)
	return args.Error(0)
}
func (m *MockInvitationService) DeleteInvitationByKey(ctx context.Context, registrationEmail, token string) error {
	args := m.Called(ctx, registrationEmail, token)
	return args.Error(0)
}
func (m *MockInvitationService) SweepStaleInvitations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
