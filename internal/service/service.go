package service

import (
	"context"

	"forum-invitations/internal/domain"
)

type InvitationService interface {
	// Queries
	ListInvitedEmails(ctx context.Context, uid int32) ([]string, error)
	CountInvites(ctx context.Context, uid int32) (int, error)
	ListInvitingUsers(ctx context.Context) ([]int32, error)
	ListAllInvites(ctx context.Context) ([]domain.InviterInvites, error)

	// Issuance and registration
	CreateAndSendInvitation(ctx context.Context, uid int32, email string, groupsToJoin []string) error
	VerifyInvitation(ctx context.Context, query domain.VerifyQuery) error
	ConfirmEmailIfInvited(ctx context.Context, token, enteredEmail string, uid int32) error
	ApplyInvitedGroups(ctx context.Context, uid int32, token string) error
	CompleteRegistration(ctx context.Context, uid int32, token, email string) error

	// Cleanup
	DeleteInvitation(ctx context.Context, inviterUsername, email string) error
	DeleteInvitationByKey(ctx context.Context, registrationEmail, token string) error
	SweepStaleInvitations(ctx context.Context) (int, error)
}

type EmailService interface {
	SendToEmail(ctx context.Context, template, email, language string, payload map[string]any) error
}

// Translator resolves a "namespace:key" message for a language, substituting
// positional arguments. Unknown keys come back unchanged.
type Translator interface {
	Translate(key, language string, args ...string) string
}

// EventPublisher hands events to observers asynchronously. Publish never
// blocks and never reports observer failures.
type EventPublisher interface {
	Publish(event domain.Event)
}
