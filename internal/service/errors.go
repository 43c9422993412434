package service

import "errors"

var (
	ErrInvalidInviter      = errors.New("inviter does not exist")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrDuplicateInvitation = errors.New("email has already been invited")
	ErrAdminOnly           = errors.New("registration requires an administrator invitation")
	ErrInviteOnly          = errors.New("registration requires an invitation")
	ErrInvalidInvitation   = errors.New("invalid or expired invitation")
)

// errorKeys are the translation keys clients render for each error
var errorKeys = []struct {
	err error
	key string
}{
	{ErrInvalidInviter, "[[error:invalid-uid]]"},
	{ErrInvalidUsername, "[[error:invalid-username]]"},
	{ErrDuplicateInvitation, "[[error:email-invited]]"},
	{ErrAdminOnly, "[[register:invite.error-admin-only]]"},
	{ErrInviteOnly, "[[register:invite.error-invite-only]]"},
	{ErrInvalidInvitation, "[[register:invite.error-invalid-data]]"},
}

// ErrorKey returns the translation key for err, or "" when err is not one of
// the invitation errors
func ErrorKey(err error) string {
	for _, e := range errorKeys {
		if errors.Is(err, e.err) {
			return e.key
		}
	}
	return ""
}
