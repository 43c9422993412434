package domain

import "strings"

// Invitation is the record stored under both the (inviter, email) key and
// the token key.
type Invitation struct {
	Email        string   `json:"email"`
	Token        string   `json:"token"`
	GroupsToJoin []string `json:"groupsToJoin"`
	Inviter      int32    `json:"inviter"`
}

// InviterInvites lists the (escaped) emails one user has invited
type InviterInvites struct {
	UID         int32    `json:"uid"`
	Invitations []string `json:"invitations"`
}

// VerifyQuery is the registration query an invitation is checked against
type VerifyQuery struct {
	Token string `json:"token"`
}

type RegistrationType string

const (
	RegistrationNormal          RegistrationType = "normal"
	RegistrationAdminApproval   RegistrationType = "admin-approval"
	RegistrationAdminApprovalIP RegistrationType = "admin-approval-ip"
	RegistrationInviteOnly      RegistrationType = "invite-only"
	RegistrationAdminInviteOnly RegistrationType = "admin-invite-only"
	RegistrationDisabled        RegistrationType = "disabled"
)

// AdminOnly reports whether only administrators may issue invitations
func (t RegistrationType) AdminOnly() bool {
	return strings.HasPrefix(string(t), "admin-")
}
