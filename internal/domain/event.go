package domain

import "time"

const (
	EventUserInvite = "user.invite"
)

// Event is a lifecycle notification handed to observers after the fact.
// Payload keys depend on Name.
type Event struct {
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewInviteEvent builds the user.invite event
func NewInviteEvent(uid int32, email string, groupsToJoin []string, at time.Time) Event {
	return Event{
		Name: EventUserInvite,
		Payload: map[string]any{
			"uid":          uid,
			"email":        email,
			"groupsToJoin": groupsToJoin,
		},
		OccurredAt: at,
	}
}
