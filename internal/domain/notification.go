package domain

import "time"

const (
	NotifyMeetingInvite     = "meeting_invite"
	NotifyChatMessage       = "chat_message"
	NotifyChatReaction      = "chat_reaction"
	NotifyRecordingStatus   = "recording_status"
	NotifyHostChange        = "host_change"
	NotifyParticipantEject  = "participant_ejected"
	NotifySystem            = "system"
)

// Notification is a fan-out record addressed to a set of users. The read
// flag lives on the per-user delivery, not here.
type Notification struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
	Recipients []UserID       `json:"-"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NotificationView is a notification joined with one user's delivery state.
type NotificationView struct {
	Notification
	Read bool `json:"read"`
}
