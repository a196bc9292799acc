package domain

import "time"

type MeetingStatus string

const (
	MeetingActive MeetingStatus = "active"
	MeetingEnded  MeetingStatus = "ended"
)

const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Meeting is the meta-data of one active meeting. Membership lives in the
// session coordinator, which is the only writer of this record.
type Meeting struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	HostID    UserID        `json:"hostId"`
	Status    MeetingStatus `json:"status"`
	Locked    bool          `json:"locked"`
	CreatedAt time.Time     `json:"createdAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
}

// Participant is a membership record owned by exactly one meeting session.
type Participant struct {
	UserID         UserID    `json:"userId"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joinedAt"`
	IsMuted        bool      `json:"isMuted"`
	IsVideoEnabled bool      `json:"isVideoEnabled"`
}

// WaitingEntry is a pending join request held while the meeting is locked.
// Handle is the connection id the admission answer must be delivered to.
type WaitingEntry struct {
	Handle      string    `json:"socketId"`
	Identity    Identity  `json:"identity"`
	RequestedAt time.Time `json:"requestedAt"`
}
