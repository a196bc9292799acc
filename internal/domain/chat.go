package domain

import "time"

const MaxMessageLen = 1000

// AllowedEmojis is the reaction allow-list; anything else is rejected.
var AllowedEmojis = []string{"👍", "👏", "❤️", "😂", "😮", "😢", "😡", "🎉", "👎"}

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// Message belongs to one meeting's chat thread. Reactions map an emoji to
// the users that reacted with it; a user appears at most once per emoji.
type Message struct {
	ID        string              `json:"id"`
	MeetingID string              `json:"meetingId"`
	UserID    UserID              `json:"userId"`
	Username  string              `json:"username"`
	Text      string              `json:"message"`
	Kind      MessageKind         `json:"type"`
	SentAt    time.Time           `json:"timestamp"`
	Reactions map[string][]UserID `json:"reactions"`
}

// RaisedHand marks a participant signaling attention. Raised and lowered
// only by explicit events, never expired.
type RaisedHand struct {
	UserID   UserID    `json:"userId"`
	Username string    `json:"username"`
	RaisedAt time.Time `json:"timestamp"`
}

type ChatStats struct {
	TotalMessages  int      `json:"totalMessages"`
	TotalReactions int      `json:"totalReactions"`
	ActiveUsers    int      `json:"activeUsers"`
	Users          []string `json:"users"`
}
