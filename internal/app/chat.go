package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/domain"
)

type chatThread struct {
	messages     []*domain.Message
	byID         map[string]*domain.Message
	hands        map[domain.UserID]domain.RaisedHand
	lastActivity time.Time
}

// ChatBoard owns per-meeting chat threads, reactions and raised hands.
// State mutates only in reaction to membership and chat events.
type ChatBoard struct {
	mu      sync.Mutex
	threads map[string]*chatThread
}

func NewChatBoard() *ChatBoard {
	return &ChatBoard{threads: make(map[string]*chatThread)}
}

func (b *ChatBoard) thread(meetingID string) *chatThread {
	t, ok := b.threads[meetingID]
	if !ok {
		t = &chatThread{
			byID:  make(map[string]*domain.Message),
			hands: make(map[domain.UserID]domain.RaisedHand),
		}
		b.threads[meetingID] = t
	}
	t.lastActivity = time.Now()
	return t
}

// SendMessage validates and appends a message to the meeting's thread.
func (b *ChatBoard) SendMessage(meetingID string, sender domain.Identity, text string, kind domain.MessageKind) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.Validation("message empty")
	}
	if len(text) > domain.MaxMessageLen {
		return domain.Message{}, domain.Validation("message too long")
	}
	if kind == "" {
		kind = domain.MessageText
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.thread(meetingID)
	msg := &domain.Message{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		UserID:    sender.UserID,
		Username:  sender.Username,
		Text:      text,
		Kind:      kind,
		SentAt:    time.Now(),
		Reactions: make(map[string][]domain.UserID),
	}
	t.messages = append(t.messages, msg)
	t.byID[msg.ID] = msg
	return copyMessage(msg), nil
}

// ReactionView is the broadcast shape after a reaction change.
type ReactionView struct {
	MessageID string          `json:"messageId"`
	Emoji     string          `json:"emoji"`
	Count     int             `json:"count"`
	Users     []domain.UserID `json:"users"`
}

// AddReaction records one (message, user, emoji) reaction. A duplicate is a
// conflict and leaves the count untouched.
func (b *ChatBoard) AddReaction(meetingID, messageID string, userID domain.UserID, emoji string) (ReactionView, error) {
	if !lo.Contains(domain.AllowedEmojis, emoji) {
		return ReactionView{}, domain.Validation("emoji not allowed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return ReactionView{}, domain.NotFound("chat not found")
	}
	msg, ok := t.byID[messageID]
	if !ok {
		return ReactionView{}, domain.NotFound("message not found")
	}
	if lo.Contains(msg.Reactions[emoji], userID) {
		return ReactionView{}, domain.Conflict("reaction already added")
	}
	msg.Reactions[emoji] = append(msg.Reactions[emoji], userID)
	return reactionView(msg, emoji), nil
}

// RemoveReaction deletes the (message, user, emoji) reaction if present.
func (b *ChatBoard) RemoveReaction(meetingID, messageID string, userID domain.UserID, emoji string) (ReactionView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return ReactionView{}, domain.NotFound("chat not found")
	}
	msg, ok := t.byID[messageID]
	if !ok {
		return ReactionView{}, domain.NotFound("message not found")
	}
	users := msg.Reactions[emoji]
	if !lo.Contains(users, userID) {
		return ReactionView{}, domain.NotFound("reaction not found")
	}
	users = lo.Without(users, userID)
	if len(users) == 0 {
		delete(msg.Reactions, emoji)
	} else {
		msg.Reactions[emoji] = users
	}
	return reactionView(msg, emoji), nil
}

// RaiseHand marks attention for a user. Returns changed=false when the hand
// is already up; the full list comes back either way so callers can
// broadcast consistent state.
func (b *ChatBoard) RaiseHand(meetingID string, identity domain.Identity) (bool, []domain.RaisedHand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.thread(meetingID)
	if _, up := t.hands[identity.UserID]; up {
		return false, raisedHands(t)
	}
	t.hands[identity.UserID] = domain.RaisedHand{
		UserID:   identity.UserID,
		Username: identity.Username,
		RaisedAt: time.Now(),
	}
	return true, raisedHands(t)
}

func (b *ChatBoard) LowerHand(meetingID string, identity domain.Identity) (bool, []domain.RaisedHand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return false, nil
	}
	if _, up := t.hands[identity.UserID]; !up {
		return false, raisedHands(t)
	}
	delete(t.hands, identity.UserID)
	return true, raisedHands(t)
}

func (b *ChatBoard) RaisedHands(meetingID string) []domain.RaisedHand {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return nil
	}
	return raisedHands(t)
}

// History returns up to limit messages, oldest first, optionally only those
// sent after since.
func (b *ChatBoard) History(meetingID string, limit int, since *time.Time) []domain.Message {
	if limit <= 0 {
		limit = 50
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return nil
	}
	msgs := t.messages
	if since != nil {
		msgs = lo.Filter(msgs, func(m *domain.Message, _ int) bool {
			return m.SentAt.After(*since)
		})
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return lo.Map(msgs, func(m *domain.Message, _ int) domain.Message { return copyMessage(m) })
}

func (b *ChatBoard) Stats(meetingID string) (domain.ChatStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[meetingID]
	if !ok {
		return domain.ChatStats{}, domain.NotFound("chat not found")
	}
	var st domain.ChatStats
	st.TotalMessages = len(t.messages)
	seen := make(map[string]struct{})
	for _, m := range t.messages {
		for _, users := range m.Reactions {
			st.TotalReactions += len(users)
		}
		if _, ok := seen[m.Username]; !ok {
			seen[m.Username] = struct{}{}
			st.Users = append(st.Users, m.Username)
		}
	}
	st.ActiveUsers = len(seen)
	return st, nil
}

// Close discards the thread for an ended meeting.
func (b *ChatBoard) Close(meetingID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.threads, meetingID)
}

// Cleanup drops threads idle longer than maxAge. Run from the cron sweep.
func (b *ChatBoard) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for id, t := range b.threads {
		if t.lastActivity.Before(cutoff) {
			delete(b.threads, id)
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "app.chat").Int("cleaned", n).Msg("stale chat threads removed")
	}
	return n
}

func reactionView(msg *domain.Message, emoji string) ReactionView {
	users := make([]domain.UserID, len(msg.Reactions[emoji]))
	copy(users, msg.Reactions[emoji])
	return ReactionView{MessageID: msg.ID, Emoji: emoji, Count: len(users), Users: users}
}

func raisedHands(t *chatThread) []domain.RaisedHand {
	out := lo.Values(t.hands)
	sort.Slice(out, func(i, j int) bool { return out[i].RaisedAt.Before(out[j].RaisedAt) })
	return out
}

func copyMessage(m *domain.Message) domain.Message {
	cp := *m
	cp.Reactions = make(map[string][]domain.UserID, len(m.Reactions))
	for emoji, users := range m.Reactions {
		cp.Reactions[emoji] = append([]domain.UserID(nil), users...)
	}
	return cp
}
