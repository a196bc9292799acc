package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type delivery struct {
	read bool
}

// Notifier fans notifications out to every live socket of each recipient
// (a user can hold several connections at once) and keeps per-user delivery
// state until the retention sweep collects the record.
type Notifier struct {
	mu      sync.RWMutex
	subs    map[domain.UserID]map[core.SessionID]core.SignalConnection
	records map[string]*domain.Notification
	byUser  map[domain.UserID]map[string]*delivery

	retention time.Duration
}

func NewNotifier(retention time.Duration) *Notifier {
	return &Notifier{
		subs:      make(map[domain.UserID]map[core.SessionID]core.SignalConnection),
		records:   make(map[string]*domain.Notification),
		byUser:    make(map[domain.UserID]map[string]*delivery),
		retention: retention,
	}
}

// Subscribe registers one socket of a user. Additions are commutative;
// subscribe/unsubscribe order across a user's sockets does not matter.
func (n *Notifier) Subscribe(userID domain.UserID, sid core.SessionID, conn core.SignalConnection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[userID]
	if !ok {
		set = make(map[core.SessionID]core.SignalConnection)
		n.subs[userID] = set
	}
	set[sid] = conn
}

func (n *Notifier) Unsubscribe(userID domain.UserID, sid core.SessionID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.subs[userID]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(n.subs, userID)
		}
	}
}

// Create records a notification and pushes it to every subscribed socket of
// each recipient. It always succeeds; delivery is best-effort.
func (n *Notifier) Create(typ, title, message string, data map[string]any, recipients []domain.UserID) domain.Notification {
	rec := &domain.Notification{
		ID:         uuid.NewString(),
		Type:       typ,
		Title:      title,
		Message:    message,
		Data:       data,
		Recipients: recipients,
		CreatedAt:  time.Now(),
	}

	n.mu.Lock()
	n.records[rec.ID] = rec
	for _, userID := range recipients {
		m, ok := n.byUser[userID]
		if !ok {
			m = make(map[string]*delivery)
			n.byUser[userID] = m
		}
		m[rec.ID] = &delivery{}
	}
	conns := make([]core.SignalConnection, 0)
	for _, userID := range recipients {
		for _, conn := range n.subs[userID] {
			conns = append(conns, conn)
		}
	}
	n.mu.Unlock()

	frame, err := core.EncodeEvent("notification", rec)
	if err != nil {
		log.Error().Err(err).Str("module", "app.notifier").Msg("encode notification")
		return *rec
	}
	for _, conn := range conns {
		_ = conn.TrySend(frame)
	}
	log.Debug().Str("module", "app.notifier").Str("type", typ).
		Int("recipients", len(recipients)).Msg("notification fanned out")
	return *rec
}

// MarkRead flips the calling user's own delivery record.
func (n *Notifier) MarkRead(userID domain.UserID, notificationID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.byUser[userID][notificationID]
	if !ok {
		return false
	}
	d.read = true
	return true
}

func (n *Notifier) MarkAllRead(userID domain.UserID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int
	for _, d := range n.byUser[userID] {
		if !d.read {
			d.read = true
			count++
		}
	}
	return count
}

// Delete removes the notification from the calling user's view only.
func (n *Notifier) Delete(userID domain.UserID, notificationID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.byUser[userID][notificationID]; !ok {
		return false
	}
	delete(n.byUser[userID], notificationID)
	return true
}

func (n *Notifier) UnreadCount(userID domain.UserID) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var count int
	for _, d := range n.byUser[userID] {
		if !d.read {
			count++
		}
	}
	return count
}

// List returns the user's notifications, newest first.
func (n *Notifier) List(userID domain.UserID, limit int, unreadOnly bool) []domain.NotificationView {
	if limit <= 0 {
		limit = 50
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]domain.NotificationView, 0, len(n.byUser[userID]))
	for id, d := range n.byUser[userID] {
		rec, ok := n.records[id]
		if !ok || (unreadOnly && d.read) {
			continue
		}
		out = append(out, domain.NotificationView{Notification: *rec, Read: d.read})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Sweep garbage-collects records older than the retention window,
// regardless of read state.
func (n *Notifier) Sweep() int {
	cutoff := time.Now().Add(-n.retention)
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int
	for id, rec := range n.records {
		if rec.CreatedAt.Before(cutoff) {
			for _, userID := range rec.Recipients {
				delete(n.byUser[userID], id)
			}
			delete(n.records, id)
			count++
		}
	}
	if count > 0 {
		log.Info().Str("module", "app.notifier").Int("cleaned", count).Msg("expired notifications removed")
	}
	return count
}

// NotifierStats aggregates delivery state for the admin endpoint.
type NotifierStats struct {
	TotalNotifications  int            `json:"totalNotifications"`
	TotalUnread         int            `json:"totalUnread"`
	TypeCounts          map[string]int `json:"typeCounts"`
	ActiveSubscriptions int            `json:"activeSubscriptions"`
}

func (n *Notifier) Stats() NotifierStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	st := NotifierStats{TypeCounts: make(map[string]int)}
	st.TotalNotifications = len(n.records)
	for _, rec := range n.records {
		st.TypeCounts[rec.Type]++
	}
	for _, m := range n.byUser {
		for _, d := range m {
			if !d.read {
				st.TotalUnread++
			}
		}
	}
	for _, set := range n.subs {
		st.ActiveSubscriptions += len(set)
	}
	return st
}

// Typed helpers mirroring the event catalog.

func (n *Notifier) ChatMessage(meetingID string, sender domain.Identity, text string, recipients []domain.UserID) {
	preview := text
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	n.Create(domain.NotifyChatMessage,
		fmt.Sprintf("New message from %s", sender.Username), preview,
		map[string]any{"meetingId": meetingID, "senderId": sender.UserID, "senderName": sender.Username},
		recipients)
}

func (n *Notifier) HostChange(meetingID, meetingTitle string, newHost domain.Participant, recipients []domain.UserID) {
	n.Create(domain.NotifyHostChange,
		fmt.Sprintf("New host: %s", newHost.Username),
		fmt.Sprintf("%s is now hosting %q", newHost.Username, meetingTitle),
		map[string]any{"meetingId": meetingID, "newHostId": newHost.UserID},
		recipients)
}

func (n *Notifier) Ejection(meetingID string, ejected domain.UserID, hostName string) {
	n.Create(domain.NotifyParticipantEject,
		"You were removed from the meeting",
		fmt.Sprintf("%s removed you from the meeting", hostName),
		map[string]any{"meetingId": meetingID},
		[]domain.UserID{ejected})
}

func (n *Notifier) RecordingStatus(meetingID, action string, recipients []domain.UserID) {
	n.Create(domain.NotifyRecordingStatus,
		fmt.Sprintf("Recording %s", action),
		fmt.Sprintf("The meeting recording was %s", action),
		map[string]any{"meetingId": meetingID, "recordingAction": action},
		recipients)
}

func (n *Notifier) System(title, message string, recipients []domain.UserID) {
	n.Create(domain.NotifySystem, title, message, nil, recipients)
}
