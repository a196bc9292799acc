package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

// MeetingStore persists meeting lifecycle changes. Persistence is
// best-effort: a failed write is logged, never surfaced to membership.
type MeetingStore interface {
	SaveMeeting(ctx context.Context, m domain.Meeting) error
	CloseMeeting(ctx context.Context, id string, endedAt time.Time) error
}

type sessionEntry struct {
	mu   sync.Mutex
	sess *core.Session
}

// Coordinator owns every live meeting session and is the only component
// allowed to mutate membership or host identity. All mutating operations on
// one meeting run under that meeting's mutex, including any durable write
// started inside the critical section; different meetings proceed in
// parallel.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	store MeetingStore
}

func NewCoordinator(store MeetingStore) *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*sessionEntry),
		store:    store,
	}
}

func (c *Coordinator) entry(meetingID string) (*sessionEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.sessions[meetingID]
	return e, ok
}

// Create opens a meeting with the creator as host and first participant.
// A fresh id is assigned when none is supplied; a caller-supplied id that
// names a live meeting is a conflict, never a replacement.
func (c *Coordinator) Create(ctx context.Context, identity domain.Identity, title, meetingID string) (core.MeetingSnapshot, error) {
	if meetingID == "" {
		meetingID = fmt.Sprintf("meeting_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	if title == "" {
		title = "Instant meeting"
	}
	now := time.Now()
	meta := &domain.Meeting{
		ID:        meetingID,
		Title:     title,
		HostID:    identity.UserID,
		Status:    domain.MeetingActive,
		CreatedAt: now,
	}
	sess := core.NewSession(meta)
	sess.AddParticipant(identity, domain.RoleHost, now)

	e := &sessionEntry{sess: sess}
	e.mu.Lock()
	c.mu.Lock()
	if _, exists := c.sessions[meetingID]; exists {
		c.mu.Unlock()
		return core.MeetingSnapshot{}, domain.Conflict("meeting id already in use")
	}
	c.sessions[meetingID] = e
	c.mu.Unlock()

	c.persist(ctx, *meta)
	snap := sess.Snapshot()
	e.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
		Str("host", string(identity.UserID)).Msg("meeting created")
	return snap, nil
}

// JoinResult reports an admission or a deferral to the waiting area.
type JoinResult struct {
	Pending     bool
	Position    int
	Participant domain.Participant
	Snapshot    core.MeetingSnapshot
}

// Join admits an identity into an active meeting, or enqueues it when the
// meeting is locked. handle is the connection the admission answer belongs
// to; it becomes the waiting-entry key the host approves by.
func (c *Coordinator) Join(ctx context.Context, meetingID string, identity domain.Identity, handle core.SessionID) (JoinResult, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return JoinResult{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.Status != domain.MeetingActive {
		return JoinResult{}, domain.NotFound("meeting not found")
	}
	if e.sess.Meta.Locked {
		if _, already := e.sess.Participant(identity.UserID); !already {
			pos := e.sess.Enqueue(domain.WaitingEntry{
				Handle:      string(handle),
				Identity:    identity,
				RequestedAt: time.Now(),
			})
			log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
				Str("user", string(identity.UserID)).Int("position", pos).Msg("join deferred to waiting area")
			return JoinResult{Pending: true, Position: pos}, nil
		}
	}

	p := e.sess.AddParticipant(identity, domain.RoleParticipant, time.Now())
	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
		Str("user", string(identity.UserID)).Int("count", e.sess.ParticipantCount()).Msg("participant joined")
	return JoinResult{Participant: *p, Snapshot: e.sess.Snapshot()}, nil
}

// LeaveResult reports the membership after a departure.
type LeaveResult struct {
	ParticipantCount int
	Closed           bool
	NewHost          *domain.Participant
}

// Leave removes a participant. A departing host hands off to the earliest
// joined remaining participant; the last departure ends the meeting.
func (c *Coordinator) Leave(ctx context.Context, meetingID string, userID domain.UserID) (LeaveResult, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return LeaveResult{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.Status != domain.MeetingActive {
		return LeaveResult{}, domain.AlreadyClosed("meeting already ended")
	}
	removed, ok := e.sess.RemoveParticipant(userID)
	if !ok {
		return LeaveResult{}, domain.NotFound("participant not found")
	}

	res := LeaveResult{ParticipantCount: e.sess.ParticipantCount()}
	if e.sess.ParticipantCount() == 0 {
		c.end(ctx, meetingID, e)
		res.Closed = true
		return res, nil
	}
	if removed.Role == domain.RoleHost {
		next := e.sess.NextHost()
		if _, err := e.sess.PromoteHost(next.UserID); err == nil {
			hostCopy := *next
			res.NewHost = &hostCopy
			log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
				Str("host", string(next.UserID)).Msg("host reassigned")
		}
	}
	return res, nil
}

// end marks the session terminal and drops it; caller holds the entry lock.
func (c *Coordinator) end(ctx context.Context, meetingID string, e *sessionEntry) {
	now := time.Now()
	e.sess.Meta.Status = domain.MeetingEnded
	e.sess.Meta.EndedAt = &now

	c.mu.Lock()
	delete(c.sessions, meetingID)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.CloseMeeting(ctx, meetingID, now); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("meeting", meetingID).Msg("close meeting persist failed")
		}
	}
	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).Msg("meeting ended")
}

// PromoteResult describes a completed host swap.
type PromoteResult struct {
	PreviousHostID  domain.UserID
	NewHostID       domain.UserID
	NewHostUsername string
}

// Promote swaps host privileges to target. Host-only.
func (c *Coordinator) Promote(meetingID string, requester, target domain.UserID) (PromoteResult, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return PromoteResult{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.HostID != requester {
		return PromoteResult{}, domain.Forbidden("only the host can promote")
	}
	prev := e.sess.Meta.HostID
	p, err := e.sess.PromoteHost(target)
	if err != nil {
		return PromoteResult{}, err
	}
	return PromoteResult{PreviousHostID: prev, NewHostID: p.UserID, NewHostUsername: p.Username}, nil
}

// EjectResult carries what the transport needs to force-disconnect the
// target from the room.
type EjectResult struct {
	Ejected          domain.Participant
	ParticipantCount int
	Closed           bool
}

// Eject involuntarily removes target. Host-only; host reassignment follows
// the same rule as a voluntary leave.
func (c *Coordinator) Eject(ctx context.Context, meetingID string, requester, target domain.UserID) (EjectResult, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return EjectResult{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.HostID != requester {
		return EjectResult{}, domain.Forbidden("only the host can eject")
	}
	removed, ok := e.sess.RemoveParticipant(target)
	if !ok {
		return EjectResult{}, domain.NotFound("participant not found")
	}

	res := EjectResult{Ejected: *removed, ParticipantCount: e.sess.ParticipantCount()}
	if e.sess.ParticipantCount() == 0 {
		c.end(ctx, meetingID, e)
		res.Closed = true
		return res, nil
	}
	if removed.Role == domain.RoleHost {
		next := e.sess.NextHost()
		_, _ = e.sess.PromoteHost(next.UserID)
	}
	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
		Str("user", string(target)).Str("by", string(requester)).Msg("participant ejected")
	return res, nil
}

// SetLocked toggles the waiting-room gate. Unlocking does not auto-admit:
// each waiting entry still needs an explicit approval.
func (c *Coordinator) SetLocked(meetingID string, requester domain.UserID, locked bool) error {
	e, ok := c.entry(meetingID)
	if !ok {
		return domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.HostID != requester {
		return domain.Forbidden("only the host can lock the meeting")
	}
	e.sess.Meta.Locked = locked
	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).Bool("locked", locked).Msg("lock state changed")
	return nil
}

// ApproveResult is an admission performed on behalf of a waiting entry.
type ApproveResult struct {
	Entry       domain.WaitingEntry
	Participant domain.Participant
	Snapshot    core.MeetingSnapshot
}

// ApproveWaiting dequeues one pending entry by connection handle and admits
// it as if it had joined an unlocked meeting. Host-only.
func (c *Coordinator) ApproveWaiting(meetingID string, requester domain.UserID, handle core.SessionID) (ApproveResult, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return ApproveResult{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Meta.HostID != requester {
		return ApproveResult{}, domain.Forbidden("only the host can approve waiting participants")
	}
	entry, ok := e.sess.Dequeue(string(handle))
	if !ok {
		return ApproveResult{}, domain.NotFound("waiting entry not found")
	}
	p := e.sess.AddParticipant(entry.Identity, domain.RoleParticipant, time.Now())
	log.Info().Str("module", "app.coordinator").Str("meeting", meetingID).
		Str("user", string(entry.Identity.UserID)).Msg("waiting participant admitted")
	return ApproveResult{Entry: entry, Participant: *p, Snapshot: e.sess.Snapshot()}, nil
}

// DropWaiting removes every waiting entry keyed by the connection handle
// across live sessions, so a disconnected client can never be approved as a
// ghost participant. Returns the affected meeting ids.
func (c *Coordinator) DropWaiting(handle core.SessionID) []string {
	c.mu.RLock()
	entries := make(map[string]*sessionEntry, len(c.sessions))
	for id, e := range c.sessions {
		entries[id] = e
	}
	c.mu.RUnlock()

	var out []string
	for id, e := range entries {
		e.mu.Lock()
		if _, ok := e.sess.Dequeue(string(handle)); ok {
			out = append(out, id)
			log.Info().Str("module", "app.coordinator").Str("meeting", id).
				Str("handle", string(handle)).Msg("waiting entry abandoned")
		}
		e.mu.Unlock()
	}
	return out
}

// SetMediaState updates a participant's own mute/camera flags.
func (c *Coordinator) SetMediaState(meetingID string, userID domain.UserID, muted, videoEnabled bool) (domain.Participant, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return domain.Participant{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.sess.Participant(userID)
	if !ok {
		return domain.Participant{}, domain.NotFound("participant not found")
	}
	p.IsMuted = muted
	p.IsVideoEnabled = videoEnabled
	return *p, nil
}

// Get returns a point-in-time view of a meeting.
func (c *Coordinator) Get(meetingID string) (core.MeetingSnapshot, error) {
	e, ok := c.entry(meetingID)
	if !ok {
		return core.MeetingSnapshot{}, domain.NotFound("meeting not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Snapshot(), nil
}

// Participants lists the membership in join order.
func (c *Coordinator) Participants(meetingID string) ([]domain.Participant, error) {
	snap, err := c.Get(meetingID)
	if err != nil {
		return nil, err
	}
	return snap.Participants, nil
}

// IsMember reports whether userID currently belongs to the meeting.
func (c *Coordinator) IsMember(meetingID string, userID domain.UserID) bool {
	e, ok := c.entry(meetingID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok = e.sess.Participant(userID)
	return ok
}

// Stats aggregates over all live sessions.
type Stats struct {
	ActiveMeetings    int `json:"activeMeetings"`
	TotalParticipants int `json:"totalParticipants"`
}

func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	var st Stats
	st.ActiveMeetings = len(entries)
	for _, e := range entries {
		e.mu.Lock()
		st.TotalParticipants += e.sess.ParticipantCount()
		e.mu.Unlock()
	}
	return st
}

// List returns snapshots of every active meeting.
func (c *Coordinator) List() []core.MeetingSnapshot {
	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]core.MeetingSnapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.sess.Snapshot())
		e.mu.Unlock()
	}
	return out
}

func (c *Coordinator) persist(ctx context.Context, m domain.Meeting) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveMeeting(ctx, m); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("meeting", m.ID).Msg("meeting persist failed")
	}
}
