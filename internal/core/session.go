package core

import (
	"time"

	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/domain"
)

// Session is the authoritative state of one meeting: meta, ordered
// membership and the waiting queue. It carries no lock of its own; the
// coordinator serializes every mutation of a given session.
type Session struct {
	Meta *domain.Meeting

	participants []*domain.Participant
	index        map[domain.UserID]*domain.Participant
	waiting      []domain.WaitingEntry
}

func NewSession(meta *domain.Meeting) *Session {
	return &Session{
		Meta:  meta,
		index: make(map[domain.UserID]*domain.Participant),
	}
}

func (s *Session) ParticipantCount() int { return len(s.participants) }

func (s *Session) Participant(id domain.UserID) (*domain.Participant, bool) {
	p, ok := s.index[id]
	return p, ok
}

// AddParticipant admits an identity. Joining twice is idempotent: the
// existing record is returned untouched so a second tab cannot double-count
// membership.
func (s *Session) AddParticipant(identity domain.Identity, role string, now time.Time) *domain.Participant {
	if p, ok := s.index[identity.UserID]; ok {
		return p
	}
	p := &domain.Participant{
		UserID:         identity.UserID,
		Username:       identity.Username,
		Role:           role,
		JoinedAt:       now,
		IsVideoEnabled: true,
	}
	s.participants = append(s.participants, p)
	s.index[identity.UserID] = p
	return p
}

// RemoveParticipant drops a member and reports whether it was present.
func (s *Session) RemoveParticipant(id domain.UserID) (*domain.Participant, bool) {
	p, ok := s.index[id]
	if !ok {
		return nil, false
	}
	delete(s.index, id)
	s.participants = lo.Filter(s.participants, func(m *domain.Participant, _ int) bool {
		return m.UserID != id
	})
	return p, true
}

// NextHost picks the deterministic successor: the earliest-joined remaining
// participant, insertion order breaking ties.
func (s *Session) NextHost() *domain.Participant {
	var next *domain.Participant
	for _, p := range s.participants {
		if next == nil || p.JoinedAt.Before(next.JoinedAt) {
			next = p
		}
	}
	return next
}

// PromoteHost atomically swaps the host role onto target.
func (s *Session) PromoteHost(target domain.UserID) (*domain.Participant, error) {
	p, ok := s.index[target]
	if !ok {
		return nil, domain.NotFound("participant not found")
	}
	if prev, ok := s.index[s.Meta.HostID]; ok {
		prev.Role = domain.RoleParticipant
	}
	p.Role = domain.RoleHost
	s.Meta.HostID = target
	return p, nil
}

func (s *Session) Enqueue(e domain.WaitingEntry) int {
	s.waiting = append(s.waiting, e)
	return len(s.waiting)
}

// Dequeue removes the pending entry with the given connection handle.
func (s *Session) Dequeue(handle string) (domain.WaitingEntry, bool) {
	for i, e := range s.waiting {
		if e.Handle == handle {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return e, true
		}
	}
	return domain.WaitingEntry{}, false
}

func (s *Session) Waiting() []domain.WaitingEntry {
	out := make([]domain.WaitingEntry, len(s.waiting))
	copy(out, s.waiting)
	return out
}

// MeetingSnapshot is a read-only view safe to hand to adapters.
type MeetingSnapshot struct {
	Meeting          domain.Meeting       `json:"meeting"`
	Participants     []domain.Participant `json:"participants"`
	ParticipantCount int                  `json:"participantCount"`
	WaitingCount     int                  `json:"waitingCount"`
}

func (s *Session) Snapshot() MeetingSnapshot {
	return MeetingSnapshot{
		Meeting: *s.Meta,
		Participants: lo.Map(s.participants, func(p *domain.Participant, _ int) domain.Participant {
			return *p
		}),
		ParticipantCount: len(s.participants),
		WaitingCount:     len(s.waiting),
	}
}
