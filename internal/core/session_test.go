package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/domain"
)

func newTestSession(host domain.Identity) *Session {
	meta := &domain.Meeting{
		ID:        "m1",
		Title:     "Standup",
		HostID:    host.UserID,
		Status:    domain.MeetingActive,
		CreatedAt: time.Now(),
	}
	s := NewSession(meta)
	s.AddParticipant(host, domain.RoleHost, time.Now())
	return s
}

func identity(t *testing.T, id, name string) domain.Identity {
	t.Helper()
	ident, err := domain.NewIdentity(domain.UserID(id), name, "")
	require.NoError(t, err)
	return ident
}

func TestAddParticipantIdempotent(t *testing.T) {
	a := identity(t, "a", "alice")
	s := newTestSession(a)

	first, ok := s.Participant(a.UserID)
	require.True(t, ok)

	again := s.AddParticipant(a, domain.RoleParticipant, time.Now().Add(time.Hour))
	assert.Same(t, first, again)
	assert.Equal(t, 1, s.ParticipantCount())
	assert.Equal(t, domain.RoleHost, again.Role)
}

func TestRemoveParticipant(t *testing.T) {
	a := identity(t, "a", "alice")
	b := identity(t, "b", "bob")
	s := newTestSession(a)
	s.AddParticipant(b, domain.RoleParticipant, time.Now())

	removed, ok := s.RemoveParticipant(b.UserID)
	require.True(t, ok)
	assert.Equal(t, b.UserID, removed.UserID)
	assert.Equal(t, 1, s.ParticipantCount())

	_, ok = s.RemoveParticipant(b.UserID)
	assert.False(t, ok)
}

func TestNextHostEarliestJoined(t *testing.T) {
	a := identity(t, "a", "alice")
	b := identity(t, "b", "bob")
	c := identity(t, "c", "carol")
	s := newTestSession(a)

	base := time.Now()
	s.AddParticipant(c, domain.RoleParticipant, base.Add(2*time.Minute))
	s.AddParticipant(b, domain.RoleParticipant, base.Add(time.Minute))

	s.RemoveParticipant(a.UserID)
	next := s.NextHost()
	require.NotNil(t, next)
	assert.Equal(t, b.UserID, next.UserID)
}

func TestPromoteHostSwapsRoles(t *testing.T) {
	a := identity(t, "a", "alice")
	b := identity(t, "b", "bob")
	s := newTestSession(a)
	s.AddParticipant(b, domain.RoleParticipant, time.Now())

	p, err := s.PromoteHost(b.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, p.Role)
	assert.Equal(t, b.UserID, s.Meta.HostID)

	prev, _ := s.Participant(a.UserID)
	assert.Equal(t, domain.RoleParticipant, prev.Role)

	_, err = s.PromoteHost("ghost")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestWaitingQueueOrder(t *testing.T) {
	a := identity(t, "a", "alice")
	s := newTestSession(a)

	pos := s.Enqueue(domain.WaitingEntry{Handle: "h1", Identity: identity(t, "x", "xena")})
	assert.Equal(t, 1, pos)
	pos = s.Enqueue(domain.WaitingEntry{Handle: "h2", Identity: identity(t, "y", "yuri")})
	assert.Equal(t, 2, pos)

	e, ok := s.Dequeue("h1")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("x"), e.Identity.UserID)
	assert.Len(t, s.Waiting(), 1)

	_, ok = s.Dequeue("h1")
	assert.False(t, ok)
}

func TestSnapshotIsDetached(t *testing.T) {
	a := identity(t, "a", "alice")
	s := newTestSession(a)

	snap := s.Snapshot()
	require.Len(t, snap.Participants, 1)
	snap.Participants[0].Username = "mallory"

	p, _ := s.Participant(a.UserID)
	assert.Equal(t, "alice", p.Username)
}
