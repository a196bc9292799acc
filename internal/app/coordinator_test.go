package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type memMeetingStore struct {
	mu     sync.Mutex
	saved  []domain.Meeting
	closed []string
}

func (s *memMeetingStore) SaveMeeting(_ context.Context, m domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, m)
	return nil
}

func (s *memMeetingStore) CloseMeeting(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, id)
	return nil
}

func ident(t *testing.T, id, name string) domain.Identity {
	t.Helper()
	i, err := domain.NewIdentity(domain.UserID(id), name, "")
	require.NoError(t, err)
	return i
}

func mustCreate(t *testing.T, c *Coordinator, identity domain.Identity, title, id string) core.MeetingSnapshot {
	t.Helper()
	snap, err := c.Create(context.Background(), identity, title, id)
	require.NoError(t, err)
	return snap
}

func TestCreateAssignsCreatorAsHost(t *testing.T) {
	store := &memMeetingStore{}
	c := NewCoordinator(store)

	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	assert.NotEmpty(t, snap.Meeting.ID)
	assert.Equal(t, "Instant meeting", snap.Meeting.Title)
	assert.Equal(t, domain.UserID("a"), snap.Meeting.HostID)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, domain.RoleHost, snap.Participants[0].Role)
	assert.Len(t, store.saved, 1)
}

func TestCreateDuplicateIDConflict(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "Standup", "meeting-1")
	_, err := c.Join(context.Background(), snap.Meeting.ID, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)

	_, err = c.Create(context.Background(), ident(t, "x", "mallory"), "Takeover", "meeting-1")
	assert.True(t, domain.IsCode(err, domain.CodeConflict))

	// The live session is untouched: bob is still a member, alice still host.
	got, err := c.Get("meeting-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)
	assert.Equal(t, domain.UserID("a"), got.Meeting.HostID)

	res, err := c.Leave(context.Background(), "meeting-1", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParticipantCount)
}

func TestJoinLeaveCountsBalance(t *testing.T) {
	c := NewCoordinator(nil)
	host := ident(t, "a", "alice")
	snap := mustCreate(t, c, host, "Standup", "")
	id := snap.Meeting.ID

	for _, u := range []string{"b", "c", "d"} {
		_, err := c.Join(context.Background(), id, ident(t, u, u), core.SessionID("sid-"+u))
		require.NoError(t, err)
	}
	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ParticipantCount)

	res, err := c.Leave(context.Background(), id, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ParticipantCount)
	assert.False(t, res.Closed)

	got, err = c.Get(id)
	require.NoError(t, err)
	assert.Contains(t, participantIDs(got.Participants), got.Meeting.HostID)
}

func TestHostHandoffOnLeave(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID
	_, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)

	res, err := c.Leave(context.Background(), id, "a")
	require.NoError(t, err)
	require.NotNil(t, res.NewHost)
	assert.Equal(t, domain.UserID("b"), res.NewHost.UserID)

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("b"), got.Meeting.HostID)
}

func TestLastLeaveEndsMeeting(t *testing.T) {
	store := &memMeetingStore{}
	c := NewCoordinator(store)
	snap := mustCreate(t, c, ident(t, "c", "carol"), "", "")
	id := snap.Meeting.ID

	res, err := c.Leave(context.Background(), id, "c")
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, []string{id}, store.closed)

	_, err = c.Join(context.Background(), id, ident(t, "d", "dave"), "sid-d")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestPromoteScenario(t *testing.T) {
	// create by A, join B, promote B, A leaves: meeting stays open, host B.
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "A", "alice"), "Standup", "")
	id := snap.Meeting.ID
	_, err := c.Join(context.Background(), id, ident(t, "B", "bob"), "sid-B")
	require.NoError(t, err)

	res, err := c.Promote(id, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("A"), res.PreviousHostID)
	assert.Equal(t, domain.UserID("B"), res.NewHostID)

	leave, err := c.Leave(context.Background(), id, "A")
	require.NoError(t, err)
	assert.False(t, leave.Closed)
	assert.Nil(t, leave.NewHost)

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("B"), got.Meeting.HostID)
	assert.Equal(t, 1, got.ParticipantCount)
}

func TestPromoteRequiresHost(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID
	_, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)

	_, err = c.Promote(id, "b", "b")
	assert.True(t, domain.IsCode(err, domain.CodeForbidden))

	_, err = c.Promote(id, "a", "ghost")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestEjectAuthorization(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID
	_, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)

	_, err = c.Eject(context.Background(), id, "b", "a")
	assert.True(t, domain.IsCode(err, domain.CodeForbidden))

	_, err = c.Eject(context.Background(), id, "a", "ghost")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)

	res, err := c.Eject(context.Background(), id, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("b"), res.Ejected.UserID)
	assert.Equal(t, 1, res.ParticipantCount)
}

func TestLockedJoinGoesToWaiting(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID

	require.NoError(t, c.SetLocked(id, "a", true))

	res, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, 1, res.Position)

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	assert.Equal(t, 1, got.WaitingCount)

	appr, err := c.ApproveWaiting(id, "a", "sid-b")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("b"), appr.Participant.UserID)
	assert.Equal(t, 2, appr.Snapshot.ParticipantCount)
	assert.Equal(t, 0, appr.Snapshot.WaitingCount)
}

func TestUnlockDoesNotAutoAdmit(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID
	require.NoError(t, c.SetLocked(id, "a", true))
	_, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)

	require.NoError(t, c.SetLocked(id, "a", false))
	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	assert.Equal(t, 1, got.WaitingCount)
}

func TestDropWaitingOnDisconnect(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID
	require.NoError(t, c.SetLocked(id, "a", true))

	res, err := c.Join(context.Background(), id, ident(t, "b", "bob"), "sid-b")
	require.NoError(t, err)
	require.True(t, res.Pending)

	assert.Equal(t, []string{id}, c.DropWaiting("sid-b"))
	assert.Empty(t, c.DropWaiting("sid-b"))

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.WaitingCount)

	_, err = c.ApproveWaiting(id, "a", "sid-b")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestSetLockedRequiresHost(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	err := c.SetLocked(snap.Meeting.ID, "b", true)
	assert.True(t, domain.IsCode(err, domain.CodeForbidden))
}

func TestConcurrentJoinLeave(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "host", "host"), "", "")
	id := snap.Meeting.ID

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			u := ident(t, string(rune('A'+i%26))+string(rune('a'+i/26)), "user")
			if _, err := c.Join(context.Background(), id, u, "sid"); err == nil {
				_, _ = c.Leave(context.Background(), id, u.UserID)
			}
		}(i)
	}
	wg.Wait()

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	assert.Equal(t, domain.UserID("host"), got.Meeting.HostID)
}

func TestSetMediaState(t *testing.T) {
	c := NewCoordinator(nil)
	snap := mustCreate(t, c, ident(t, "a", "alice"), "", "")
	id := snap.Meeting.ID

	p, err := c.SetMediaState(id, "a", true, false)
	require.NoError(t, err)
	assert.True(t, p.IsMuted)
	assert.False(t, p.IsVideoEnabled)

	got, err := c.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Participants[0].IsMuted)

	_, err = c.SetMediaState(id, "ghost", false, true)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func participantIDs(ps []domain.Participant) []domain.UserID {
	out := make([]domain.UserID, len(ps))
	for i, p := range ps {
		out[i] = p.UserID
	}
	return out
}
