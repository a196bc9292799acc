package signal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/domain"
)

func TestDisconnectDropsWaitingEntry(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	bob := testIdentity(t, "b", "bob")
	connA, connB := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidB", bob, connB)

	snap := createMeeting(t, ctl, alice)
	id := snap.Meeting.ID
	ctl.Registry.JoinRoom("sidA", id)
	require.NoError(t, ctl.Coordinator.SetLocked(id, "a", true))

	res, err := ctl.Coordinator.Join(context.Background(), id, bob, "sidB")
	require.NoError(t, err)
	require.True(t, res.Pending)

	ctl.handleDisconnect("sidB", bob)

	typ, data := recv(t, connA)
	assert.Equal(t, "participant-waiting-left", typ)
	assert.Equal(t, id, data["meetingId"])
	assert.Equal(t, "sidB", data["socketId"])
	assert.Equal(t, "b", data["userId"])

	_, err = ctl.Coordinator.ApproveWaiting(id, "a", "sidB")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))

	got, err := ctl.Coordinator.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.WaitingCount)
}

func TestCreateMeetingRejectsTakenID(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	mallory := testIdentity(t, "m", "mallory")
	connA, connM := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidM", mallory, connM)

	_, err := ctl.Coordinator.Create(context.Background(), alice, "Standup", "meeting-1")
	require.NoError(t, err)
	ctl.Registry.JoinRoom("sidA", "meeting-1")

	ctl.handleCreateMeeting("sidM", mallory, connM, []byte(fmt.Sprintf(`{"meetingId":%q}`, "meeting-1")))

	typ, data := recv(t, connM)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeConflict), data["code"])

	got, err := ctl.Coordinator.Get("meeting-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("a"), got.Meeting.HostID)
}
