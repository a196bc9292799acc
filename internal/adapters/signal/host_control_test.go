package signal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/domain"
)

func TestHostControlRequestRingsHost(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	bob := testIdentity(t, "b", "bob")
	connA, connB := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidB", bob, connB)

	snap := createMeeting(t, ctl, alice)
	id := snap.Meeting.ID
	_, err := ctl.Coordinator.Join(context.Background(), id, bob, "sidB")
	require.NoError(t, err)
	ctl.Registry.JoinRoom("sidA", id)
	ctl.Registry.JoinRoom("sidB", id)

	raw := fmt.Sprintf(`{"meetingId":%q}`, id)
	ctl.handleRequestHostControl(bob, connB, []byte(raw))

	typ, data := recv(t, connA)
	assert.Equal(t, "host-control-request", typ)
	assert.Equal(t, "b", data["requesterId"])
	assert.Equal(t, "bob", data["requesterUsername"])

	typ, data = recv(t, connB)
	assert.Equal(t, "host-control-request-sent", typ)
	assert.Equal(t, id, data["meetingId"])
}

func TestHostControlRequestRequiresMembership(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	carol := testIdentity(t, "c", "carol")
	connA, connC := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidC", carol, connC)

	snap := createMeeting(t, ctl, alice)
	ctl.Registry.JoinRoom("sidA", snap.Meeting.ID)

	ctl.handleRequestHostControl(carol, connC, []byte(fmt.Sprintf(`{"meetingId":%q}`, snap.Meeting.ID)))

	typ, data := recv(t, connC)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeForbidden), data["code"])
	assert.Empty(t, connA.send)
}

func TestHostControlResponseReachesRequester(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	bob := testIdentity(t, "b", "bob")
	connA, connB := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidB", bob, connB)

	snap := createMeeting(t, ctl, alice)
	id := snap.Meeting.ID
	_, err := ctl.Coordinator.Join(context.Background(), id, bob, "sidB")
	require.NoError(t, err)
	ctl.Registry.JoinRoom("sidA", id)
	ctl.Registry.JoinRoom("sidB", id)

	// A non-host cannot answer a control request.
	raw := fmt.Sprintf(`{"meetingId":%q,"requesterId":"b","approved":true}`, id)
	ctl.handleRespondHostControl(bob, connB, []byte(raw))
	typ, data := recv(t, connB)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeForbidden), data["code"])

	ctl.handleRespondHostControl(alice, connA, []byte(raw))
	typ, data = recv(t, connB)
	assert.Equal(t, "host-control-response", typ)
	assert.Equal(t, true, data["approved"])
	assert.Equal(t, "alice", data["respondedBy"])
	assert.Empty(t, connA.send)
}

func TestChangeQualityBroadcastsToRoom(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	bob := testIdentity(t, "b", "bob")
	connA, connB := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidB", bob, connB)

	snap := createMeeting(t, ctl, alice)
	id := snap.Meeting.ID
	_, err := ctl.Coordinator.Join(context.Background(), id, bob, "sidB")
	require.NoError(t, err)
	ctl.Registry.JoinRoom("sidA", id)
	ctl.Registry.JoinRoom("sidB", id)

	raw := fmt.Sprintf(`{"meetingId":%q,"qualitySettings":{"video":"720p"}}`, id)
	ctl.handleChangeQuality("sidA", alice, connA, []byte(raw))

	typ, data := recv(t, connB)
	assert.Equal(t, "quality-changed", typ)
	assert.Equal(t, "alice", data["changedBy"])
	settings, ok := data["qualitySettings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "720p", settings["video"])

	// The sender sees its own change too.
	typ, _ = recv(t, connA)
	assert.Equal(t, "quality-changed", typ)
}

func TestChangeLayoutRequiresRoom(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	bob := testIdentity(t, "b", "bob")
	connA, connB := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidB", bob, connB)

	snap := createMeeting(t, ctl, alice)
	id := snap.Meeting.ID
	_, err := ctl.Coordinator.Join(context.Background(), id, bob, "sidB")
	require.NoError(t, err)
	ctl.Registry.JoinRoom("sidA", id)
	ctl.Registry.JoinRoom("sidB", id)

	raw := fmt.Sprintf(`{"meetingId":%q,"layout":"spotlight"}`, id)
	ctl.handleChangeLayout("sidC", bob, connB, []byte(raw))
	typ, data := recv(t, connB)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeForbidden), data["code"])

	ctl.handleChangeLayout("sidB", bob, connB, []byte(raw))
	typ, data = recv(t, connA)
	assert.Equal(t, "layout-changed", typ)
	assert.Equal(t, "spotlight", data["layout"])
	assert.Equal(t, "bob", data["changedBy"])
}
