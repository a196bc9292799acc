package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/auth"
	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	recorder, err := app.NewRecorder(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)
	return NewController(
		app.NewCoordinator(nil),
		app.NewChatBoard(),
		recorder,
		app.NewNotifier(time.Hour),
		app.NewRegistry(),
		auth.NewManager("test-secret", time.Hour),
		1<<20,
		54*time.Second,
	)
}

func newTestWSConn() *wsConn {
	return &wsConn{send: make(chan core.Frame, 16)}
}

func recv(t *testing.T, c *wsConn) (string, map[string]any) {
	t.Helper()
	select {
	case frame := <-c.send:
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(frame, &ev))
		return ev.Type, ev.Data
	default:
		t.Fatal("no frame queued")
		return "", nil
	}
}

func testIdentity(t *testing.T, id, name string) domain.Identity {
	t.Helper()
	ident, err := domain.NewIdentity(domain.UserID(id), name, "")
	require.NoError(t, err)
	return ident
}

func createMeeting(t *testing.T, ctl *Controller, identity domain.Identity) core.MeetingSnapshot {
	t.Helper()
	snap, err := ctl.Coordinator.Create(context.Background(), identity, "", "")
	require.NoError(t, err)
	return snap
}

func TestRelayStampsVerifiedSender(t *testing.T) {
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

	// The payload claims a spoofed "from"; the relay must overwrite it.
	raw := fmt.Sprintf(`{"to":"sidB","from":"sidZ","meetingId":%q,"sdp":{"type":"offer","sdp":"v=0"}}`, id)
	ctl.handleRelay("sidA", alice, connA, "offer", []byte(raw))

	typ, data := recv(t, connB)
	assert.Equal(t, "offer", typ)
	assert.Equal(t, "sidA", data["from"])
	assert.Equal(t, "alice", data["fromUsername"])
	require.NotNil(t, data["sdp"])
	assert.Empty(t, connA.send)
}

func TestRelayRejectsCrossMeetingTargets(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	carol := testIdentity(t, "c", "carol")
	connA, connC := newTestWSConn(), newTestWSConn()
	ctl.Registry.Bind("sidA", alice, connA)
	ctl.Registry.Bind("sidC", carol, connC)

	snapA := createMeeting(t, ctl, alice)
	ctl.Registry.JoinRoom("sidA", snapA.Meeting.ID)
	snapC := createMeeting(t, ctl, carol)
	ctl.Registry.JoinRoom("sidC", snapC.Meeting.ID)

	raw := fmt.Sprintf(`{"to":"sidC","meetingId":%q,"sdp":{"type":"offer","sdp":"v=0"}}`, snapA.Meeting.ID)
	ctl.handleRelay("sidA", alice, connA, "offer", []byte(raw))

	typ, data := recv(t, connA)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeForbidden), data["code"])
	assert.Empty(t, connC.send)
}

func TestRelayRequiresPayloadBody(t *testing.T) {
	ctl := newTestController(t)
	alice := testIdentity(t, "a", "alice")
	conn := newTestWSConn()
	ctl.Registry.Bind("sidA", alice, conn)

	ctl.handleRelay("sidA", alice, conn, "ice-candidate", []byte(`{"to":"sidB","meetingId":"m1"}`))

	typ, data := recv(t, conn)
	assert.Equal(t, "error", typ)
	assert.Equal(t, string(domain.CodeValidation), data["code"])
}
