package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, identity domain.Identity, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.handleDisconnect(sid, identity)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(sid, identity, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(sid core.SessionID, identity domain.Identity, c *wsConn, data []byte) {
	ev, err := core.DecodeEvent(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "error", domain.Validation("malformed event"))
		return
	}

	switch ev.Type {
	case "create-meeting":
		ctl.handleCreateMeeting(sid, identity, c, ev.Data)
	case "join-meeting":
		ctl.handleJoinMeeting(sid, identity, c, ev.Data)
	case "leave-meeting":
		ctl.handleLeaveMeeting(sid, identity, c, ev.Data)
	case "get-participants":
		ctl.handleGetParticipants(c, ev.Data)
	case "promote-to-host":
		ctl.handlePromote(identity, c, ev.Data)
	case "eject-participant":
		ctl.handleEject(identity, c, ev.Data)
	case "set-locked":
		ctl.handleSetLocked(identity, c, ev.Data)
	case "approve-waiting":
		ctl.handleApproveWaiting(identity, c, ev.Data)
	case "media-state":
		ctl.handleMediaState(identity, c, ev.Data)
	case "request-host-control":
		ctl.handleRequestHostControl(identity, c, ev.Data)
	case "respond-host-control":
		ctl.handleRespondHostControl(identity, c, ev.Data)
	case "change-quality":
		ctl.handleChangeQuality(sid, identity, c, ev.Data)
	case "change-layout":
		ctl.handleChangeLayout(sid, identity, c, ev.Data)
	case "offer", "answer", "ice-candidate":
		ctl.handleRelay(sid, identity, c, ev.Type, ev.Data)
	case "call":
		ctl.handleCall(sid, identity, c, ev.Data)
	case "who-is-online":
		ctl.handleWhoIsOnline(sid, c, ev.Data)
	case "chat-message":
		ctl.handleChatMessage(sid, identity, c, ev.Data)
	case "chat-reaction":
		ctl.handleReaction(sid, identity, c, ev.Data, true)
	case "chat-reaction-remove":
		ctl.handleReaction(sid, identity, c, ev.Data, false)
	case "hand-raised":
		ctl.handleHand(sid, identity, c, ev.Data, true)
	case "hand-lowered":
		ctl.handleHand(sid, identity, c, ev.Data, false)
	case "get-chat-history":
		ctl.handleChatHistory(c, ev.Data)
	case "get-chat-stats":
		ctl.handleChatStats(c, ev.Data)
	case "start-recording":
		ctl.handleStartRecording(sid, identity, c, ev.Data)
	case "stop-recording":
		ctl.handleStopRecording(sid, identity, c, ev.Data)
	case "recording-chunk":
		ctl.handleRecordingChunk(identity, c, ev.Data)
	case "get-recording-status":
		ctl.handleRecordingStatus(c, ev.Data)
	case "screen-share-started", "screen-share-stopped", "screen-share-paused",
		"screen-share-resumed", "screen-share-confirmation":
		ctl.handleScreenShare(sid, identity, c, ev.Type, ev.Data)
	case "get-notifications":
		ctl.handleGetNotifications(identity, c, ev.Data)
	case "mark-notification-read":
		ctl.handleMarkRead(identity, c, ev.Data)
	case "mark-all-notifications-read":
		ctl.handleMarkAllRead(identity, c)
	case "delete-notification":
		ctl.handleDeleteNotification(identity, c, ev.Data)
	case "get-unread-count":
		ctl.handleUnreadCount(identity, c)
	case "ping":
		ctl.sendEvent(c, "pong", nil)
	default:
		log.Warn().Str("module", "signal").Str("type", ev.Type).Msg("unknown event")
	}
}

func (ctl *Controller) sendEvent(c core.SignalConnection, typ string, data any) {
	frame, err := core.EncodeEvent(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", typ).Msg("encode event")
		return
	}
	_ = c.TrySend(frame)
}

// sendError answers the originating connection only; an invalid request never
// reaches the broadcast path.
func (ctl *Controller) sendError(c core.SignalConnection, kind string, err error) {
	ctl.sendEvent(c, kind, map[string]any{
		"code":    string(domain.CodeOf(err)),
		"message": err.Error(),
	})
}

// broadcastRoom fans an event out to the meeting's room, skipping the
// connections named in except.
func (ctl *Controller) broadcastRoom(meetingID, typ string, data any, except ...core.SessionID) {
	frame, err := core.EncodeEvent(typ, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", typ).Msg("encode broadcast")
		return
	}
	skip := make(map[core.SessionID]struct{}, len(except))
	for _, sid := range except {
		skip[sid] = struct{}{}
	}
	for _, member := range ctl.Registry.RoomMembers(meetingID) {
		if _, ok := skip[member.SID]; ok {
			continue
		}
		if err := member.Conn.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "signal").
				Str("sid", string(member.SID)).Msg("broadcast dropped")
		}
	}
}
