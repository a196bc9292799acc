package signal

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type screenSharePayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	To        string `json:"to"`
}

// handleScreenShare passes screen-share lifecycle events through to the room
// (or to one addressed peer for confirmations), stamped with the verified
// presenter identity. The server keeps no screen-share state.
func (ctl *Controller) handleScreenShare(sid core.SessionID, identity domain.Identity, c *wsConn, typ string, raw jsoniter.RawMessage) {
	var p screenSharePayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.Registry.InRoom(sid, p.MeetingID) {
		ctl.sendError(c, "error", domain.Forbidden("not in meeting"))
		return
	}

	out := map[string]any{
		"meetingId":    p.MeetingID,
		"from":         string(sid),
		"fromUserId":   identity.UserID,
		"fromUsername": identity.Username,
	}
	if p.To != "" {
		target := core.SessionID(p.To)
		if snap, ok := ctl.Registry.Get(target); ok && ctl.Registry.InRoom(target, p.MeetingID) {
			ctl.sendEvent(snap.Conn, typ, out)
		}
		return
	}
	ctl.broadcastRoom(p.MeetingID, typ, out, sid)
}

type qualityPayload struct {
	MeetingID       string         `json:"meetingId" validate:"required"`
	QualitySettings map[string]any `json:"qualitySettings" validate:"required"`
}

func (ctl *Controller) handleChangeQuality(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p qualityPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.Registry.InRoom(sid, p.MeetingID) {
		ctl.sendError(c, "error", domain.Forbidden("not in meeting"))
		return
	}
	ctl.broadcastRoom(p.MeetingID, "quality-changed", map[string]any{
		"meetingId":       p.MeetingID,
		"qualitySettings": p.QualitySettings,
		"changedBy":       identity.Username,
	})
}

type layoutPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	Layout    string `json:"layout" validate:"required"`
}

func (ctl *Controller) handleChangeLayout(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p layoutPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.Registry.InRoom(sid, p.MeetingID) {
		ctl.sendError(c, "error", domain.Forbidden("not in meeting"))
		return
	}
	ctl.broadcastRoom(p.MeetingID, "layout-changed", map[string]any{
		"meetingId": p.MeetingID,
		"layout":    p.Layout,
		"changedBy": identity.Username,
	})
}
