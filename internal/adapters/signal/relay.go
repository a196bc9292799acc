package signal

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type relayPayload struct {
	To        string                     `json:"to" validate:"required"`
	MeetingID string                     `json:"meetingId" validate:"required"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// handleRelay forwards offer/answer/ice-candidate to the addressed peer,
// stamping the verified sender identity. Both ends must be members of the
// named meeting's room; cross-meeting forwarding is rejected.
func (ctl *Controller) handleRelay(sid core.SessionID, identity domain.Identity, c *wsConn, typ string, raw jsoniter.RawMessage) {
	var p relayPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	switch typ {
	case "offer", "answer":
		if p.SDP == nil {
			ctl.sendError(c, "error", domain.Validation("missing sdp"))
			return
		}
	case "ice-candidate":
		if p.Candidate == nil {
			ctl.sendError(c, "error", domain.Validation("missing candidate"))
			return
		}
	}

	target := core.SessionID(p.To)
	if !ctl.Registry.InRoom(sid, p.MeetingID) || !ctl.Registry.InRoom(target, p.MeetingID) {
		ctl.sendError(c, "error", domain.Forbidden("peer not in meeting"))
		return
	}
	snap, ok := ctl.Registry.Get(target)
	if !ok {
		ctl.sendError(c, "error", domain.NotFound("peer not connected"))
		return
	}

	out := map[string]any{
		"from":         string(sid),
		"fromUserId":   identity.UserID,
		"fromUsername": identity.Username,
		"meetingId":    p.MeetingID,
	}
	if p.SDP != nil {
		out["sdp"] = p.SDP
	}
	if p.Candidate != nil {
		out["candidate"] = p.Candidate
	}
	ctl.sendEvent(snap.Conn, typ, out)
	log.Debug().Str("module", "signal").Str("type", typ).
		Str("from", string(sid)).Str("to", p.To).Msg("signal relayed")
}

type callPayload struct {
	To        string `json:"to" validate:"required"`
	MeetingID string `json:"meetingId"`
}

// handleCall rings every live connection of the callee.
func (ctl *Controller) handleCall(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p callPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	conns := ctl.Registry.ConnsOfUser(domain.UserID(p.To))
	if len(conns) == 0 {
		ctl.sendError(c, "error", domain.NotFound("user not online"))
		return
	}
	for _, snap := range conns {
		ctl.sendEvent(snap.Conn, "incoming-call", map[string]any{
			"from":         string(sid),
			"fromUserId":   identity.UserID,
			"fromUsername": identity.Username,
			"meetingId":    p.MeetingID,
		})
	}
	if p.MeetingID != "" {
		ctl.Notifier.Create(domain.NotifyMeetingInvite,
			fmt.Sprintf("%s is calling you", identity.Username),
			"Tap to join the meeting",
			map[string]any{"meetingId": p.MeetingID, "callerId": identity.UserID},
			[]domain.UserID{domain.UserID(p.To)})
	}
}

func (ctl *Controller) handleWhoIsOnline(sid core.SessionID, c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.Registry.InRoom(sid, p.MeetingID) {
		ctl.sendError(c, "error", domain.Forbidden("not in meeting"))
		return
	}
	users := lo.Map(ctl.Registry.RoomMembers(p.MeetingID), func(m app.ConnSnap, _ int) map[string]any {
		return map[string]any{
			"socketId": string(m.SID),
			"userId":   m.Identity.UserID,
			"username": m.Identity.Username,
		}
	})
	ctl.sendEvent(c, "online-users", map[string]any{
		"meetingId": p.MeetingID,
		"users":     users,
	})
}
