package signal

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type createMeetingPayload struct {
	Title     string `json:"title"`
	MeetingID string `json:"meetingId"`
}

func (ctl *Controller) handleCreateMeeting(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p createMeetingPayload
	if err := core.DecodePayload(raw, &p); err != nil {
		ctl.sendError(c, "error", domain.Validation("malformed payload"))
		return
	}
	snap, err := ctl.Coordinator.Create(context.Background(), identity, p.Title, p.MeetingID)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.Registry.JoinRoom(sid, snap.Meeting.ID)
	ctl.sendEvent(c, "meeting-created", map[string]any{
		"meetingId": snap.Meeting.ID,
		"meeting":   snap,
	})
}

type meetingPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
}

func (ctl *Controller) handleJoinMeeting(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.joinLimiter.Allow(identity.UserID) {
		ctl.sendError(c, "error", domain.Forbidden("too many join attempts"))
		return
	}

	res, err := ctl.Coordinator.Join(context.Background(), p.MeetingID, identity, sid)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if res.Pending {
		ctl.sendEvent(c, "join-pending", map[string]any{
			"meetingId": p.MeetingID,
			"position":  res.Position,
		})
		ctl.broadcastRoom(p.MeetingID, "participant-waiting", map[string]any{
			"meetingId": p.MeetingID,
			"socketId":  string(sid),
			"userId":    identity.UserID,
			"username":  identity.Username,
			"position":  res.Position,
		})
		return
	}

	ctl.Registry.JoinRoom(sid, p.MeetingID)
	ctl.sendEvent(c, "meeting-joined", map[string]any{
		"meetingId": p.MeetingID,
		"meeting":   res.Snapshot,
	})
	ctl.broadcastRoom(p.MeetingID, "participant-joined", map[string]any{
		"meetingId":        p.MeetingID,
		"userId":           res.Participant.UserID,
		"username":         res.Participant.Username,
		"participantCount": res.Snapshot.ParticipantCount,
	}, sid)
}

func (ctl *Controller) handleLeaveMeeting(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	res, err := ctl.Coordinator.Leave(context.Background(), p.MeetingID, identity.UserID)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.Registry.LeaveRoom(sid, p.MeetingID)
	ctl.sendEvent(c, "meeting-left", map[string]any{"meetingId": p.MeetingID})
	ctl.afterLeave(p.MeetingID, identity, res)
}

// afterLeave runs the shared fan-out for explicit leaves and implicit
// disconnect leaves: departure broadcast, host handoff, end-of-meeting
// teardown of the room and its side channels.
func (ctl *Controller) afterLeave(meetingID string, identity domain.Identity, res app.LeaveResult) {
	ctl.broadcastRoom(meetingID, "participant-left", map[string]any{
		"meetingId":        meetingID,
		"userId":           identity.UserID,
		"username":         identity.Username,
		"participantCount": res.ParticipantCount,
	})
	if res.Closed {
		ctl.teardown(meetingID)
		return
	}
	if res.NewHost != nil {
		ctl.announceHostChange(meetingID, identity.UserID, *res.NewHost)
	}
}

func (ctl *Controller) announceHostChange(meetingID string, previous domain.UserID, newHost domain.Participant) {
	ctl.broadcastRoom(meetingID, "host-changed", map[string]any{
		"meetingId":      meetingID,
		"previousHostId": previous,
		"newHostId":      newHost.UserID,
		"newHostName":    newHost.Username,
	})
	if snap, err := ctl.Coordinator.Get(meetingID); err == nil {
		recipients := lo.Map(snap.Participants, func(p domain.Participant, _ int) domain.UserID { return p.UserID })
		ctl.Notifier.HostChange(meetingID, snap.Meeting.Title, newHost, recipients)
	}
}

// teardown cleans up the transport and side channels once a meeting ended.
func (ctl *Controller) teardown(meetingID string) {
	if _, ok := ctl.Recorder.Active(meetingID); ok {
		if _, err := ctl.Recorder.Stop(context.Background(), meetingID, ""); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("meeting", meetingID).Msg("stop recording on meeting end")
		}
	}
	ctl.Chat.Close(meetingID)
	ctl.Registry.DropRoom(meetingID)
}

func (ctl *Controller) handleGetParticipants(c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	participants, err := ctl.Coordinator.Participants(p.MeetingID)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.sendEvent(c, "participants-list", map[string]any{
		"meetingId":    p.MeetingID,
		"participants": participants,
	})
}

type promotePayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	NewHostID string `json:"newHostId" validate:"required"`
}

func (ctl *Controller) handlePromote(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p promotePayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	res, err := ctl.Coordinator.Promote(p.MeetingID, identity.UserID, domain.UserID(p.NewHostID))
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.announceHostChange(p.MeetingID, res.PreviousHostID, domain.Participant{
		UserID:   res.NewHostID,
		Username: res.NewHostUsername,
		Role:     domain.RoleHost,
	})
}

type ejectPayload struct {
	MeetingID     string `json:"meetingId" validate:"required"`
	ParticipantID string `json:"participantId" validate:"required"`
}

func (ctl *Controller) handleEject(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p ejectPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	target := domain.UserID(p.ParticipantID)
	res, err := ctl.Coordinator.Eject(context.Background(), p.MeetingID, identity.UserID, target)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}

	// Force the target's connections out of the room before the broadcast so
	// they never see their own ejection as a regular departure.
	for _, member := range ctl.Registry.RoomMembers(p.MeetingID) {
		if member.Identity.UserID != target {
			continue
		}
		ctl.Registry.LeaveRoom(member.SID, p.MeetingID)
		ctl.sendEvent(member.Conn, "ejected", map[string]any{
			"meetingId": p.MeetingID,
			"by":        identity.Username,
		})
	}
	ctl.Notifier.Ejection(p.MeetingID, target, identity.Username)

	ctl.broadcastRoom(p.MeetingID, "participant-ejected", map[string]any{
		"meetingId":        p.MeetingID,
		"userId":           res.Ejected.UserID,
		"username":         res.Ejected.Username,
		"participantCount": res.ParticipantCount,
	})
	if res.Closed {
		ctl.teardown(p.MeetingID)
	}
}

type setLockedPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	Locked    bool   `json:"locked"`
}

func (ctl *Controller) handleSetLocked(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p setLockedPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if err := ctl.Coordinator.SetLocked(p.MeetingID, identity.UserID, p.Locked); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, "locked-updated", map[string]any{
		"meetingId": p.MeetingID,
		"locked":    p.Locked,
	})
}

type approveWaitingPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	SocketID  string `json:"socketId" validate:"required"`
}

func (ctl *Controller) handleApproveWaiting(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p approveWaitingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	res, err := ctl.Coordinator.ApproveWaiting(p.MeetingID, identity.UserID, core.SessionID(p.SocketID))
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}

	admitted := core.SessionID(p.SocketID)
	if snap, ok := ctl.Registry.Get(admitted); ok {
		ctl.Registry.JoinRoom(admitted, p.MeetingID)
		ctl.sendEvent(snap.Conn, "meeting-joined", map[string]any{
			"meetingId": p.MeetingID,
			"meeting":   res.Snapshot,
		})
	}
	ctl.broadcastRoom(p.MeetingID, "participant-joined", map[string]any{
		"meetingId":        p.MeetingID,
		"userId":           res.Participant.UserID,
		"username":         res.Participant.Username,
		"participantCount": res.Snapshot.ParticipantCount,
	}, admitted)
}

// handleRequestHostControl rings every live connection of the current host
// with the stamped requester identity; the server keeps no pending-request
// state, approval travels back through respond-host-control.
func (ctl *Controller) handleRequestHostControl(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "error", domain.Forbidden("not in meeting"))
		return
	}
	snap, err := ctl.Coordinator.Get(p.MeetingID)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	for _, host := range ctl.Registry.ConnsOfUser(snap.Meeting.HostID) {
		ctl.sendEvent(host.Conn, "host-control-request", map[string]any{
			"meetingId":         p.MeetingID,
			"requesterId":       identity.UserID,
			"requesterUsername": identity.Username,
		})
	}
	ctl.sendEvent(c, "host-control-request-sent", map[string]any{"meetingId": p.MeetingID})
}

type respondHostControlPayload struct {
	MeetingID   string `json:"meetingId" validate:"required"`
	RequesterID string `json:"requesterId" validate:"required"`
	Approved    bool   `json:"approved"`
}

func (ctl *Controller) handleRespondHostControl(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p respondHostControlPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	snap, err := ctl.Coordinator.Get(p.MeetingID)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	if snap.Meeting.HostID != identity.UserID {
		ctl.sendError(c, "error", domain.Forbidden("only the host can respond to control requests"))
		return
	}
	for _, requester := range ctl.Registry.ConnsOfUser(domain.UserID(p.RequesterID)) {
		ctl.sendEvent(requester.Conn, "host-control-response", map[string]any{
			"meetingId":   p.MeetingID,
			"approved":    p.Approved,
			"respondedBy": identity.Username,
		})
	}
}

type mediaStatePayload struct {
	MeetingID      string `json:"meetingId" validate:"required"`
	IsMuted        bool   `json:"isMuted"`
	IsVideoEnabled bool   `json:"isVideoEnabled"`
}

func (ctl *Controller) handleMediaState(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p mediaStatePayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	participant, err := ctl.Coordinator.SetMediaState(p.MeetingID, identity.UserID, p.IsMuted, p.IsVideoEnabled)
	if err != nil {
		ctl.sendError(c, "error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, "participant-media", map[string]any{
		"meetingId":      p.MeetingID,
		"userId":         participant.UserID,
		"isMuted":        participant.IsMuted,
		"isVideoEnabled": participant.IsVideoEnabled,
	})
}

// decode unmarshals a payload and validates its required fields.
func decode(raw jsoniter.RawMessage, into any) error {
	if err := core.DecodePayload(raw, into); err != nil {
		return domain.Validation("malformed payload")
	}
	if err := validate.Struct(into); err != nil {
		return domain.Validation("missing required field")
	}
	return nil
}
