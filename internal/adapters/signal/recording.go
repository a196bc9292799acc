package signal

import (
	"context"
	"encoding/base64"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type startRecordingPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	Type      string `json:"type"`
}

func (ctl *Controller) handleStartRecording(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p startRecordingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "recording-error", domain.Forbidden("not in meeting"))
		return
	}
	typ, err := domain.ParseRecordingType(p.Type)
	if err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	job, err := ctl.Recorder.Start(p.MeetingID, identity.UserID, typ)
	if err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, "recording-started", job)
	ctl.notifyRecording(p.MeetingID, "started")
}

func (ctl *Controller) handleStopRecording(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "recording-error", domain.Forbidden("not in meeting"))
		return
	}
	final, err := ctl.Recorder.Stop(context.Background(), p.MeetingID, identity.UserID)
	if err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, "recording-stopped", final)
	ctl.notifyRecording(p.MeetingID, "stopped")
}

type recordingChunkPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	Chunk     string `json:"chunk" validate:"required"`
	Type      string `json:"type"`
}

func (ctl *Controller) handleRecordingChunk(identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p recordingChunkPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(p.Chunk)
	if err != nil {
		ctl.sendError(c, "recording-error", domain.Validation("chunk is not valid base64"))
		return
	}
	// Late or out-of-state chunks are dropped inside AddChunk, no answer.
	ctl.Recorder.AddChunk(p.MeetingID, data)
}

func (ctl *Controller) handleRecordingStatus(c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "recording-error", err)
		return
	}
	view, active := ctl.Recorder.Active(p.MeetingID)
	out := map[string]any{
		"meetingId": p.MeetingID,
		"active":    active,
	}
	if active {
		out["recording"] = view
	}
	ctl.sendEvent(c, "recording-status", out)
}

func (ctl *Controller) notifyRecording(meetingID, action string) {
	participants, err := ctl.Coordinator.Participants(meetingID)
	if err != nil {
		return
	}
	recipients := lo.Map(participants, func(p domain.Participant, _ int) domain.UserID { return p.UserID })
	ctl.Notifier.RecordingStatus(meetingID, action, recipients)
}
