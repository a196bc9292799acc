package signal

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type chatMessagePayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	Text      string `json:"text" validate:"required"`
	Kind      string `json:"type"`
}

func (ctl *Controller) handleChatMessage(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage) {
	var p chatMessagePayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "chat-error", domain.Forbidden("not in meeting"))
		return
	}
	msg, err := ctl.Chat.SendMessage(p.MeetingID, identity, p.Text, domain.MessageKind(p.Kind))
	if err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, "chat-message", msg)

	if participants, err := ctl.Coordinator.Participants(p.MeetingID); err == nil {
		recipients := lo.FilterMap(participants, func(pt domain.Participant, _ int) (domain.UserID, bool) {
			return pt.UserID, pt.UserID != identity.UserID
		})
		if len(recipients) > 0 {
			ctl.Notifier.ChatMessage(p.MeetingID, identity, p.Text, recipients)
		}
	}
}

type reactionPayload struct {
	MeetingID string `json:"meetingId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

func (ctl *Controller) handleReaction(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage, add bool) {
	var p reactionPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "chat-error", domain.Forbidden("not in meeting"))
		return
	}

	var err error
	var view any
	typ := "chat-reaction"
	if add {
		view, err = ctl.Chat.AddReaction(p.MeetingID, p.MessageID, identity.UserID, p.Emoji)
	} else {
		typ = "chat-reaction-remove"
		view, err = ctl.Chat.RemoveReaction(p.MeetingID, p.MessageID, identity.UserID, p.Emoji)
	}
	if err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	ctl.broadcastRoom(p.MeetingID, typ, view)
}

func (ctl *Controller) handleHand(sid core.SessionID, identity domain.Identity, c *wsConn, raw jsoniter.RawMessage, raise bool) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	if !ctl.Coordinator.IsMember(p.MeetingID, identity.UserID) {
		ctl.sendError(c, "chat-error", domain.Forbidden("not in meeting"))
		return
	}

	var changed bool
	var hands []domain.RaisedHand
	if raise {
		changed, hands = ctl.Chat.RaiseHand(p.MeetingID, identity)
	} else {
		changed, hands = ctl.Chat.LowerHand(p.MeetingID, identity)
	}
	payload := map[string]any{
		"meetingId": p.MeetingID,
		"hands":     hands,
	}
	// The full list goes out either way; an unchanged state only answers the
	// requester so late subscribers can still resync.
	if changed {
		ctl.broadcastRoom(p.MeetingID, "raised-hands-updated", payload)
		return
	}
	ctl.sendEvent(c, "raised-hands-updated", payload)
}

type chatHistoryPayload struct {
	MeetingID string     `json:"meetingId" validate:"required"`
	Limit     int        `json:"limit"`
	Since     *time.Time `json:"since"`
}

func (ctl *Controller) handleChatHistory(c *wsConn, raw jsoniter.RawMessage) {
	var p chatHistoryPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	msgs := ctl.Chat.History(p.MeetingID, p.Limit, p.Since)
	ctl.sendEvent(c, "chat-history", map[string]any{
		"meetingId": p.MeetingID,
		"messages":  msgs,
	})
}

func (ctl *Controller) handleChatStats(c *wsConn, raw jsoniter.RawMessage) {
	var p meetingPayload
	if err := decode(raw, &p); err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	st, err := ctl.Chat.Stats(p.MeetingID)
	if err != nil {
		ctl.sendError(c, "chat-error", err)
		return
	}
	ctl.sendEvent(c, "chat-stats", map[string]any{
		"meetingId": p.MeetingID,
		"stats":     st,
	})
}
