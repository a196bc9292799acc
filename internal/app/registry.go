package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

type connEntry struct {
	Conn     core.SignalConnection
	Identity domain.Identity
	Rooms    map[string]struct{}
}

// ConnSnap is a read-only view of one registered connection.
type ConnSnap struct {
	SID      core.SessionID
	Conn     core.SignalConnection
	Identity domain.Identity
}

// Registry tracks live connections and the meeting-room fan-out index.
// The room index is a cache: MeetingSession membership stays authoritative
// in the coordinator, and the index is maintained alongside it by the
// transport adapter.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.SessionID]*connEntry
	rooms map[string]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.SessionID]*connEntry),
		rooms: make(map[string]map[core.SessionID]struct{}),
	}
}

func (r *Registry) Bind(sid core.SessionID, identity domain.Identity, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = &connEntry{Conn: conn, Identity: identity, Rooms: make(map[string]struct{})}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("user", string(identity.UserID)).Msg("bound connection")
}

// Unbind drops the connection and returns the meetings it was still in so
// the caller can run the implicit-leave path for each.
func (r *Registry) Unbind(sid core.SessionID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(e.Rooms))
	for id := range e.Rooms {
		rooms = append(rooms, id)
		if set, ok := r.rooms[id]; ok {
			delete(set, sid)
			if len(set) == 0 {
				delete(r.rooms, id)
			}
		}
	}
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound connection")
	return rooms
}

func (r *Registry) Get(sid core.SessionID) (ConnSnap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[sid]
	if !ok {
		return ConnSnap{}, false
	}
	return ConnSnap{SID: sid, Conn: e.Conn, Identity: e.Identity}, true
}

func (r *Registry) JoinRoom(sid core.SessionID, meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return
	}
	e.Rooms[meetingID] = struct{}{}
	set, ok := r.rooms[meetingID]
	if !ok {
		set = make(map[core.SessionID]struct{})
		r.rooms[meetingID] = set
	}
	set[sid] = struct{}{}
}

func (r *Registry) LeaveRoom(sid core.SessionID, meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[sid]; ok {
		delete(e.Rooms, meetingID)
	}
	if set, ok := r.rooms[meetingID]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(r.rooms, meetingID)
		}
	}
}

// DropRoom removes the whole fan-out group for an ended meeting.
func (r *Registry) DropRoom(meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid := range r.rooms[meetingID] {
		if e, ok := r.conns[sid]; ok {
			delete(e.Rooms, meetingID)
		}
	}
	delete(r.rooms, meetingID)
}

// RoomMembers snapshots the connections currently in a meeting's room.
func (r *Registry) RoomMembers(meetingID string) []ConnSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[meetingID]
	out := make([]ConnSnap, 0, len(set))
	for sid := range set {
		if e, ok := r.conns[sid]; ok {
			out = append(out, ConnSnap{SID: sid, Conn: e.Conn, Identity: e.Identity})
		}
	}
	return out
}

// InRoom reports whether the connection is in the meeting's fan-out group.
func (r *Registry) InRoom(sid core.SessionID, meetingID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.rooms[meetingID]
	if !ok {
		return false
	}
	_, ok = set[sid]
	return ok
}

// ConnsOfUser lists every live connection of one user, across tabs.
func (r *Registry) ConnsOfUser(userID domain.UserID) []ConnSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ConnSnap
	for sid, e := range r.conns {
		if e.Identity.UserID == userID {
			out = append(out, ConnSnap{SID: sid, Conn: e.Conn, Identity: e.Identity})
		}
	}
	return out
}
