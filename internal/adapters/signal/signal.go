// Package signal is the WebSocket adapter: it authenticates connections,
// runs the read/write pumps and translates wire events into coordinator
// operations and room broadcasts.
package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/auth"
	"github.com/jbataille/visio/internal/core"
	"github.com/jbataille/visio/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

var validate = validator.New()

type Controller struct {
	Coordinator *app.Coordinator
	Chat        *app.ChatBoard
	Recorder    *app.Recorder
	Notifier    *app.Notifier
	Registry    *app.Registry
	Tokens      *auth.Manager

	readLimit   int64
	pingPeriod  time.Duration
	joinLimiter *JoinRateLimiter
}

func NewController(coord *app.Coordinator, chat *app.ChatBoard, rec *app.Recorder, notif *app.Notifier, reg *app.Registry, tokens *auth.Manager, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Coordinator: coord,
		Chat:        chat,
		Recorder:    rec,
		Notifier:    notif,
		Registry:    reg,
		Tokens:      tokens,
		readLimit:   readLimit,
		pingPeriod:  pingPeriod,
		joinLimiter: NewJoinRateLimiter(20, time.Minute),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS authenticates the bearer token, upgrades the connection and
// starts the pumps. The verified identity sticks to the connection; event
// payloads can never override it.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	identity, err := ctl.Tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 64),
	}
	ctl.Registry.Bind(sid, identity, conn)
	ctl.Notifier.Subscribe(identity.UserID, sid, conn)
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("user", string(identity.UserID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, identity, conn)
}

// handleDisconnect takes the same serialized path as an explicit leave for
// every meeting the connection was still a member of.
func (ctl *Controller) handleDisconnect(sid core.SessionID, identity domain.Identity) {
	ctl.Notifier.Unsubscribe(identity.UserID, sid)
	for _, meetingID := range ctl.Coordinator.DropWaiting(sid) {
		ctl.broadcastRoom(meetingID, "participant-waiting-left", map[string]any{
			"meetingId": meetingID,
			"socketId":  string(sid),
			"userId":    identity.UserID,
		})
	}
	meetings := ctl.Registry.Unbind(sid)
	for _, meetingID := range meetings {
		res, err := ctl.Coordinator.Leave(context.Background(), meetingID, identity.UserID)
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").
				Str("meeting", meetingID).Msg("implicit leave")
			continue
		}
		ctl.afterLeave(meetingID, identity, res)
	}
}
