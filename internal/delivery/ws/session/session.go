package ws_session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Controller struct {
	hub      *service_fanout.Hub
	sessions *usecase_session.Usecase
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func New(hub *service_fanout.Hub, sessions *usecase_session.Usecase, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.Named("ws_session"),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws/sessions/:session_id", c.feed)
}

type client struct {
	conn   *websocket.Conn
	sub    *service_fanout.Subscription
	logger *zap.Logger
}

// feed streams the change feed of one session as JSON text frames.
func (c *Controller) feed(ctx *gin.Context) {
	sessionID := ctx.Param("session_id")
	if _, err := c.sessions.Get(ctx, sessionID); err != nil {
		http_common.Abort(ctx, c.logger, "feed for unknown session", err)
		return
	}

	// subscribed before the handshake completes, so nothing published
	// after the client sees the upgrade is missed
	sub := c.hub.Subscribe(sessionID)
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		sub.Unsubscribe()
		c.logger.Error("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	cl := &client{
		conn:   conn,
		sub:    sub,
		logger: c.logger.With(zap.String("session_id", sessionID)),
	}
	cl.logger.Info("client registered")

	go cl.writePump()
	go cl.readPump()
}

// readPump only watches for the peer going away; clients send nothing.
func (cl *client) readPump() {
	defer func() {
		cl.sub.Unsubscribe()
		cl.conn.Close()
		cl.logger.Info("client unregistered")
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case event, ok := <-cl.sub.Events():
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped by the hub or unsubscribed; the client resubscribes
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resubscribe"))
				return
			}
			if err := cl.conn.WriteJSON(event); err != nil {
				cl.logger.Debug("write failed", zap.Error(err))
				cl.sub.Unsubscribe()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.sub.Unsubscribe()
				return
			}
		}
	}
}
