package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/castlane/chesslive/internal/hub"
	"github.com/castlane/chesslive/internal/identity"
	"github.com/castlane/chesslive/internal/invite"
	"github.com/castlane/chesslive/internal/live"
	"github.com/castlane/chesslive/internal/msgcat"
	"github.com/castlane/chesslive/internal/obslog"
	"github.com/castlane/chesslive/internal/presence"
	"github.com/castlane/chesslive/pkg/livedto"
)

// Deps wires the gateway's collaborators. Everything is injected; the
// gateway owns no global state.
type Deps struct {
	Hub      *hub.Registry
	Presence *presence.Registry
	Games    *live.Manager
	Invites  *invite.Manager
	Resolver identity.Resolver
	Messages *msgcat.Catalog

	QueueSize    int
	WriteTimeout time.Duration
}

// Gateway upgrades sockets and runs one protocol session per connection.
type Gateway struct {
	deps Deps
}

func New(deps Deps) *Gateway {
	if deps.QueueSize <= 0 {
		deps.QueueSize = 64
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = 5 * time.Second
	}
	return &Gateway{deps: deps}
}

// LobbyHandler serves /ws/lobby.
func (g *Gateway) LobbyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, "")
	}
}

// GameHandler serves /ws/game/{game_id}. Spectators may join the group;
// move submission is still gated on participation.
func (g *Gateway) GameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, mux.Vars(r)["game_id"])
	}
}

// session is the per-connection state: connecting -> open -> closed.
type session struct {
	connID string
	user   string // "" for anonymous
	gameID string // "" on lobby-only connections
	member *hub.Member
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, gameID string) {
	ctx := r.Context()

	user, err := g.deps.Resolver.Resolve(ctx, r.URL.Query().Get("token"))
	if err != nil {
		// identity lookup failure degrades the socket to anonymous
		obslog.L().Warn("ws_identity_error", zap.Error(err))
		user = ""
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	sess := &session{
		connID: connID,
		user:   user,
		gameID: gameID,
		member: hub.NewMember(connID, g.deps.QueueSize),
	}
	obslog.L().Info("ws_connect",
		zap.String("conn_id", sess.connID),
		zap.String("user", user),
		zap.String("game_id", gameID),
	)

	go g.writePump(ctx, c, sess.member)
	defer g.teardown(c, sess)

	cameOnline := g.deps.Presence.Connect(sess.connID, user)
	g.deps.Hub.Join(hub.Lobby, sess.member)
	welcome := g.deps.Messages.Get("connect.lobby", nil)
	if gameID != "" {
		g.deps.Hub.Join(hub.GameGroup(gameID), sess.member)
		welcome = g.deps.Messages.Get("connect.game", nil)
	}

	g.sendTo(sess, &livedto.Frame{Type: livedto.EventConnectionEstablished, Message: welcome})
	if cameOnline {
		g.broadcast(hub.Lobby, &livedto.Frame{Type: livedto.EventUserOnline, Username: user})
	}

	g.readLoop(ctx, c, sess)
}

// readLoop unmarshals frames itself rather than through wsjson.Read: wsjson
// closes the connection on bad JSON, and a malformed frame on an otherwise
// healthy transport must get an error reply, not a hangup. Only a transport
// error ends the session.
func (g *Gateway) readLoop(ctx context.Context, c *websocket.Conn, sess *session) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var f livedto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			g.errReply(sess, "error.protocol")
			continue
		}
		g.dispatch(ctx, sess, &f)
	}
}

func (g *Gateway) writePump(ctx context.Context, c *websocket.Conn, m *hub.Member) {
	for {
		select {
		case <-m.Done():
			// evicted or session closing; unblock the read loop
			_ = c.Close(websocket.StatusPolicyViolation, "send queue overflow")
			return
		case payload := <-m.Events():
			wctx, cancel := context.WithTimeout(ctx, g.deps.WriteTimeout)
			err := c.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				m.Close()
				_ = c.Close(websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

// teardown leaves all groups, releases presence, and announces user_offline
// when the last connection of an authenticated identity closed. A move that
// already committed is unaffected; we only stop sending to this socket.
func (g *Gateway) teardown(c *websocket.Conn, sess *session) {
	g.deps.Hub.Remove(sess.member.ID())
	sess.member.Close()
	identity, wentOffline := g.deps.Presence.Disconnect(sess.connID)
	if wentOffline {
		g.broadcast(hub.Lobby, &livedto.Frame{Type: livedto.EventUserOffline, Username: identity})
	}
	_ = c.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect",
		zap.String("conn_id", sess.connID),
		zap.String("user", sess.user),
	)
}

func (g *Gateway) sendTo(sess *session, f *livedto.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	if !sess.member.Enqueue(payload) {
		sess.member.Close()
	}
}

func (g *Gateway) broadcast(group string, f *livedto.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	g.deps.Hub.Send(group, payload)
}

func (g *Gateway) errReply(sess *session, key string) {
	g.sendTo(sess, &livedto.Frame{
		Type:    livedto.EventError,
		Message: g.deps.Messages.Get(key, nil),
	})
}
