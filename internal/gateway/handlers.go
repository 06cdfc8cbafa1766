package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/castlane/chesslive/internal/hub"
	"github.com/castlane/chesslive/internal/invite"
	"github.com/castlane/chesslive/internal/live"
	"github.com/castlane/chesslive/internal/obslog"
	"github.com/castlane/chesslive/internal/rules"
	"github.com/castlane/chesslive/pkg/livedto"
)

// dispatch routes one inbound frame. The event-type set is closed; anything
// else is a protocol error. Every handler runs under recover so a broken
// message degrades to an error reply instead of killing the connection or
// the broadcast loop.
func (g *Gateway) dispatch(ctx context.Context, sess *session, f *livedto.Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			obslog.L().Error("ws_handler_panic",
				zap.String("conn_id", sess.connID),
				zap.String("game_id", sess.gameID),
				zap.String("type", string(f.Type)),
				zap.Any("panic", rec),
			)
			g.errReply(sess, "error.internal")
		}
	}()

	switch f.Type {
	case livedto.EventMove:
		g.handleMove(ctx, sess, f)
	case livedto.EventResign:
		g.handleResign(ctx, sess, f)
	case livedto.EventChallenge:
		g.handleChallenge(ctx, sess, f)
	case livedto.EventChallengeResponse:
		g.handleChallengeResponse(ctx, sess, f)
	default:
		obslog.L().Debug("ws_unknown_type",
			zap.String("conn_id", sess.connID),
			zap.String("type", string(f.Type)),
		)
		g.sendTo(sess, &livedto.Frame{
			Type:    livedto.EventError,
			Message: g.deps.Messages.Get("error.unknown_type", map[string]any{"Type": string(f.Type)}),
		})
	}
}

// actor prefers the authenticated identity; frames from anonymous sockets
// fall back to the claimed player name, which the participant check still
// has to admit.
func (sess *session) actor(claimed string) string {
	if sess.user != "" {
		return sess.user
	}
	return claimed
}

// gameFor resolves the target game: frame field first, then the game joined
// at connect time.
func (sess *session) gameFor(f *livedto.Frame) string {
	if f.GameID != "" {
		return f.GameID
	}
	return sess.gameID
}

func (g *Gateway) handleMove(ctx context.Context, sess *session, f *livedto.Frame) {
	gameID := sess.gameFor(f)
	actor := sess.actor(f.Player)
	if gameID == "" || actor == "" || f.Move == "" {
		g.errReply(sess, "error.protocol")
		return
	}

	_, rec, _, err := g.deps.Games.SubmitMove(ctx, gameID, actor, f.Move)
	if err != nil {
		g.replyDomainError(sess, gameID, err)
		return
	}

	// Receivers reload authoritative state; the embedded fields are a hint.
	// A terminal move is visible to reloading clients through status/result,
	// so no extra frame is needed.
	g.broadcast(hub.GameGroup(gameID), &livedto.Frame{
		Type:   livedto.EventMove,
		Reload: true,
		GameID: gameID,
		Player: actor,
		Move:   rec.SAN,
	})
}

func (g *Gateway) handleResign(ctx context.Context, sess *session, f *livedto.Frame) {
	gameID := sess.gameFor(f)
	actor := sess.actor(f.Player)
	if gameID == "" || actor == "" {
		g.errReply(sess, "error.protocol")
		return
	}

	gm, err := g.deps.Games.Resign(ctx, gameID, actor)
	if err != nil {
		g.replyDomainError(sess, gameID, err)
		return
	}
	g.broadcast(hub.GameGroup(gameID), &livedto.Frame{
		Type:   livedto.EventResign,
		GameID: gameID,
		Player: actor,
		Status: string(gm.Status),
		Result: string(gm.Result),
	})
}

func (g *Gateway) handleChallenge(ctx context.Context, sess *session, f *livedto.Frame) {
	challenger := sess.actor(f.Challenger)
	if challenger == "" || f.Challenged == "" {
		g.errReply(sess, "error.protocol")
		return
	}
	inv, err := g.deps.Invites.Create(ctx, challenger, f.Challenged)
	if err != nil {
		g.replyDomainError(sess, "", err)
		return
	}
	// lobby-wide relay; game_id carries the invitation id the response
	// must quote back
	g.broadcast(hub.Lobby, &livedto.Frame{
		Type:       livedto.EventChallenge,
		Challenger: inv.Sender,
		Challenged: inv.Recipient,
		GameID:     inv.ID,
	})
}

func (g *Gateway) handleChallengeResponse(ctx context.Context, sess *session, f *livedto.Frame) {
	if f.Accepted == nil || f.GameID == "" {
		g.errReply(sess, "error.protocol")
		return
	}

	if !*f.Accepted {
		inv, err := g.deps.Invites.Decline(ctx, f.GameID)
		if err != nil {
			g.replyDomainError(sess, "", err)
			return
		}
		g.broadcast(hub.Lobby, &livedto.Frame{
			Type:       livedto.EventChallengeResponse,
			Accepted:   livedto.Bool(false),
			Challenger: inv.Sender,
			Challenged: inv.Recipient,
			GameID:     inv.ID,
		})
		return
	}

	inv, gm, err := g.deps.Invites.Accept(ctx, f.GameID)
	if err != nil {
		g.replyDomainError(sess, "", err)
		return
	}
	g.broadcast(hub.Lobby, &livedto.Frame{
		Type:       livedto.EventChallengeResponse,
		Accepted:   livedto.Bool(true),
		Challenger: inv.Sender,
		Challenged: inv.Recipient,
		GameID:     gm.ID,
	})
}

// replyDomainError maps domain rejections onto error frames for the
// offending connection only; they are never broadcast. Anything unmapped is
// logged and downgraded (fail-soft).
func (g *Gateway) replyDomainError(sess *session, gameID string, err error) {
	switch {
	case errors.Is(err, rules.ErrIllegalMove):
		g.errReply(sess, "error.illegal_move")
	case errors.Is(err, live.ErrNotYourTurn):
		g.errReply(sess, "error.not_your_turn")
	case errors.Is(err, live.ErrNotAParticipant):
		g.errReply(sess, "error.not_participant")
	case errors.Is(err, live.ErrGameNotActive), errors.Is(err, live.ErrGameNotFound):
		g.errReply(sess, "error.game_not_active")
	case errors.Is(err, live.ErrArchiveUnavailable):
		g.errReply(sess, "error.persistence")
	case errors.Is(err, invite.ErrInviteGone):
		g.errReply(sess, "error.invite_gone")
	case errors.Is(err, invite.ErrInviteResolved):
		g.errReply(sess, "error.invite_resolved")
	default:
		obslog.L().Error("ws_handler_error",
			zap.String("conn_id", sess.connID),
			zap.String("game_id", gameID),
			zap.Error(err),
		)
		g.errReply(sess, "error.internal")
	}
}
