package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/realtime/ws"
)

// Websocket close codes used by the live channel.
const (
	closeGoingAway       uint16 = 1001
	closePolicyViolation uint16 = 1008
)

type joinFrame struct {
	Event string                `json:"event"`
	Data  notification.JoinData `json:"data"`
}

// live upgrades to a websocket, waits for the join event naming the token's
// subject and then forwards that user's pushes until either side goes away.
func (h *handlers) live(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		controller.Error(c, controller.NewUnauthorizedError("missing token"))
		return
	}
	claims, err := h.deps.Tokens.Validate(c.Request.Context(), token)
	if err != nil {
		controller.Error(c, controller.NewUnauthorizedError("invalid token"))
		return
	}

	conn, err := ws.Upgrade(c.Writer, c.Request, ws.Config{
		AllowedOrigins: h.cfg.Live.AllowedOrigins,
		ReadLimit:      int(h.cfg.Live.MaxMessageSize),
		WriteTimeout:   h.cfg.Live.WriteTimeout,
	})
	if err != nil {
		controller.Error(c, controller.NewValidationError("websocket upgrade required", map[string]interface{}{"cause": err.Error()}))
		return
	}
	defer conn.Close()

	log := h.log.WithContext(c.Request.Context()).With("user_id", claims.Subject)

	userID, err := h.awaitJoin(conn)
	if err != nil {
		log.Debug("live channel join rejected", "error", err)
		_ = conn.CloseWithReason(closePolicyViolation, err.Error())
		return
	}
	if userID != claims.Subject {
		log.Warn("live channel join for another user rejected", "join_user_id", userID)
		_ = conn.CloseWithReason(closePolicyViolation, "join user does not match token")
		return
	}

	sub := h.deps.Live.Subscribe(userID)
	defer sub.Close()
	log.Info("live channel joined")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stopPing := conn.StartPing(ctx, h.cfg.Live.PingInterval, func(error) { cancel() })
	defer stopPing()

	go func() {
		defer cancel()
		for {
			if _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug("live channel closed")
			return
		case <-sub.Done():
			_ = conn.CloseWithReason(closeGoingAway, "subscription closed")
			return
		case msg := <-sub.Messages():
			if err := conn.WriteFrame(ws.OpText, msg); err != nil {
				log.Debug("live channel write failed", "error", err)
				return
			}
		}
	}
}

func (h *handlers) awaitJoin(conn *ws.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(h.cfg.Live.JoinTimeout)); err != nil {
		return "", err
	}
	var frame joinFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return "", errors.New("join event expected")
	}
	if frame.Event != notification.EventJoin || frame.Data.UserID == "" {
		return "", errors.New("join event expected")
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	return frame.Data.UserID, nil
}
