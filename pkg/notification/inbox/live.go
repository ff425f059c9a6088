package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/realtime/ws"
)

// LiveConnector dials the live notification websocket.
type LiveConnector struct {
	url   string
	token TokenSource
	cfg   ws.Config
	log   logger.Logger
}

// NewLiveConnector creates a connector for the ws:// or wss:// endpoint at rawURL.
func NewLiveConnector(rawURL string, token TokenSource, cfg ws.Config, log logger.Logger) (*LiveConnector, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("live url is required")
	}
	if token == nil {
		return nil, errors.New("token source is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &LiveConnector{url: rawURL, token: token, cfg: cfg, log: log}, nil
}

// Connect dials, sends the join event for userID and starts reading pushes.
func (l *LiveConnector) Connect(ctx context.Context, userID string) (Channel, error) {
	token, err := l.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	target, err := url.Parse(l.url)
	if err != nil {
		return nil, fmt.Errorf("parse live url: %w", err)
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	conn, err := ws.Dial(ctx, target.String(), nil, l.cfg)
	if err != nil {
		return nil, err
	}
	join := notification.Event{Event: notification.EventJoin, Data: notification.JoinData{UserID: userID}}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	ch := &liveChannel{
		conn:   conn,
		events: make(chan notification.Notification, 16),
		closed: make(chan struct{}),
		log:    l.log.With("user_id", userID),
	}
	go ch.read()
	return ch, nil
}

type liveChannel struct {
	conn   *ws.Conn
	events chan notification.Notification
	closed chan struct{}
	once   sync.Once
	log    logger.Logger
}

func (c *liveChannel) Events() <-chan notification.Notification { return c.events }

func (c *liveChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *liveChannel) read() {
	defer close(c.events)
	for {
		payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug("live channel ended", "error", err)
			}
			return
		}
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event != notification.EventNotification {
			continue
		}
		var n notification.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.log.Warn("malformed live notification", "error", err)
			continue
		}
		select {
		case c.events <- n:
		case <-c.closed:
			return
		}
	}
}
