package notification

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnhub_notification_live_connections",
		Help: "Open live notification connections",
	})
	pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_notification_pushes_total",
		Help: "Live notification deliveries by result",
	}, []string{"result"})
)

// HubConfig bounds per-user subscriptions.
type HubConfig struct {
	// SendBuffer is the number of undelivered events a subscription may hold
	// before it is evicted as too slow.
	SendBuffer int
	// MaxConnsPerUser evicts the oldest subscription when exceeded. Zero means no limit.
	MaxConnsPerUser int
}

// Hub tracks live subscriptions per user.
type Hub struct {
	cfg    HubConfig
	log    logger.Logger
	nextID atomic.Uint64

	mu     sync.RWMutex
	byUser map[string][]*Subscription
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig, log logger.Logger) (*Hub, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	return &Hub{cfg: cfg, log: log, byUser: map[string][]*Subscription{}}, nil
}

// Subscription receives the encoded events pushed to one user.
type Subscription struct {
	id     uint64
	userID string
	hub    *Hub
	ch     chan []byte
	done   chan struct{}
	once   sync.Once
}

// Messages yields encoded events.
func (s *Subscription) Messages() <-chan []byte { return s.ch }

// Done is closed when the subscription is closed or evicted.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// UserID returns the subscribed user.
func (s *Subscription) UserID() string { return s.userID }

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

func (s *Subscription) shutdown() bool {
	closed := false
	s.once.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

// Subscribe registers a live connection for userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		id:     h.nextID.Add(1),
		userID: userID,
		hub:    h,
		ch:     make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	var evicted *Subscription
	h.mu.Lock()
	subs := h.byUser[userID]
	if h.cfg.MaxConnsPerUser > 0 && len(subs) >= h.cfg.MaxConnsPerUser {
		evicted = subs[0]
		subs = subs[1:]
	}
	h.byUser[userID] = append(subs, sub)
	h.mu.Unlock()

	liveConnections.Inc()
	if evicted != nil && evicted.shutdown() {
		liveConnections.Dec()
		h.log.Info("evicted oldest live connection", "user_id", userID)
	}
	return sub
}

// Push delivers event to every live subscription of userID and returns how many
// received it. Subscriptions whose buffer is full are evicted.
func (h *Hub) Push(userID string, event Event) (int, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	subs := append([]*Subscription(nil), h.byUser[userID]...)
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		select {
		case <-sub.done:
			continue
		default:
		}
		select {
		case sub.ch <- raw:
			delivered++
			pushesTotal.WithLabelValues("delivered").Inc()
		default:
			pushesTotal.WithLabelValues("dropped").Inc()
			h.log.Warn("live connection too slow, evicting", "user_id", userID)
			h.remove(sub)
		}
	}
	return delivered, nil
}

// Connected returns the number of live subscriptions of userID.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// CloseAll closes every subscription.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.byUser
	h.byUser = map[string][]*Subscription{}
	h.mu.Unlock()
	for _, subs := range all {
		for _, sub := range subs {
			if sub.shutdown() {
				liveConnections.Dec()
			}
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	subs := h.byUser[sub.userID]
	for i, candidate := range subs {
		if candidate.id == sub.id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.byUser, sub.userID)
	} else {
		h.byUser[sub.userID] = subs
	}
	h.mu.Unlock()

	if sub.shutdown() {
		liveConnections.Dec()
	}
}
