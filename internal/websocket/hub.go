package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for version checks. Subscribers hear about a change
	// at most once per heartbeat however many awards land in between.
	versionHeartbeatInterval = 2 * time.Second

	// Buffered messages per subscriber before updates are skipped
	sendBufferSize = 16

	// MessageVersionUpdate is the type of every message the hub sends
	MessageVersionUpdate = "VERSION_UPDATE"
)

// VersionSource reports the leaderboard change counter
type VersionSource interface {
	GetVersion(ctx context.Context) (int64, error)
}

// VersionUpdate represents the version heartbeat message
type VersionUpdate struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// Subscription receives VERSION_UPDATE messages until it is cancelled or the
// hub stops, after which C is closed
type Subscription struct {
	C <-chan []byte

	send chan []byte
	hub  *Hub
	once sync.Once
}

// Cancel detaches the subscription from the hub. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub polls the change counter and fans version changes out to subscribers
type Hub struct {
	source VersionSource
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	lastVersion int64
	stopped     bool
}

// NewHub creates a new hub
func NewHub(source VersionSource, logger zerolog.Logger) *Hub {
	return &Hub{
		source:      source,
		logger:      logger.With().Str("component", "websocket_hub").Logger(),
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Run polls for version changes until ctx is done, then closes every
// subscription
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Dur("heartbeat", versionHeartbeatInterval).Msg("hub started")

	versionTicker := time.NewTicker(versionHeartbeatInterval)
	defer versionTicker.Stop()

	for {
		select {
		case <-versionTicker.C:
			h.checkAndBroadcastVersion(ctx)

		case <-ctx.Done():
			h.shutdown()
			h.logger.Info().Msg("hub shutting down")
			return
		}
	}
}

// Subscribe registers a new subscriber and queues the current version for it
func (h *Hub) Subscribe(ctx context.Context) *Subscription {
	send := make(chan []byte, sendBufferSize)
	sub := &Subscription{C: send, send: send, hub: h}

	version, err := h.source.GetVersion(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to get initial version")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		close(send)
		return sub
	}
	h.subscribers[sub] = struct{}{}

	if err == nil {
		if h.lastVersion == 0 {
			h.lastVersion = version
		}
		if msg, ok := h.encode(version); ok {
			send <- msg
		}
	}

	h.logger.Debug().Int("subscribers", len(h.subscribers)).Msg("subscriber added")
	return sub
}

// SubscriberCount returns the current number of subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// checkAndBroadcastVersion broadcasts when the counter moved since the last check
func (h *Hub) checkAndBroadcastVersion(ctx context.Context) {
	currentVersion, err := h.source.GetVersion(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get leaderboard version")
		return
	}

	h.mu.Lock()
	changed := currentVersion != h.lastVersion
	h.lastVersion = currentVersion
	h.mu.Unlock()

	if !changed {
		return
	}

	message, ok := h.encode(currentVersion)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.logger.Debug().
		Int64("version", currentVersion).
		Int("subscribers", len(h.subscribers)).
		Msg("version changed, broadcasting")

	for sub := range h.subscribers {
		select {
		case sub.send <- message:
		default:
			// Subscriber is behind; it will catch up on the next change
			h.logger.Warn().Msg("subscriber buffer full, skipping")
		}
	}
}

func (h *Hub) encode(version int64) ([]byte, bool) {
	message, err := json.Marshal(VersionUpdate{Type: MessageVersionUpdate, Version: version})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal version update")
		return nil, false
	}
	return message, true
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}
