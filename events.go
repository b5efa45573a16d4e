package mediastore

import (
	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Lifecycle event topics. "Pre" topics fire before a mutation is
// applied, the past-tense topics after successful persistence.
const (
	TopicAssetCreate    = "asset:create"
	TopicAssetCreated   = "asset:created"
	TopicAssetUpdate    = "asset:update"
	TopicAssetUpdated   = "asset:updated"
	TopicAssetExpired   = "asset:expired"
	TopicAssetUnexpired = "asset:unexpired"

	TopicDirectoryAddAsset     = "directory:add_asset"
	TopicDirectoryAddedAsset   = "directory:added_asset"
	TopicDirectoryRemoveAsset  = "directory:remove_asset"
	TopicDirectoryRemovedAsset = "directory:removed_asset"
	TopicDirectoryPreSetAsset  = "directory:pre_set_asset"
	TopicDirectoryPostSetAsset = "directory:post_set_asset"
)

// Hub distributes lifecycle events to subscribed hooks. Hooks are
// best-effort notifications outside any transaction: a panicking
// handler is logged and does not affect already-committed state.
//
// Asset topics deliver a single *Asset argument; directory topics
// deliver (*Directory, string) with the affected asset ID.
type Hub struct {
	bus evbus.Bus
	log zerolog.Logger
}

// NewHub creates an event hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		bus: evbus.New(),
		log: log,
	}
}

// Subscribe registers fn for a topic. The signature of fn must match
// the arguments published on that topic.
func (h *Hub) Subscribe(topic string, fn interface{}) error {
	return h.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously subscribed handler.
func (h *Hub) Unsubscribe(topic string, fn interface{}) error {
	return h.bus.Unsubscribe(topic, fn)
}

// Publish delivers an event to all handlers subscribed to the topic.
// Handlers run synchronously; a panic is recovered and logged.
func (h *Hub) Publish(topic string, args ...interface{}) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Str("topic", topic).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()

	h.bus.Publish(topic, args...)
}
