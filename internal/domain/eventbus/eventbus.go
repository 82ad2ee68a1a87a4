// Package eventbus wraps asaskevich/EventBus with the topics and payload
// types of the attachment pipeline, an async worker-pool variant, and a
// bus-backed event source for orchestrator sessions.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

var (
	instance evbus.Bus
	asyncBus *AsyncEventBus
	once     sync.Once
)

func initBuses() {
	once.Do(func() {
		instance = New()
		asyncBus = NewAsyncEventBus(10)
		asyncBus.Start()
	})
}

// Get returns the shared synchronous bus.
func Get() evbus.Bus {
	initBuses()
	return instance
}

// GetAsync returns the shared async bus.
func GetAsync() *AsyncEventBus {
	initBuses()
	return asyncBus
}

// New creates an isolated synchronous bus.
func New() evbus.Bus {
	return evbus.New()
}

// Publish delivers an event synchronously on the shared bus.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// PublishAsync queues an event on the shared async bus.
func PublishAsync(topic string, args ...interface{}) {
	GetAsync().PublishAsync(topic, args...)
}

// Subscribe registers a handler on the shared bus.
func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

// SubscribeAsync registers a handler on the shared async bus.
func SubscribeAsync(topic string, fn interface{}) error {
	return GetAsync().SubscribeAsync(topic, fn)
}

// Unsubscribe removes a previously subscribed handler. The fn value must
// be the same one passed to Subscribe.
func Unsubscribe(topic string, fn interface{}) error {
	return Get().Unsubscribe(topic, fn)
}

// Shutdown stops the async worker pool.
func Shutdown() {
	if asyncBus != nil {
		asyncBus.Stop()
	}
}
